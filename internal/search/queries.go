package search

import (
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	ferrors "github.com/Aman-CERP/folio/internal/errors"
)

// Term matches documents whose field holds exactly term. Exact-key fields
// keep case; analyzed text fields are lowercase.
func Term(field, term string) query.Query {
	q := bleve.NewTermQuery(term)
	q.SetField(field)
	return q
}

// Phrase matches terms in order at adjacent positions of an analyzed field.
func Phrase(field string, terms ...string) query.Query {
	return bleve.NewPhraseQuery(lower(terms), field)
}

// MultiPhrase is Phrase with alternatives: each position matches any of its
// terms.
func MultiPhrase(field string, positions [][]string) query.Query {
	terms := make([][]string, len(positions))
	for i, alts := range positions {
		terms[i] = lower(alts)
	}
	return query.NewMultiPhraseQuery(terms, field)
}

// Wildcard matches terms against a pattern using * and ?.
func Wildcard(field, pattern string) query.Query {
	q := bleve.NewWildcardQuery(pattern)
	q.SetField(field)
	return q
}

// Fuzzy matches terms within fuzziness edits of term.
func Fuzzy(field, term string, fuzziness int) query.Query {
	q := bleve.NewFuzzyQuery(term)
	q.SetField(field)
	q.SetFuzziness(fuzziness)
	return q
}

// Prefix matches terms starting with prefix.
func Prefix(field, prefix string) query.Query {
	q := bleve.NewPrefixQuery(prefix)
	q.SetField(field)
	return q
}

// IntRange matches numeric fields within [min, max]. A nil bound is open.
func IntRange(field string, min, max *int64) query.Query {
	var lo, hi *float64
	if min != nil {
		f := float64(*min)
		lo = &f
	}
	if max != nil {
		f := float64(*max)
		hi = &f
	}
	inclusive := true
	q := bleve.NewNumericRangeInclusiveQuery(lo, hi, &inclusive, &inclusive)
	q.SetField(field)
	return q
}

// Match analyzes text with the field's analyzer and matches any of its terms.
func Match(field, text string) query.Query {
	q := bleve.NewMatchQuery(text)
	q.SetField(field)
	return q
}

// All matches documents that satisfy every query.
func All(queries ...query.Query) query.Query {
	return bleve.NewConjunctionQuery(queries...)
}

// Everything matches every document.
func Everything() query.Query {
	return bleve.NewMatchAllQuery()
}

// QueryString parses the bleve query-string syntax, for example
// `book:Alpha +text:light chapter:>=2`. The empty string matches everything.
func QueryString(text string) (query.Query, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Everything(), nil
	}
	q, err := bleve.NewQueryStringQuery(text).Parse()
	if err != nil {
		return nil, ferrors.New(ferrors.ErrCodeInvalidQuery, "cannot parse query: "+err.Error(), err).
			WithDetail("query", text).
			WithSuggestion("Quote phrases and escape special characters such as : + - with a backslash")
	}
	return q, nil
}

func lower(terms []string) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = strings.ToLower(t)
	}
	return out
}
