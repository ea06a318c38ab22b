package transform

import (
	"github.com/blevesearch/bleve/v2/analysis"

	"github.com/Aman-CERP/folio/internal/archive"
)

// Kind is the encoding kind of a typed field.
type Kind int

const (
	// KindIndexedText is analyzed for full-text search and not stored.
	KindIndexedText Kind = iota + 1
	// KindStoredText is kept verbatim for display and not searchable.
	KindStoredText
	// KindExactKey is a single untokenized term, not stored.
	KindExactKey
	// KindSortableNumeric is a range-searchable number, not stored.
	KindSortableNumeric
	// KindKeywordElement is one untokenized list entry, stored.
	KindKeywordElement
	// KindColumnKey is an untokenized column value for retrieval by document.
	KindColumnKey
	// KindColumnNumeric is a numeric column value for retrieval by document.
	KindColumnNumeric
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindIndexedText:
		return "indexed-text"
	case KindStoredText:
		return "stored-text"
	case KindExactKey:
		return "exact-key"
	case KindSortableNumeric:
		return "sortable-numeric"
	case KindKeywordElement:
		return "keyword-list-element"
	case KindColumnKey:
		return "column-key"
	case KindColumnNumeric:
		return "column-numeric"
	default:
		return "unknown"
	}
}

// Numeric reports whether fields of this kind carry Number instead of Text.
func (k Kind) Numeric() bool {
	return k == KindSortableNumeric || k == KindColumnNumeric
}

// TypedField is one engine-ready field.
type TypedField struct {
	Name   string
	Kind   Kind
	Text   string
	Number int64

	// Analyzer tokenizes KindIndexedText values. Nil for every other kind.
	Analyzer analysis.Analyzer
}

// Document is a transformed document: typed fields in raw traversal order.
type Document struct {
	// ID is assigned by the index writer when empty.
	ID     string
	Fields []TypedField

	// Raw is the extracted document this one was built from.
	Raw archive.Document
}

// Named returns the fields called name, in order.
func (d Document) Named(name string) []TypedField {
	var out []TypedField
	for _, f := range d.Fields {
		if f.Name == name {
			out = append(out, f)
		}
	}
	return out
}
