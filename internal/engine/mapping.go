// Package engine adapts bleve to the writer/reader contract the loader and
// result assembler need: typed-field documents in, stored fields and column
// values out.
package engine

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/char/html"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/Aman-CERP/folio/internal/transform"
)

// CompositeField aggregates every text field for field-less queries.
const CompositeField = "_all"

// NewMapping builds the index mapping for reg. It defines the analyzers
// transform policies refer to and maps each field so that queries analyze
// their input the same way documents were analyzed.
func NewMapping(reg *transform.Registry) (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()

	if err := im.AddCustomAnalyzer(transform.AnalyzerHTML, map[string]interface{}{
		"type":          custom.Name,
		"char_filters":  []string{html.Name},
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, fmt.Errorf("failed to add html analyzer: %w", err)
	}
	if err := im.AddCustomAnalyzer(transform.AnalyzerPlain, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, fmt.Errorf("failed to add plain analyzer: %w", err)
	}
	im.DefaultAnalyzer = transform.AnalyzerPlain
	im.DefaultField = CompositeField

	doc := bleve.NewDocumentMapping()
	for _, name := range reg.Names() {
		p, _ := reg.Lookup(name)
		switch p.Encoding {
		case transform.EncodingNumeric:
			doc.AddFieldMappingsAt(name, bleve.NewNumericFieldMapping())
		case transform.EncodingText:
			fm := bleve.NewTextFieldMapping()
			fm.Analyzer = p.Analyzer
			doc.AddFieldMappingsAt(name, fm)
		default:
			fm := bleve.NewTextFieldMapping()
			fm.Analyzer = keyword.Name
			doc.AddFieldMappingsAt(name, fm)
		}
	}
	im.DefaultMapping = doc
	return im, nil
}
