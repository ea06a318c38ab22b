package engine

import (
	"fmt"

	"github.com/blevesearch/bleve/v2/document"
	index "github.com/blevesearch/bleve_index_api"

	"github.com/Aman-CERP/folio/internal/transform"
)

var kindOptions = map[transform.Kind]index.FieldIndexingOptions{
	transform.KindIndexedText:     index.IndexField | index.IncludeTermVectors,
	transform.KindStoredText:      index.StoreField,
	transform.KindExactKey:        index.IndexField,
	transform.KindSortableNumeric: index.IndexField,
	transform.KindKeywordElement:  index.IndexField | index.StoreField | index.IncludeTermVectors,
	transform.KindColumnKey:       index.IndexField | index.DocValues,
	transform.KindColumnNumeric:   index.IndexField | index.DocValues,
}

// buildDocument converts a transformed document into a bleve document. Text
// kinds without an analyzer index their whole value as one term.
func buildDocument(id string, td transform.Document) (*document.Document, error) {
	if len(td.Fields) == 0 {
		return nil, fmt.Errorf("document has no indexable fields")
	}

	doc := document.NewDocument(id)
	var numeric []string
	for _, f := range td.Fields {
		opts, ok := kindOptions[f.Kind]
		if !ok {
			return nil, fmt.Errorf("field %q: unsupported kind %s", f.Name, f.Kind)
		}
		if f.Kind.Numeric() {
			doc.AddField(document.NewNumericFieldWithIndexingOptions(f.Name, nil, float64(f.Number), opts))
			numeric = append(numeric, f.Name)
			continue
		}
		if f.Kind == transform.KindIndexedText && f.Analyzer == nil {
			return nil, fmt.Errorf("field %q: indexed text without analyzer", f.Name)
		}
		doc.AddField(document.NewTextFieldCustom(f.Name, nil, []byte(f.Text), opts, f.Analyzer))
	}
	doc.AddField(document.NewCompositeField(CompositeField, true, nil, numeric))
	return doc, nil
}
