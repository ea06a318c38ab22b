package transform_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/folio/internal/archive"
	"github.com/Aman-CERP/folio/internal/engine"
	ferrors "github.com/Aman-CERP/folio/internal/errors"
	"github.com/Aman-CERP/folio/internal/transform"
)

func newTransformer(t *testing.T, reg *transform.Registry) *transform.Transformer {
	t.Helper()
	im, err := engine.NewMapping(reg)
	require.NoError(t, err)
	tr, err := transform.NewTransformer(reg, im)
	require.NoError(t, err)
	return tr
}

func johnChapter() archive.Document {
	return archive.NewDocument(
		archive.Field{Name: archive.FieldChapter, Value: 1},
		archive.Field{Name: archive.FieldBook, Value: "3 John"},
		archive.Field{Name: archive.FieldSynopsis, Value: "John 1"},
		archive.Field{Name: archive.FieldKeywords, Value: []string{"Bible", " Holy", "KJV ", "Epistle"}},
		archive.Field{Name: archive.FieldText, Value: "<p>The elder unto the wellbeloved Gaius</p>"},
		archive.Field{Name: archive.FieldAddTimestamp, Value: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		archive.Field{Name: archive.FieldSource, Value: "kjv.zip"},
	)
}

// TS01: Every canonical field expands into its typed fields in raw order
func TestTransform_CanonicalChapter(t *testing.T) {
	// Given: a fully populated chapter
	tr := newTransformer(t, transform.DefaultRegistry())
	defer func() { _ = tr.Close() }()

	// When: transforming
	doc, err := tr.Transform(johnChapter())
	require.NoError(t, err)

	// Then: six dual-encoded fields plus one element per keyword
	require.Len(t, doc.Fields, 16)
	var kinds []transform.Kind
	for _, f := range doc.Fields {
		kinds = append(kinds, f.Kind)
	}
	assert.Equal(t, []transform.Kind{
		transform.KindSortableNumeric, transform.KindColumnNumeric,
		transform.KindExactKey, transform.KindColumnKey,
		transform.KindIndexedText, transform.KindStoredText,
		transform.KindKeywordElement, transform.KindKeywordElement, transform.KindKeywordElement, transform.KindKeywordElement,
		transform.KindIndexedText, transform.KindStoredText,
		transform.KindSortableNumeric, transform.KindColumnNumeric,
		transform.KindExactKey, transform.KindColumnKey,
	}, kinds)

	ts := doc.Named(archive.FieldAddTimestamp)
	assert.Equal(t, int64(1709251200000), ts[0].Number)

	text := doc.Named(archive.FieldText)
	assert.NotNil(t, text[0].Analyzer)
	assert.Nil(t, text[1].Analyzer)
	assert.Equal(t, "<p>The elder unto the wellbeloved Gaius</p>", text[1].Text)
}

// TS02: Keyword entries are trimmed and kept in order
func TestTransform_KeywordsTrimmedInOrder(t *testing.T) {
	tr := newTransformer(t, transform.DefaultRegistry())
	defer func() { _ = tr.Close() }()

	kw, ok := archive.MatchKeywords(`<meta name="keywords" content="Audio, Bible, Holy">`)
	require.True(t, ok)
	doc, err := tr.Transform(archive.NewDocument(archive.Field{Name: archive.FieldKeywords, Value: kw}))
	require.NoError(t, err)

	var got []string
	for _, f := range doc.Named(archive.FieldKeywords) {
		got = append(got, f.Text)
	}
	assert.Equal(t, []string{"Bible", "Holy"}, got)
}

func TestTransform_DropsUnregisteredAndNilFields(t *testing.T) {
	tr := newTransformer(t, transform.DefaultRegistry())
	defer func() { _ = tr.Close() }()

	doc, err := tr.Transform(archive.NewDocument(
		archive.Field{Name: "secret", Value: "do not index"},
		archive.Field{Name: archive.FieldBook, Value: nil},
		archive.Field{Name: archive.FieldChapter, Value: 7},
	))

	require.NoError(t, err)
	require.Len(t, doc.Fields, 2)
	assert.Equal(t, archive.FieldChapter, doc.Fields[0].Name)
	assert.Equal(t, int64(7), doc.Fields[0].Number)
}

func TestTransform_TypeMismatchFails(t *testing.T) {
	tr := newTransformer(t, transform.DefaultRegistry())
	defer func() { _ = tr.Close() }()

	_, err := tr.Transform(archive.NewDocument(archive.Field{Name: archive.FieldChapter, Value: "one"}))

	require.Error(t, err)
	assert.Equal(t, ferrors.ErrCodeTransformFailed, ferrors.GetCode(err))
	assert.False(t, ferrors.IsFatal(err))

	// The field is named once, as a detail.
	var fe *ferrors.FolioError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, archive.FieldChapter, fe.Details["field"])
	assert.NotContains(t, fe.Message, archive.FieldChapter)
}

func TestTransform_StoredKeyAddsStoredText(t *testing.T) {
	reg := transform.NewRegistry()
	require.NoError(t, reg.Register("label", transform.Policy{Encoding: transform.EncodingKey, Stored: true}))
	tr := newTransformer(t, reg)
	defer func() { _ = tr.Close() }()

	doc, err := tr.Transform(archive.NewDocument(archive.Field{Name: "label", Value: "x"}))

	require.NoError(t, err)
	require.Len(t, doc.Fields, 3)
	assert.Equal(t, transform.KindStoredText, doc.Fields[2].Kind)
}

// TS03: Transform after Close fails fast
func TestTransform_AfterCloseIsUsageError(t *testing.T) {
	// Given: a closed transformer
	tr := newTransformer(t, transform.DefaultRegistry())
	require.NoError(t, tr.Close())

	// When: transforming
	_, err := tr.Transform(johnChapter())

	// Then: a usage-state error is returned
	assert.True(t, errors.Is(err, ferrors.ErrUsageState))
}

func TestTransform_ConcurrentUse(t *testing.T) {
	tr := newTransformer(t, transform.DefaultRegistry())
	defer func() { _ = tr.Close() }()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				doc, err := tr.Transform(johnChapter())
				assert.NoError(t, err)
				assert.Len(t, doc.Fields, 16)
			}
		}()
	}
	wg.Wait()
}

type emptySource struct{}

func (emptySource) AnalyzerNamed(string) analysis.Analyzer { return nil }

func TestNewTransformer_MissingAnalyzer(t *testing.T) {
	_, err := transform.NewTransformer(transform.DefaultRegistry(), emptySource{})

	require.Error(t, err)
	assert.Equal(t, ferrors.ErrCodeConfigInvalid, ferrors.GetCode(err))
}

func TestRegistry_ColumnsAndValidation(t *testing.T) {
	reg := transform.DefaultRegistry()

	assert.Equal(t, []string{"chapter", "add_timestamp", "book", "source"}, reg.Columns())
	assert.True(t, reg.NumericColumn("chapter"))
	assert.False(t, reg.NumericColumn("book"))
	assert.Equal(t, []string{transform.AnalyzerHTML, transform.AnalyzerPlain}, reg.Analyzers())

	assert.Error(t, reg.Register("", transform.Policy{Encoding: transform.EncodingKey}))
	assert.Error(t, reg.Register("t", transform.Policy{Encoding: transform.EncodingText}))
	assert.Error(t, reg.Register("n", transform.Policy{Encoding: transform.EncodingNumeric, Stored: true}))
	assert.Error(t, reg.Register("u", transform.Policy{}))
}
