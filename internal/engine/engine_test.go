package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/folio/internal/archive"
	ferrors "github.com/Aman-CERP/folio/internal/errors"
	"github.com/Aman-CERP/folio/internal/transform"
)

var stamp = time.Date(2024, 3, 1, 17, 30, 0, 0, time.UTC)

func rawChapter(book string, chapter int, text string) archive.Document {
	return archive.NewDocument(
		archive.Field{Name: archive.FieldChapter, Value: chapter},
		archive.Field{Name: archive.FieldBook, Value: book},
		archive.Field{Name: archive.FieldSynopsis, Value: book + " " + "chapter"},
		archive.Field{Name: archive.FieldKeywords, Value: []string{" Bible", "Holy "}},
		archive.Field{Name: archive.FieldText, Value: text},
		archive.Field{Name: archive.FieldAddTimestamp, Value: stamp},
		archive.Field{Name: archive.FieldSource, Value: "sample.zip"},
	)
}

func newTransformer(t *testing.T) *transform.Transformer {
	t.Helper()
	reg := transform.DefaultRegistry()
	im, err := NewMapping(reg)
	require.NoError(t, err)
	tr, err := transform.NewTransformer(reg, im)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func writeDocs(t *testing.T, path string, docs ...archive.Document) []string {
	t.Helper()
	tr := newTransformer(t)
	w, err := OpenWriter(path, Options{BatchSize: 2})
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	var ids []string
	for _, raw := range docs {
		td, err := tr.Transform(raw)
		require.NoError(t, err)
		id, err := w.Add(td)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, w.Commit())
	return ids
}

// TS01: Stored text and column values come back from a committed index
func TestWriterReader_RoundTrip(t *testing.T) {
	// Given: three chapters written and committed
	path := filepath.Join(t.TempDir(), "index")
	text := "<p>In the <b>beginning</b> was the Word</p>\r\n"
	ids := writeDocs(t, path,
		rawChapter("Alpha", 1, text),
		rawChapter("Alpha", 2, "<p>light</p>"),
		rawChapter("Beta", 1, "<p>elder</p>"))

	// When: reopening read-only
	r, err := OpenReader(path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	// Then: exact-key search sees both Alpha chapters
	q := bleve.NewTermQuery("Alpha")
	q.SetField(archive.FieldBook)
	hits, err := r.Search(context.Background(), q, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), hits.Total)
	assert.False(t, hits.LowerBound)

	// And: stored fields and columns of the first document are intact
	snap, err := r.Snapshot()
	require.NoError(t, err)
	defer func() { _ = snap.Close() }()

	stored, err := snap.StoredFields(ids[0])
	require.NoError(t, err)
	byName := map[string][]any{}
	for _, v := range stored {
		byName[v.Name] = append(byName[v.Name], v.Value)
	}
	assert.Equal(t, []any{text}, byName[archive.FieldText])
	assert.Equal(t, []any{"Alpha chapter"}, byName[archive.FieldSynopsis])
	assert.Equal(t, []any{"Bible", "Holy"}, byName[archive.FieldKeywords])
	assert.NotContains(t, byName, archive.FieldBook, "exact keys are not stored")

	reg := transform.DefaultRegistry()
	cols, err := snap.ColumnValues(ids[0], reg.Columns(), reg.NumericColumn)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1)}, cols[archive.FieldChapter])
	assert.Equal(t, []any{stamp.UnixMilli()}, cols[archive.FieldAddTimestamp])
	assert.Equal(t, []any{"Alpha"}, cols[archive.FieldBook])
	assert.Equal(t, []any{"sample.zip"}, cols[archive.FieldSource])
}

func TestReader_HTMLTextIsSearchableWithoutMarkup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")
	writeDocs(t, path, rawChapter("Alpha", 1, "<p>In the <b>Beginning</b></p>"))

	r, err := OpenReader(path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	match := bleve.NewMatchQuery("beginning")
	match.SetField(archive.FieldText)
	hits, err := r.Search(context.Background(), match, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), hits.Total)

	tag := bleve.NewTermQuery("b")
	tag.SetField(archive.FieldText)
	hits, err = r.Search(context.Background(), tag, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), hits.Total, "markup is stripped before tokenizing")
}

// TS02: A location has one writer at a time and no readers while written
func TestOpenWriter_ExclusiveLock(t *testing.T) {
	// Given: an open writer
	path := filepath.Join(t.TempDir(), "index")
	w, err := OpenWriter(path, Options{})
	require.NoError(t, err)

	// When: opening a second writer and a reader
	_, err2 := OpenWriter(path, Options{})
	_, err3 := OpenReader(path)

	// Then: both fail fast with the retryable locked code
	assert.Equal(t, ferrors.ErrCodeIndexLocked, ferrors.GetCode(err2))
	assert.Equal(t, ferrors.ErrCodeIndexLocked, ferrors.GetCode(err3))
	assert.True(t, ferrors.IsRetryable(err2))

	// And: the location is free again after Close
	require.NoError(t, w.Close())
	r, err := OpenReader(path)
	require.NoError(t, err)
	require.NoError(t, r.Close())
}

func TestWriter_SharedReaderSeesCommittedDocuments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")
	w, err := OpenWriter(path, Options{BatchSize: 50})
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	td, err := newTransformer(t).Transform(rawChapter("Beta", 4, "x"))
	require.NoError(t, err)
	_, err = w.Add(td)
	require.NoError(t, err)

	r := w.Reader()
	n, err := r.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n, "buffered documents are not visible")

	require.NoError(t, w.Commit())
	n, err = r.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
	require.NoError(t, r.Close())
}

func TestWriter_RejectsEmptyDocument(t *testing.T) {
	w, err := OpenWriter(filepath.Join(t.TempDir(), "index"), Options{})
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	_, err = w.Add(transform.Document{})

	assert.Error(t, err)
}

func TestWriter_UseAfterClose(t *testing.T) {
	w, err := OpenWriter(filepath.Join(t.TempDir(), "index"), Options{})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, err = w.Add(transform.Document{ID: "x", Fields: []transform.TypedField{{Name: "book", Kind: transform.KindExactKey, Text: "A"}}})
	assert.True(t, errors.Is(err, ferrors.ErrUsageState))
	assert.True(t, errors.Is(w.Commit(), ferrors.ErrUsageState))
}

func TestWriter_FailedFlushIsSticky(t *testing.T) {
	// Given: a writer with two buffered documents and an index that refuses batches
	path := filepath.Join(t.TempDir(), "index")
	w, err := OpenWriter(path, Options{BatchSize: 3})
	require.NoError(t, err)
	// The index is closed by hand below, so only the lock is left to release.
	t.Cleanup(func() { _ = w.lock.Unlock() })
	tr := newTransformer(t)
	add := func(chapter int) error {
		td, err := tr.Transform(rawChapter("Alpha", chapter, "text"))
		require.NoError(t, err)
		_, err = w.Add(td)
		return err
	}
	require.NoError(t, add(1))
	require.NoError(t, add(2))
	require.NoError(t, w.index.Close())

	// When: the third document triggers a flush
	err = add(3)

	// Then: the batch is dropped and reported with its size
	require.Error(t, err)
	assert.Equal(t, ferrors.ErrCodeCommitFailed, ferrors.GetCode(err))
	var be *BatchError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, 3, be.Lost)
	assert.Zero(t, w.pending)
	assert.Zero(t, w.batch.Size())

	// And: later calls fail the same way without buffering anything
	assert.ErrorIs(t, add(4), err)
	assert.Zero(t, w.pending)
	assert.ErrorIs(t, w.Commit(), err)
}

func TestOpenWriter_RecoversCorruptedIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")
	require.NoError(t, os.MkdirAll(path, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "index_meta.json"), []byte("{broken"), 0o644))

	w, err := OpenWriter(path, Options{})

	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestOpenReader_MissingIndex(t *testing.T) {
	_, err := OpenReader(filepath.Join(t.TempDir(), "nope"))

	require.Error(t, err)
	assert.Equal(t, ferrors.ErrCodeIndexOpen, ferrors.GetCode(err))
}

func TestSnapshot_UnknownDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")
	writeDocs(t, path, rawChapter("Alpha", 1, "x"))
	r, err := OpenReader(path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	snap, err := r.Snapshot()
	require.NoError(t, err)
	defer func() { _ = snap.Close() }()

	_, err = snap.StoredFields("missing")

	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestNormalizeNumber(t *testing.T) {
	assert.Equal(t, int64(3), normalizeNumber(3))
	assert.Equal(t, 2.5, normalizeNumber(2.5))
}
