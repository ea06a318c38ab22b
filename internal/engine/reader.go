package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/document"
	"github.com/blevesearch/bleve/v2/numeric"
	"github.com/blevesearch/bleve/v2/search/query"
	index "github.com/blevesearch/bleve_index_api"

	ferrors "github.com/Aman-CERP/folio/internal/errors"
)

// ErrDocumentNotFound is returned when a hit's document has vanished.
var ErrDocumentNotFound = errors.New("document not found")

// Hit is one ranked search result.
type Hit struct {
	ID    string
	Score float64
}

// Hits is a ranked result page.
type Hits struct {
	Total uint64
	// LowerBound is true when Total is a lower bound rather than exact.
	LowerBound bool
	Ranked     []Hit
}

// Value is a named stored value. Value holds a string, int64, float64 or []byte.
type Value struct {
	Name  string
	Value any
}

// Reader searches an index and reads stored and column values back.
type Reader struct {
	mu     sync.RWMutex
	index  bleve.Index
	lock   *FileLock
	owned  bool
	path   string
	closed bool
}

// OpenReader opens the index at path read-only. It fails fast with a
// retryable error while a writer holds the location.
func OpenReader(path string) (*Reader, error) {
	if err := validateIndexIntegrity(path); err != nil {
		return nil, ferrors.New(ferrors.ErrCodeCorruptIndex, err.Error(), err).WithDetail("path", path)
	}

	lock := NewFileLock(path)
	ok, err := lock.TryRLock()
	if err != nil {
		return nil, ferrors.IndexOpen(path, err)
	}
	if !ok {
		return nil, ferrors.New(ferrors.ErrCodeIndexLocked, fmt.Sprintf("index at %s is being written", path), nil).
			WithSuggestion("Wait for the running ingest to finish")
	}

	idx, err := bleve.OpenUsing(path, map[string]interface{}{"read_only": true})
	if err != nil {
		_ = lock.Unlock()
		return nil, ferrors.IndexOpen(path, err)
	}
	return &Reader{index: idx, lock: lock, owned: true, path: path}, nil
}

func newSharedReader(idx bleve.Index, path string) *Reader {
	return &Reader{index: idx, path: path}
}

// Search runs q and returns up to limit ranked hits.
func (r *Reader) Search(ctx context.Context, q query.Query, limit int) (*Hits, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ferrors.UsageState("reader", "Search")
	}

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	res, err := r.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := &Hits{Total: res.Total, Ranked: make([]Hit, 0, len(res.Hits))}
	for _, h := range res.Hits {
		hits.Ranked = append(hits.Ranked, Hit{ID: h.ID, Score: h.Score})
	}
	return hits, nil
}

// DocCount returns the number of documents in the index.
func (r *Reader) DocCount() (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return 0, ferrors.UsageState("reader", "DocCount")
	}
	return r.index.DocCount()
}

// Snapshot opens a point-in-time view for reading stored and column values.
// The caller must Close it.
func (r *Reader) Snapshot() (*Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ferrors.UsageState("reader", "Snapshot")
	}
	adv, err := r.index.Advanced()
	if err != nil {
		return nil, fmt.Errorf("failed to access index: %w", err)
	}
	ir, err := adv.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to open index reader: %w", err)
	}
	return &Snapshot{reader: ir}, nil
}

// Path returns the index location.
func (r *Reader) Path() string {
	return r.path
}

// Close releases the index if this reader opened it. Readers obtained from a
// Writer leave the index open.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	if !r.owned {
		return nil
	}
	err := r.index.Close()
	if unlockErr := r.lock.Unlock(); err == nil {
		err = unlockErr
	}
	return err
}

// Snapshot is a point-in-time view of the index.
type Snapshot struct {
	reader index.IndexReader
}

// StoredFields returns the stored values of document id in storage order.
func (s *Snapshot) StoredFields(id string) ([]Value, error) {
	doc, err := s.reader.Document(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", id, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}

	var values []Value
	doc.VisitFields(func(f index.Field) {
		if f.Name() == "_id" {
			return
		}
		values = append(values, Value{Name: f.Name(), Value: storedValue(f)})
	})
	return values, nil
}

// ColumnValues returns the column values of document id for fields. Fields
// for which isNumeric reports true are decoded as numbers; the rest as strings.
func (s *Snapshot) ColumnValues(id string, fields []string, isNumeric func(string) bool) (map[string][]any, error) {
	out := make(map[string][]any, len(fields))
	if len(fields) == 0 {
		return out, nil
	}

	iid, err := s.reader.InternalID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve document %s: %w", id, err)
	}
	if len(iid) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}

	dvr, err := s.reader.DocValueReader(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to open column reader: %w", err)
	}
	err = dvr.VisitDocValues(iid, func(field string, term []byte) {
		if !isNumeric(field) {
			out[field] = append(out[field], string(term))
			return
		}
		// Numeric columns hold every precision shift; shift 0 is the value.
		valid, shift := numeric.ValidPrefixCodedTermBytes(term)
		if !valid || shift != 0 {
			return
		}
		i64, err := numeric.PrefixCoded(term).Int64()
		if err != nil {
			return
		}
		out[field] = append(out[field], normalizeNumber(numeric.Int64ToFloat64(i64)))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", id, err)
	}
	return out, nil
}

// Close releases the snapshot.
func (s *Snapshot) Close() error {
	return s.reader.Close()
}

func storedValue(f index.Field) any {
	switch v := f.(type) {
	case *document.TextField:
		return v.Text()
	case *document.NumericField:
		n, err := v.Number()
		if err != nil {
			return append([]byte(nil), f.Value()...)
		}
		return normalizeNumber(n)
	default:
		return append([]byte(nil), f.Value()...)
	}
}

// normalizeNumber returns integral values as int64 and the rest as float64.
func normalizeNumber(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}
