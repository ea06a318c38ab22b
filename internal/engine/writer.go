package engine

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/google/uuid"

	ferrors "github.com/Aman-CERP/folio/internal/errors"
	"github.com/Aman-CERP/folio/internal/transform"
)

// DefaultBatchSize is the number of documents buffered between flushes.
const DefaultBatchSize = 100

// Options configures a Writer.
type Options struct {
	// BatchSize is the number of documents buffered before a flush.
	BatchSize int

	// Registry describes the fields written. Defaults to the canonical registry.
	Registry *transform.Registry

	// NewID generates ids for documents that have none.
	NewID func() string
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Registry == nil {
		o.Registry = transform.DefaultRegistry()
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// BatchError reports a batch the index refused. Its documents were dropped.
type BatchError struct {
	Lost int
	Err  error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("failed to execute batch of %d documents: %v", e.Lost, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// Writer buffers documents into bleve batches. Add is safe for concurrent use.
// A failed flush is sticky: every later Add and Commit returns it.
type Writer struct {
	mu      sync.Mutex
	index   bleve.Index
	lock    *FileLock
	batch   *bleve.Batch
	pending int
	path    string
	opts    Options
	closed  bool
	failed  error
}

// OpenWriter opens the index at path for appending, creating it when absent.
// The writer holds the location's lock exclusively until Close.
func OpenWriter(path string, opts Options) (*Writer, error) {
	opts = opts.withDefaults()

	lock := NewFileLock(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, ferrors.IndexOpen(path, err)
	}
	if !ok {
		return nil, ferrors.New(ferrors.ErrCodeIndexLocked, fmt.Sprintf("index at %s is in use", path), nil).
			WithDetail("lock", lock.Path())
	}

	im, err := NewMapping(opts.Registry)
	if err != nil {
		_ = lock.Unlock()
		return nil, ferrors.IndexOpen(path, err)
	}
	idx, err := openOrCreate(path, im)
	if err != nil {
		_ = lock.Unlock()
		return nil, ferrors.IndexOpen(path, err)
	}

	return &Writer{
		index: idx,
		lock:  lock,
		batch: idx.NewBatch(),
		path:  path,
		opts:  opts,
	}, nil
}

// Add buffers doc, flushing when the batch is full. It returns the document
// id used.
func (w *Writer) Add(doc transform.Document) (string, error) {
	id := doc.ID
	if id == "" {
		id = w.opts.NewID()
	}
	bdoc, err := buildDocument(id, doc)
	if err != nil {
		return "", err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return "", ferrors.UsageState("writer", "Add")
	}
	if w.failed != nil {
		return "", w.failed
	}
	if err := w.batch.IndexAdvanced(bdoc); err != nil {
		return "", fmt.Errorf("failed to buffer document %s: %w", id, err)
	}
	w.pending++
	if w.pending >= w.opts.BatchSize {
		if err := w.flushLocked(); err != nil {
			return "", err
		}
	}
	return id, nil
}

// Commit flushes buffered documents to the index.
func (w *Writer) Commit() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ferrors.UsageState("writer", "Commit")
	}
	if w.failed != nil {
		return w.failed
	}
	return w.flushLocked()
}

func (w *Writer) flushLocked() error {
	if w.pending == 0 {
		return nil
	}
	if err := w.index.Batch(w.batch); err != nil {
		lost := w.pending
		w.batch.Reset()
		w.pending = 0
		w.failed = ferrors.New(ferrors.ErrCodeCommitFailed,
			fmt.Sprintf("index at %s refused a batch", w.path), &BatchError{Lost: lost, Err: err}).
			WithDetail("lost", strconv.Itoa(lost))
		slog.Error("index_batch_failed", slog.String("path", w.path), slog.Int("lost", lost), slog.String("error", err.Error()))
		return w.failed
	}
	slog.Debug("index_batch_flushed", slog.String("path", w.path), slog.Int("documents", w.pending))
	w.batch.Reset()
	w.pending = 0
	return nil
}

// Reader returns a reader over the writer's open index. It sees committed
// documents and must be closed before the writer.
func (w *Writer) Reader() *Reader {
	return newSharedReader(w.index, w.path)
}

// Path returns the index location.
func (w *Writer) Path() string {
	return w.path
}

// Close releases the index and its lock without committing. It is safe to
// call more than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.pending > 0 {
		slog.Warn("index_uncommitted_dropped", slog.String("path", w.path), slog.Int("documents", w.pending))
	}

	err := w.index.Close()
	if unlockErr := w.lock.Unlock(); err == nil {
		err = unlockErr
	}
	return err
}
