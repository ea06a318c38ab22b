// Package load writes transformed documents into the index as one bulk-load
// session. Per-document failures never abort the session: the loader counts
// accepted documents and keeps the first failure for the caller to inspect.
// A caller that ignores FirstFailure gets a silently partial index.
package load

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Aman-CERP/folio/internal/engine"
	ferrors "github.com/Aman-CERP/folio/internal/errors"
	"github.com/Aman-CERP/folio/internal/transform"
)

// Writer is the index writer a session drives. Add must be safe for
// concurrent use.
type Writer interface {
	Add(doc transform.Document) (string, error)
	Commit() error
	Close() error
}

// OpenFunc opens or creates the index at location in append mode.
type OpenFunc func(location string) (Writer, error)

// Failure is a rejected document and the reason it was rejected.
type Failure struct {
	Document transform.Document
	Err      error
}

// Error implements error so a Failure can be logged or returned directly.
func (f *Failure) Error() string {
	return f.Err.Error()
}

// Unwrap returns the rejection cause.
func (f *Failure) Unwrap() error {
	return f.Err
}

// Session is the handle bound to the loader's writer between Init and Close.
type Session struct {
	loader *Loader
	writer Writer
}

type state int

const (
	stateIdle state = iota
	stateOpen
	stateClosed
)

// Loader is a bulk-load collector: Init, Accumulate from any number of
// goroutines, Combine partial sessions, Finish, then Close.
type Loader struct {
	location string
	open     OpenFunc
	logger   *slog.Logger
	onReject func(*Failure)

	mu     sync.RWMutex
	state  state
	writer Writer

	accepted     atomic.Int64
	rejected     atomic.Int64
	failure      atomic.Pointer[Failure]
	batchFailure atomic.Pointer[engine.BatchError]
}

// Option configures a Loader.
type Option func(*Loader)

// WithOpener replaces the index opener.
func WithOpener(open OpenFunc) Option {
	return func(l *Loader) { l.open = open }
}

// WithEngineOptions configures the default bleve-backed opener.
func WithEngineOptions(opts engine.Options) Option {
	return func(l *Loader) { l.open = engineOpener(opts) }
}

// WithRejectHandler registers fn to be called with every rejected document,
// from the goroutine that rejected it.
func WithRejectHandler(fn func(*Failure)) Option {
	return func(l *Loader) { l.onReject = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

func engineOpener(opts engine.Options) OpenFunc {
	return func(location string) (Writer, error) {
		w, err := engine.OpenWriter(location, opts)
		if err != nil {
			return nil, err
		}
		return w, nil
	}
}

// New creates a loader for the index at location.
func New(location string, opts ...Option) *Loader {
	l := &Loader{
		location: location,
		open:     engineOpener(engine.Options{}),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Init opens the index on first call and returns a session bound to its
// writer. Later calls return further sessions sharing the same writer.
func (l *Loader) Init() (*Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case stateClosed:
		return nil, ferrors.UsageState("loader", "Init")
	case stateOpen:
		return &Session{loader: l, writer: l.writer}, nil
	}

	w, err := l.open(l.location)
	if err != nil {
		if ferrors.GetCode(err) != "" {
			return nil, err
		}
		return nil, ferrors.IndexOpen(l.location, err)
	}
	l.writer = w
	l.state = stateOpen
	l.logger.Info("load_session_opened", slog.String("location", l.location))
	return &Session{loader: l, writer: w}, nil
}

// Accumulate submits doc. A rejected document is recorded, not returned.
// Errors are usage errors (no session, or the loader is closed) and fatal
// writer failures, after which the session cannot continue.
func (l *Loader) Accumulate(s *Session, doc transform.Document) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := l.checkSession(s, "Accumulate"); err != nil {
		return err
	}
	if _, err := s.writer.Add(doc); err != nil {
		var be *engine.BatchError
		if errors.As(err, &be) {
			l.abort(be, be.Lost-1)
			return err
		}
		l.record(doc, ferrors.New(ferrors.ErrCodeDocumentRejected, err.Error(), err))
		return nil
	}
	l.accepted.Add(1)
	return nil
}

// abort takes back the counted documents a refused batch dropped. It acts
// on the first refusal only; the writer repeats it on every later call.
func (l *Loader) abort(be *engine.BatchError, counted int) {
	if !l.batchFailure.CompareAndSwap(nil, be) {
		return
	}
	if counted > 0 {
		l.accepted.Add(-int64(counted))
	}
	l.logger.Error("load_session_failed",
		slog.String("location", l.location),
		slog.Int("lost", be.Lost),
		slog.String("error", be.Err.Error()))
}

// Reject records doc as failed upstream of the writer, for example when it
// could not be transformed.
func (l *Loader) Reject(doc transform.Document, err error) {
	l.record(doc, err)
}

func (l *Loader) record(doc transform.Document, err error) {
	l.rejected.Add(1)
	f := &Failure{Document: doc, Err: err}
	if l.onReject != nil {
		l.onReject(f)
	}
	if l.failure.CompareAndSwap(nil, f) {
		l.logger.Warn("document_rejected",
			append([]any{slog.String("location", l.location)}, ferrors.FormatForLog(err)...)...)
		return
	}
	l.logger.Debug("document_rejected", slog.String("error", err.Error()))
}

// Combine merges two partial sessions. Both share the loader's writer, so
// either one carries everything accumulated.
func (l *Loader) Combine(a, b *Session) (*Session, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := l.checkSession(a, "Combine"); err != nil {
		return nil, err
	}
	if err := l.checkSession(b, "Combine"); err != nil {
		return nil, err
	}
	return a, nil
}

// Finish commits the writer and returns the number of accepted documents.
// A commit failure is fatal.
func (l *Loader) Finish(s *Session) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := l.checkSession(s, "Finish"); err != nil {
		return 0, err
	}
	if err := s.writer.Commit(); err != nil {
		var be *engine.BatchError
		if errors.As(err, &be) {
			l.abort(be, be.Lost)
		}
		return l.accepted.Load(), ferrors.New(ferrors.ErrCodeCommitFailed,
			fmt.Sprintf("commit to %s failed", l.location), err)
	}
	n := l.accepted.Load()
	l.logger.Info("load_session_committed",
		slog.String("location", l.location),
		slog.Int64("accepted", n),
		slog.Int64("rejected", l.rejected.Load()))
	return n, nil
}

// FirstFailure returns the first rejected document, if any.
func (l *Loader) FirstFailure() (*Failure, bool) {
	f := l.failure.Load()
	return f, f != nil
}

// Accepted returns the number of documents the writer accepted so far.
func (l *Loader) Accepted() int64 {
	return l.accepted.Load()
}

// Rejected returns the number of documents rejected so far.
func (l *Loader) Rejected() int64 {
	return l.rejected.Load()
}

// Close releases the writer and the index location. Further operations fail
// with a usage error. It is safe to call more than once.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == stateClosed {
		return nil
	}
	prev := l.state
	l.state = stateClosed
	if prev != stateOpen {
		return nil
	}
	err := l.writer.Close()
	l.writer = nil
	return err
}

func (l *Loader) checkSession(s *Session, op string) error {
	if l.state != stateOpen || s == nil || s.loader != l {
		return ferrors.UsageState("loader", op)
	}
	return nil
}
