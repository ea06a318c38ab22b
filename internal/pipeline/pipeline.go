// Package pipeline loads archives into the index: one producer extracts
// pages while a pool of workers transforms and accumulates them into a
// single bulk-load session.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/blevesearch/bleve/v2/mapping"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/folio/internal/archive"
	"github.com/Aman-CERP/folio/internal/engine"
	ferrors "github.com/Aman-CERP/folio/internal/errors"
	"github.com/Aman-CERP/folio/internal/ledger"
	"github.com/Aman-CERP/folio/internal/load"
	"github.com/Aman-CERP/folio/internal/transform"
	"github.com/Aman-CERP/folio/internal/ui"
)

// progressEvery is how many documents pass between progress events.
const progressEvery = 100

// Options configures a Pipeline.
type Options struct {
	// IndexPath is the index location.
	IndexPath string

	// Workers is the number of transform and load goroutines. Defaults to 4.
	Workers int

	// BatchSize is the number of documents per writer batch.
	BatchSize int

	// GroupSegment selects the path segment naming a page's group.
	// archive.ParentGroup uses the parent directory.
	GroupSegment int

	// Registry defaults to transform.DefaultRegistry().
	Registry *transform.Registry

	// Renderer receives progress. Defaults to ui.Discard.
	Renderer ui.Renderer

	// Ledger records runs when set.
	Ledger *ledger.Ledger

	// Retry governs opening a locked index.
	Retry ferrors.RetryConfig

	Clock  func() time.Time
	Logger *slog.Logger
}

// Report is the outcome of loading one archive.
type Report struct {
	RunID    string
	Source   string
	Accepted int64
	Rejected int64
	Skipped  int
	Duration time.Duration
	// FirstFailure is the first rejected document, nil when none was.
	FirstFailure *load.Failure
}

// Pipeline loads archives into one index location.
type Pipeline struct {
	opts    Options
	mapping *mapping.IndexMappingImpl
	logger  *slog.Logger
}

// New validates opts and prepares the index mapping.
func New(opts Options) (*Pipeline, error) {
	if opts.IndexPath == "" {
		return nil, ferrors.ValidationError("index path is required", nil)
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Registry == nil {
		opts.Registry = transform.DefaultRegistry()
	}
	if opts.Renderer == nil {
		opts.Renderer = ui.Discard{}
	}
	if opts.Retry.MaxRetries == 0 && opts.Retry.InitialDelay == 0 {
		opts.Retry = ferrors.DefaultRetryConfig()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	im, err := engine.NewMapping(opts.Registry)
	if err != nil {
		return nil, ferrors.ConfigError("invalid field registry", err)
	}
	return &Pipeline{opts: opts, mapping: im, logger: opts.Logger}, nil
}

// Run loads the archive at path and records the run in the ledger. The
// returned report is valid even when err is not nil.
func (p *Pipeline) Run(ctx context.Context, path string) (*Report, error) {
	start := time.Now()
	report := &Report{Source: filepath.Base(path)}

	// Ledger writes must outlive a cancelled run.
	lctx := context.WithoutCancel(ctx)

	var run *ledger.Run
	if p.opts.Ledger != nil {
		var err error
		if run, err = p.opts.Ledger.Begin(lctx, report.Source); err != nil {
			return report, err
		}
		report.RunID = run.ID
	}

	err := p.load(ctx, path, report)
	report.Duration = time.Since(start)

	if run != nil {
		run.Accepted = report.Accepted
		run.Rejected = report.Rejected
		run.Skipped = int64(report.Skipped)
		if f := report.FirstFailure; f != nil {
			run.FailureDoc = Describe(f.Document)
			run.FailureError = f.Err.Error()
		}
		if err != nil {
			run.Status = ledger.StatusFailed
			run.FailureError = err.Error()
		}
		if lerr := p.opts.Ledger.Finish(lctx, run); lerr != nil {
			p.logger.Warn("ledger_finish_failed", ferrors.FormatForLog(lerr)...)
		}
	}

	if err != nil {
		p.logger.Error("archive_load_failed",
			append([]any{slog.String("source", path)}, ferrors.FormatForLog(err)...)...)
		return report, err
	}
	p.logger.Info("archive_loaded",
		slog.String("source", path),
		slog.Int64("accepted", report.Accepted),
		slog.Int64("rejected", report.Rejected),
		slog.Int("skipped", report.Skipped),
		slog.Duration("duration", report.Duration))
	return report, nil
}

func (p *Pipeline) load(ctx context.Context, path string, report *Report) error {
	r := p.opts.Renderer
	r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageExtracting, Archive: path, Message: "opening " + path})

	ex := archive.NewExtractor(
		archive.WithClock(p.opts.Clock),
		archive.WithGroupSegment(p.opts.GroupSegment),
		archive.WithLogger(p.logger))
	docs, err := ex.Extract(path)
	if err != nil {
		return err
	}
	defer func() { _ = docs.Close() }()

	tr, err := transform.NewTransformer(p.opts.Registry, p.mapping)
	if err != nil {
		return err
	}
	defer func() { _ = tr.Close() }()

	loader := load.New(p.opts.IndexPath,
		load.WithEngineOptions(engine.Options{Registry: p.opts.Registry, BatchSize: p.opts.BatchSize}),
		load.WithLogger(p.logger),
		load.WithRejectHandler(func(f *load.Failure) {
			r.AddError(ui.ErrorEvent{Archive: path, Document: Describe(f.Document), Err: f.Err})
		}))
	defer func() {
		if err := loader.Close(); err != nil {
			p.logger.Warn("loader_close_failed", slog.String("error", err.Error()))
		}
	}()

	// Each worker gets its own session; they share the loader's writer.
	sessions := make([]*load.Session, p.opts.Workers)
	for i := range sessions {
		s, err := ferrors.RetryWithResult(ctx, p.opts.Retry, loader.Init)
		if err != nil {
			return err
		}
		sessions[i] = s
	}

	jobs := make(chan archive.Document, 2*p.opts.Workers)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for raw := range docs.All() {
			select {
			case jobs <- raw:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return docs.Err()
	})

	r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageLoading, Archive: path})
	for _, s := range sessions {
		g.Go(func() error {
			for raw := range jobs {
				td, err := tr.Transform(raw)
				switch {
				case ferrors.GetCode(err) == ferrors.ErrCodeUsageState:
					return err
				case err != nil:
					loader.Reject(transform.Document{Raw: raw}, err)
				default:
					if err := loader.Accumulate(s, td); err != nil {
						return err
					}
				}

				if done := loader.Accepted() + loader.Rejected(); done%progressEvery == 0 {
					r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageLoading, Current: int(done), Archive: path})
				}
			}
			return nil
		})
	}

	waitErr := g.Wait()
	report.Skipped = docs.Skipped()
	report.Rejected = loader.Rejected()
	if f, ok := loader.FirstFailure(); ok {
		report.FirstFailure = f
	}
	if waitErr != nil {
		report.Accepted = loader.Accepted()
		return waitErr
	}

	r.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageLoading,
		Current: int(loader.Accepted() + loader.Rejected()),
		Archive: path,
	})
	r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageCommitting, Archive: path, Message: "committing " + path})

	session := sessions[0]
	for _, s := range sessions[1:] {
		if session, err = loader.Combine(session, s); err != nil {
			return err
		}
	}
	n, err := loader.Finish(session)
	report.Accepted = n
	return err
}

// Describe names a document by book and chapter for reports.
func Describe(doc transform.Document) string {
	book, _ := doc.Raw.Get(archive.FieldBook)
	chapter, _ := doc.Raw.Get(archive.FieldChapter)
	if book == nil {
		book = "?"
	}
	if chapter == nil {
		if doc.ID != "" {
			return doc.ID
		}
		return fmt.Sprint(book)
	}
	return fmt.Sprintf("%v/%v", book, chapter)
}

// Summarize folds reports into completion stats.
func Summarize(reports []*Report, elapsed time.Duration) ui.CompletionStats {
	stats := ui.CompletionStats{Archives: len(reports), Duration: elapsed}
	for _, rep := range reports {
		stats.Accepted += rep.Accepted
		stats.Rejected += rep.Rejected
		stats.Skipped += rep.Skipped
		if rep.Rejected > 0 {
			stats.Errors++
		}
	}
	return stats
}
