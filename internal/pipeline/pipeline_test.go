package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/folio/internal/archive"
	"github.com/Aman-CERP/folio/internal/archive/archivetest"
	"github.com/Aman-CERP/folio/internal/engine"
	ferrors "github.com/Aman-CERP/folio/internal/errors"
	"github.com/Aman-CERP/folio/internal/ledger"
	"github.com/Aman-CERP/folio/internal/load"
	"github.com/Aman-CERP/folio/internal/transform"
	"github.com/Aman-CERP/folio/internal/ui"
)

type recorder struct {
	mu       sync.Mutex
	progress []ui.ProgressEvent
	errors   []ui.ErrorEvent
}

func (r *recorder) Start(context.Context) error { return nil }
func (r *recorder) Complete(ui.CompletionStats) {}
func (r *recorder) Stop() error                 { return nil }

func (r *recorder) UpdateProgress(e ui.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, e)
}

func (r *recorder) AddError(e ui.ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, e)
}

func (r *recorder) stages() []ui.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ui.Stage
	for _, e := range r.progress {
		if len(out) == 0 || out[len(out)-1] != e.Stage {
			out = append(out, e.Stage)
		}
	}
	return out
}

var fastRetry = ferrors.RetryConfig{
	MaxRetries:   2,
	InitialDelay: time.Millisecond,
	MaxDelay:     time.Millisecond,
	Multiplier:   1,
	ShouldRetry:  ferrors.IsRetryable,
}

func newPipeline(t *testing.T, dir string, opts Options) *Pipeline {
	t.Helper()
	if opts.IndexPath == "" {
		opts.IndexPath = filepath.Join(dir, "index")
	}
	if opts.Retry.InitialDelay == 0 {
		opts.Retry = fastRetry
	}
	opts.GroupSegment = archive.ParentGroup
	p, err := New(opts)
	require.NoError(t, err)
	return p
}

func openLedger(t *testing.T, dir string) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Open(filepath.Join(dir, "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func countBook(t *testing.T, indexPath, book string) uint64 {
	t.Helper()
	r, err := engine.OpenReader(indexPath)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	q := bleve.NewTermQuery(book)
	q.SetField(archive.FieldBook)
	hits, err := r.Search(context.Background(), q, 10)
	require.NoError(t, err)
	return hits.Total
}

// TS01: The sample archive loads end to end and the run is recorded
func TestRun_SampleArchive(t *testing.T) {
	// Given: a pipeline with a ledger and a recording renderer
	dir := t.TempDir()
	rec := &recorder{}
	led := openLedger(t, dir)
	p := newPipeline(t, dir, Options{Workers: 3, BatchSize: 2, Renderer: rec, Ledger: led})

	// When: loading the sample archive
	report, err := p.Run(context.Background(), archivetest.Sample(t, dir))

	// Then: every page is accepted and index.htm is skipped
	require.NoError(t, err)
	assert.Equal(t, int64(3), report.Accepted)
	assert.Zero(t, report.Rejected)
	assert.Equal(t, 1, report.Skipped)
	assert.Nil(t, report.FirstFailure)
	assert.Positive(t, report.Duration)
	assert.Equal(t, "sample.zip", report.Source)

	// And: the index answers book=Alpha with two hits
	assert.Equal(t, uint64(2), countBook(t, filepath.Join(dir, "index"), "Alpha"))

	// And: progress went through every stage and the ledger has the run
	assert.Equal(t, []ui.Stage{ui.StageExtracting, ui.StageLoading, ui.StageCommitting}, rec.stages())
	run, err := led.Get(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, run.Status)
	assert.Equal(t, int64(3), run.Accepted)
	assert.Equal(t, int64(1), run.Skipped)
	assert.Equal(t, "sample.zip", run.Source)
}

// TS02: A document that cannot be transformed is rejected, the rest load
func TestRun_PartialLoad(t *testing.T) {
	// Given: synopsis registered as numeric, so the one page with a
	// synopsis cannot be encoded
	dir := t.TempDir()
	path := archivetest.Write(t, dir, "partial.zip",
		archivetest.Entry{Name: "index.htm", Content: archivetest.IndexLine(1, "Alpha")},
		archivetest.Entry{Name: "1/1.htm", Content: archivetest.Page("Alpha 1, Sample", "Audio, Bible", "<p>one</p>")},
		archivetest.Entry{Name: "1/2.htm", Content: archivetest.Page("Plain", "Audio, Bible", "<p>two</p>")},
		archivetest.Entry{Name: "1/3.htm", Content: archivetest.Page("Plain", "Audio", "<p>three</p>")},
	)
	reg := transform.DefaultRegistry()
	reg.MustRegister(archive.FieldSynopsis, transform.Policy{Encoding: transform.EncodingNumeric})
	rec := &recorder{}
	led := openLedger(t, dir)
	p := newPipeline(t, dir, Options{Registry: reg, Renderer: rec, Ledger: led})

	// When: loading it
	report, err := p.Run(context.Background(), path)

	// Then: the run succeeds with one rejection reported everywhere
	require.NoError(t, err)
	assert.Equal(t, int64(2), report.Accepted)
	assert.Equal(t, int64(1), report.Rejected)
	require.NotNil(t, report.FirstFailure)
	assert.Equal(t, "Alpha/1", Describe(report.FirstFailure.Document))
	assert.Equal(t, ferrors.ErrCodeTransformFailed, ferrors.GetCode(report.FirstFailure.Err))

	require.Len(t, rec.errors, 1)
	assert.Equal(t, "Alpha/1", rec.errors[0].Document)

	run, err := led.Get(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPartial, run.Status)
	assert.Equal(t, "Alpha/1", run.FailureDoc)
	assert.Equal(t, uint64(2), countBook(t, filepath.Join(dir, "index"), "Alpha"))
}

func TestRun_ManyPagesManyWorkers(t *testing.T) {
	dir := t.TempDir()
	entries := []archivetest.Entry{{Name: "index.htm", Content: archivetest.IndexLine(7, "Seventh")}}
	for i := 1; i <= 250; i++ {
		entries = append(entries, archivetest.Entry{
			Name:    fmt.Sprintf("7/%d.htm", i),
			Content: archivetest.Page(fmt.Sprintf("Seventh %d, Big", i), "Audio, Big", "<p>page</p>"),
		})
	}
	path := archivetest.Write(t, dir, "big.zip", entries...)
	rec := &recorder{}
	p := newPipeline(t, dir, Options{Workers: 8, BatchSize: 16, Renderer: rec})

	report, err := p.Run(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, int64(250), report.Accepted)
	assert.Equal(t, uint64(250), countBook(t, filepath.Join(dir, "index"), "Seventh"))

	var last ui.ProgressEvent
	for _, e := range rec.progress {
		if e.Stage == ui.StageLoading {
			last = e
		}
	}
	assert.Equal(t, 250, last.Current, "final loading event carries the total")
}

func TestRun_AppendsToExistingIndex(t *testing.T) {
	dir := t.TempDir()
	p := newPipeline(t, dir, Options{})
	sample := archivetest.Sample(t, dir)

	_, err := p.Run(context.Background(), sample)
	require.NoError(t, err)
	_, err = p.Run(context.Background(), sample)
	require.NoError(t, err)

	assert.Equal(t, uint64(4), countBook(t, filepath.Join(dir, "index"), "Alpha"))
}

func TestRun_MissingArchive(t *testing.T) {
	dir := t.TempDir()
	led := openLedger(t, dir)
	p := newPipeline(t, dir, Options{Ledger: led})

	report, err := p.Run(context.Background(), filepath.Join(dir, "missing.zip"))

	require.Error(t, err)
	assert.Equal(t, ferrors.ErrCodeResourceOpen, ferrors.GetCode(err))
	run, lerr := led.Get(context.Background(), report.RunID)
	require.NoError(t, lerr)
	assert.Equal(t, ledger.StatusFailed, run.Status)
}

func TestRun_IndexHeldByReader(t *testing.T) {
	// Given: an existing index opened by a reader
	dir := t.TempDir()
	p := newPipeline(t, dir, Options{})
	sample := archivetest.Sample(t, dir)
	_, err := p.Run(context.Background(), sample)
	require.NoError(t, err)

	r, err := engine.OpenReader(filepath.Join(dir, "index"))
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	// When: loading again while the reader is open
	_, err = p.Run(context.Background(), sample)

	// Then: the retries give up with the locked code
	require.Error(t, err)
	assert.Equal(t, ferrors.ErrCodeIndexLocked, ferrors.GetCode(err))
}

func TestRun_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	led := openLedger(t, dir)
	p := newPipeline(t, dir, Options{Ledger: led})
	sample := archivetest.Sample(t, dir)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := p.Run(ctx, sample)

	assert.True(t, errors.Is(err, context.Canceled))
	runs, lerr := led.Recent(context.Background(), 1)
	require.NoError(t, lerr)
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunID, runs[0].ID)
}

func TestNew_RequiresIndexPath(t *testing.T) {
	_, err := New(Options{})

	assert.Equal(t, ferrors.ErrCodeInvalidInput, ferrors.GetCode(err))
}

func TestDescribe(t *testing.T) {
	doc := transform.Document{Raw: archive.NewDocument(
		archive.Field{Name: archive.FieldChapter, Value: 4},
		archive.Field{Name: archive.FieldBook, Value: "Beta"},
	)}
	assert.Equal(t, "Beta/4", Describe(doc))

	noBook := transform.Document{Raw: archive.NewDocument(archive.Field{Name: archive.FieldChapter, Value: 2})}
	assert.Equal(t, "?/2", Describe(noBook))

	assert.Equal(t, "doc-1", Describe(transform.Document{ID: "doc-1"}))
}

func TestSummarize(t *testing.T) {
	reports := []*Report{
		{Accepted: 3, Skipped: 1},
		{Accepted: 2, Rejected: 1, FirstFailure: &load.Failure{Err: errors.New("x")}},
	}

	stats := Summarize(reports, time.Second)

	assert.Equal(t, ui.CompletionStats{
		Archives: 2, Accepted: 5, Rejected: 1, Skipped: 1, Duration: time.Second, Errors: 1,
	}, stats)
}
