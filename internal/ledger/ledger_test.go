package ledger

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/Aman-CERP/folio/internal/errors"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "state", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

// stepClock returns a clock that advances by one second per call.
func stepClock(start time.Time) func() time.Time {
	now := start
	return func() time.Time {
		t := now
		now = now.Add(time.Second)
		return t
	}
}

// TS01: A run is recorded at Begin and completed at Finish
func TestLedger_BeginFinish(t *testing.T) {
	// Given: a ledger with a stepping clock
	l := openTestLedger(t)
	l.now = stepClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	// When: recording a run that accepted every document
	run, err := l.Begin(context.Background(), "sample.zip")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, run.Status)
	run.Accepted = 3
	run.Skipped = 1
	require.NoError(t, l.Finish(context.Background(), run))

	// Then: the stored run matches
	got, err := l.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, "sample.zip", got.Source)
	assert.Equal(t, int64(3), got.Accepted)
	assert.Equal(t, int64(1), got.Skipped)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, time.Second, got.Duration())
	assert.True(t, got.StartedAt.Equal(run.StartedAt))
}

// TS02: Rejected documents mark the run partial and keep the first failure
func TestLedger_PartialRun(t *testing.T) {
	l := openTestLedger(t)

	run, err := l.Begin(context.Background(), "sample.zip")
	require.NoError(t, err)
	run.Accepted = 2
	run.Rejected = 1
	run.FailureDoc = "Alpha/3"
	run.FailureError = "boom"
	require.NoError(t, l.Finish(context.Background(), run))

	got, err := l.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, got.Status)
	assert.Equal(t, "Alpha/3", got.FailureDoc)
	assert.Equal(t, "boom", got.FailureError)
}

func TestLedger_ExplicitStatusIsKept(t *testing.T) {
	l := openTestLedger(t)
	run, err := l.Begin(context.Background(), "bad.zip")
	require.NoError(t, err)

	run.Status = StatusFailed
	run.FailureError = "commit failed"
	require.NoError(t, l.Finish(context.Background(), run))

	got, err := l.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
}

func TestLedger_RecentNewestFirst(t *testing.T) {
	l := openTestLedger(t)
	l.now = stepClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	for _, src := range []string{"a.zip", "b.zip", "c.zip"} {
		_, err := l.Begin(context.Background(), src)
		require.NoError(t, err)
	}

	runs, err := l.Recent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c.zip", runs[0].Source)
	assert.Equal(t, "b.zip", runs[1].Source)
	assert.Zero(t, runs[0].Duration(), "unfinished runs have no duration")
}

func TestLedger_FinishUnknownRun(t *testing.T) {
	l := openTestLedger(t)

	err := l.Finish(context.Background(), &Run{ID: "missing"})

	require.Error(t, err)
	assert.Equal(t, ferrors.ErrCodeLedger, ferrors.GetCode(err))
}

func TestLedger_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(path)
	require.NoError(t, err)
	run, err := l.Begin(context.Background(), "sample.zip")
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	got, err := l.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, "sample.zip", got.Source)
}

func TestNew_SharedDatabase(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "shared.db")+"?_journal_mode=WAL")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	if err := db.Ping(); err != nil {
		t.Skipf("sqlite3 driver unavailable: %v", err)
	}

	l, err := New(db)
	require.NoError(t, err)
	_, err = l.Begin(context.Background(), "sample.zip")
	require.NoError(t, err)

	// Close leaves a borrowed database open.
	require.NoError(t, l.Close())
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestNew_NilDatabase(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}
