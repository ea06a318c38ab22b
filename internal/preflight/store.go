package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Aman-CERP/folio/internal/engine"
	ferrors "github.com/Aman-CERP/folio/internal/errors"
	"github.com/Aman-CERP/folio/internal/ledger"
)

// CheckIndex opens the index read-only and reports its document count. A
// missing index or one held by a writer is a warning; corruption fails.
func (c *Checker) CheckIndex(path string) CheckResult {
	result := CheckResult{
		Name:     "index",
		Required: true,
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		result.Status = StatusWarn
		result.Message = "not created yet"
		result.Details = "Run 'folio index <archive.zip>' to create it"
		return result
	}

	r, err := engine.OpenReader(path)
	if err != nil {
		switch ferrors.GetCode(err) {
		case ferrors.ErrCodeIndexLocked:
			result.Status = StatusWarn
			result.Message = "an ingest is writing the index"
		default:
			result.Status = StatusFail
			result.Message = err.Error()
			var fe *ferrors.FolioError
			if errors.As(err, &fe) {
				result.Details = fe.Suggestion
			}
		}
		return result
	}
	defer func() { _ = r.Close() }()

	n, err := r.DocCount()
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot count documents: %v", err)
		return result
	}
	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d documents", n)
	result.Details = path
	return result
}

// CheckLedger reads the most recent run from the ledger. The ledger is
// optional, so problems only warn.
func (c *Checker) CheckLedger(ctx context.Context, path string) CheckResult {
	result := CheckResult{
		Name: "ledger",
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		result.Status = StatusWarn
		result.Message = "no runs recorded"
		return result
	}

	l, err := ledger.Open(path)
	if err != nil {
		result.Status = StatusWarn
		result.Message = err.Error()
		return result
	}
	defer func() { _ = l.Close() }()

	runs, err := l.Recent(ctx, 1)
	if err != nil {
		result.Status = StatusWarn
		result.Message = err.Error()
		return result
	}
	result.Status = StatusPass
	if len(runs) == 0 {
		result.Message = "no runs recorded"
		return result
	}
	last := runs[0]
	result.Message = fmt.Sprintf("last run %s (%s, %d accepted)",
		last.StartedAt.Local().Format("2006-01-02 15:04"), last.Status, last.Accepted)
	result.Details = last.Source
	return result
}
