// Package preflight checks that the machine and the configured index and
// ledger locations can support an ingest before one starts.
//
// Checks cover free disk space and write access where the index lives,
// the open file limit, whether the index opens (and how many documents it
// holds) and whether the run ledger is readable:
//
//	checker := preflight.New(preflight.WithOutput(os.Stdout))
//	results := checker.RunAll(ctx, preflight.Target{IndexPath: idx, LedgerPath: db})
//	checker.PrintResults(results)
//	if checker.HasCriticalFailures(results) {
//	    // refuse to ingest
//	}
package preflight
