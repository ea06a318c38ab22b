package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	ferrors "github.com/Aman-CERP/folio/internal/errors"
	"github.com/Aman-CERP/folio/internal/output"
	"github.com/Aman-CERP/folio/internal/preflight"
)

// doctorReport is the JSON shape of folio doctor.
type doctorReport struct {
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the index and ledger locations are usable",
		Long: `Run diagnostics for the configured project.

Checks:
  - Disk space where the index lives (100MB minimum)
  - Write permissions there
  - File descriptor limit (1024 minimum)
  - Whether the index opens, and how many documents it holds
  - The most recent run in the ledger

A missing index or ledger is a warning, not a failure.`,
		Example: `  folio doctor
  folio doctor --verbose
  folio doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runDoctor(ctx, cmd, verbose, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runDoctor(ctx context.Context, cmd *cobra.Command, verbose, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	checker := preflight.New(
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	)
	results := checker.RunAll(ctx, preflight.Target{
		IndexPath:  cfg.Index.Path,
		LedgerPath: cfg.Ledger.Path,
	})

	if jsonOutput {
		if err := output.New(cmd.OutOrStdout()).JSON(doctorReport{
			Status: checker.SummaryStatus(results),
			Checks: results,
		}); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if checker.HasCriticalFailures(results) {
		return ferrors.New(ferrors.ErrCodeUsageState, "system check failed", nil).
			WithSuggestion("Run 'folio doctor --verbose' for details")
	}
	return nil
}

// checkBeforeIndex runs the checks an ingest cannot succeed without.
func checkBeforeIndex(cmd *cobra.Command, indexPath string) error {
	checker := preflight.New(preflight.WithOutput(cmd.ErrOrStderr()))
	dir := preflight.ExistingAncestor(indexPath)
	results := []preflight.CheckResult{
		checker.CheckDiskSpace(dir),
		checker.CheckWritePermissions(dir),
	}
	if checker.HasCriticalFailures(results) {
		checker.PrintResults(results)
		return ferrors.New(ferrors.ErrCodeUsageState, "pre-flight checks failed", nil).
			WithSuggestion("Free disk space or fix permissions, or pass --skip-check")
	}
	return nil
}
