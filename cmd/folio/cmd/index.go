package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/folio/internal/config"
	"github.com/Aman-CERP/folio/internal/output"
	"github.com/Aman-CERP/folio/internal/pipeline"
	"github.com/Aman-CERP/folio/internal/ui"
)

type indexFlags struct {
	noTUI     bool
	noColor   bool
	workers   int
	batchSize int
	skipCheck bool
}

func newIndexCmd() *cobra.Command {
	var flags indexFlags

	cmd := &cobra.Command{
		Use:   "index <archive.zip>...",
		Short: "Load archives into the index",
		Long: `Load one or more zip archives of HTML chapter pages into the index.

Every page whose file name is a number becomes one document. Documents that
fail to load are skipped and counted; the first failure is reported at the
end. The rest of the archive is still committed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !flags.skipCheck {
				if err := checkBeforeIndex(cmd, cfg.Index.Path); err != nil {
					return err
				}
			}
			return runIndex(ctx, cmd, cfg, flags, args)
		},
	}

	cmd.Flags().BoolVar(&flags.noTUI, "no-tui", false, "Disable TUI mode, use plain text output")
	cmd.Flags().BoolVar(&flags.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "Concurrent transform and load workers (default from config)")
	cmd.Flags().IntVar(&flags.batchSize, "batch-size", 0, "Documents per writer batch (default from config)")
	cmd.Flags().BoolVar(&flags.skipCheck, "skip-check", false, "Skip disk space and permission checks")

	return cmd
}

// newPipeline builds a pipeline from configuration.
func newPipeline(cfg *config.Config, renderer ui.Renderer, flags indexFlags) (*pipeline.Pipeline, func(), error) {
	workers := cfg.Ingest.Workers
	if flags.workers > 0 {
		workers = flags.workers
	}
	batch := cfg.Index.BatchSize
	if flags.batchSize > 0 {
		batch = flags.batchSize
	}

	led := openLedger(cfg)
	closeLedger := func() {
		if led != nil {
			_ = led.Close()
		}
	}

	p, err := pipeline.New(pipeline.Options{
		IndexPath:    cfg.Index.Path,
		Workers:      workers,
		BatchSize:    batch,
		GroupSegment: cfg.Ingest.GroupSegment,
		Renderer:     renderer,
		Ledger:       led,
		Logger:       slog.Default(),
	})
	if err != nil {
		closeLedger()
		return nil, nil, err
	}
	return p, closeLedger, nil
}

func runIndex(ctx context.Context, cmd *cobra.Command, cfg *config.Config, flags indexFlags, archives []string) error {
	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(flags.noTUI),
		ui.WithNoColor(flags.noColor || ui.DetectNoColor()),
		ui.WithTarget(cfg.Index.Path),
	))

	p, closeLedger, err := newPipeline(cfg, renderer, flags)
	if err != nil {
		return err
	}
	defer closeLedger()

	if err := renderer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start progress display: %w", err)
	}

	start := time.Now()
	var (
		reports []*pipeline.Report
		runErr  error
	)
	for _, path := range archives {
		report, err := p.Run(ctx, path)
		reports = append(reports, report)
		if err != nil {
			runErr = fmt.Errorf("%s: %w", path, err)
			break
		}
	}

	renderer.Complete(pipeline.Summarize(reports, time.Since(start)))
	_ = renderer.Stop()

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("indexing interrupted: %w", runErr)
		}
		return runErr
	}

	out := output.New(cmd.OutOrStdout())
	for _, r := range reports {
		if r.FirstFailure != nil {
			out.Warningf("%s: %d document(s) rejected, first: %s: %v",
				r.Source, r.Rejected, pipeline.Describe(r.FirstFailure.Document), r.FirstFailure.Err)
		}
	}
	return nil
}
