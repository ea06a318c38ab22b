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
	ferrors "github.com/Aman-CERP/folio/internal/errors"
	"github.com/Aman-CERP/folio/internal/output"
	"github.com/Aman-CERP/folio/internal/pipeline"
	"github.com/Aman-CERP/folio/internal/ui"
	"github.com/Aman-CERP/folio/internal/watcher"
)

type watchFlags struct {
	indexFlags
	debounce time.Duration
	poll     bool
}

func newWatchCmd() *cobra.Command {
	var flags watchFlags

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Load archives as they are dropped into a directory",
		Long: `Watch a directory and load every .zip archive that appears or changes.

An archive is loaded once it has stopped changing for the debounce window,
so copies in progress are not read half-written. Archives already in the
directory are loaded at start. Removing an archive does not remove its
documents from the index.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runWatch(ctx, cmd, cfg, flags, args[0])
		},
	}

	cmd.Flags().DurationVar(&flags.debounce, "debounce", 0, "Quiet period before an archive is loaded (default from config)")
	cmd.Flags().BoolVar(&flags.poll, "poll", false, "Poll the directory instead of using file system notifications")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "Concurrent transform and load workers (default from config)")
	cmd.Flags().IntVar(&flags.batchSize, "batch-size", 0, "Documents per writer batch (default from config)")
	cmd.Flags().BoolVar(&flags.noColor, "no-color", false, "Disable colored output")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, cfg *config.Config, flags watchFlags, dir string) error {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return ferrors.ResourceOpen(dir, err).WithSuggestion("Pass an existing directory")
	}

	debounce := flags.debounce
	if debounce <= 0 {
		d, err := cfg.WatchDebounce()
		if err != nil {
			return ferrors.ConfigError(err.Error(), err)
		}
		debounce = d
	}

	// Progress for a long-running watch is line-oriented.
	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(true),
		ui.WithNoColor(flags.noColor || ui.DetectNoColor()),
		ui.WithTarget(cfg.Index.Path),
	))
	p, closeLedger, err := newPipeline(cfg, renderer, flags.indexFlags)
	if err != nil {
		return err
	}
	defer closeLedger()

	w, err := watcher.New(watcher.Options{DebounceWindow: debounce, ForcePolling: flags.poll})
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	startErr := make(chan error, 1)
	go func() { startErr <- w.Start(ctx, dir) }()

	out := output.New(cmd.OutOrStdout())
	out.Statusf("", "Watching %s for archives (Ctrl+C to stop)", dir)
	slog.Info("watch_started",
		slog.String("dir", dir),
		slog.String("mode", w.Mode()),
		slog.Duration("debounce", debounce))

	if err := renderer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start progress display: %w", err)
	}
	defer func() { _ = renderer.Stop() }()

	var (
		reports []*pipeline.Report
		started = time.Now()
		errs    = w.Errors()
	)
	for {
		select {
		case <-ctx.Done():
			renderer.Complete(pipeline.Summarize(reports, time.Since(started)))
			return nil

		case err := <-startErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("watch %s: %w", dir, err)
			}
			return nil

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Warn("watch_error", slog.String("error", err.Error()))

		case event, ok := <-w.Events():
			if !ok {
				return nil
			}
			if event.Operation == watcher.OpDelete || event.Operation == watcher.OpRename {
				slog.Info("archive_removed", slog.String("path", event.Path))
				continue
			}
			report, err := p.Run(ctx, event.Path)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					continue
				}
				out.Errorf("%s: %v", event.Path, err)
				slog.Error("watch_load_failed",
					slog.String("path", event.Path),
					slog.String("error", err.Error()))
				continue
			}
			reports = append(reports, report)
			out.Successf("%s: %d loaded, %d rejected", report.Source, report.Accepted, report.Rejected)
		}
	}
}
