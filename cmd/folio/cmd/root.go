// Package cmd provides the CLI commands for folio.
package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/folio/internal/config"
	ferrors "github.com/Aman-CERP/folio/internal/errors"
	"github.com/Aman-CERP/folio/internal/ledger"
	"github.com/Aman-CERP/folio/internal/logging"
	"github.com/Aman-CERP/folio/internal/profiling"
	"github.com/Aman-CERP/folio/pkg/version"
)

// Global flags
var (
	projectDir     string
	debugMode      bool
	loggingCleanup func()

	profileOpts profiling.Options
	profile     *profiling.Session
)

// NewRootCmd creates the root command for the folio CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folio",
		Short: "Load HTML chapter archives into a search index and query them",
		Long: `folio extracts chapters from zip archives of HTML pages, loads them
into a local full-text index, and answers queries over the result.

  folio index bible.zip            load an archive
  folio search 'book:Genesis +text:light'
  folio watch ./drop               load archives as they arrive
  folio serve                      expose the index to MCP clients`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("folio version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&projectDir, "dir", ".", "Directory holding .folio.yaml; relative index and ledger paths resolve against it")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to stderr and ~/.folio/logs/")

	cmd.PersistentFlags().StringVar(&profileOpts.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newRunsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and prints a formatted error on failure.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		_, _ = fmt.Fprint(root.ErrOrStderr(), ferrors.FormatForCLI(err))
	}
	return err
}

// startProfilingAndLogging installs the file logger and starts any
// requested profiles. serve never mirrors logs to stderr because MCP
// clients may read it.
func startProfilingAndLogging(cmd *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	if c, err := config.Load(projectDir); err == nil {
		cfg.Level = c.Logging.Level
	}
	switch {
	case debugMode && cmd.Name() == "serve":
		cfg = logging.MCPConfig()
	case debugMode:
		cfg = logging.DebugConfig()
	}

	cleanup, err := logging.SetupDefault(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.Debug("command_started",
		slog.String("command", cmd.CommandPath()),
		slog.String("version", version.Version))

	if profileOpts.Enabled() {
		profile, err = profiling.Start(profileOpts)
		if err != nil {
			return err
		}
	}
	return nil
}

func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	var err error
	if profile != nil {
		err = profile.Stop()
		profile = nil
	}
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return err
}

// loadConfig loads configuration for the --dir project.
func loadConfig() (*config.Config, error) {
	dir, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", projectDir, err)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, ferrors.ConfigError(err.Error(), err)
	}
	return cfg, nil
}

// openLedger opens the run ledger. A ledger that cannot be opened is logged
// and skipped; the index is the system of record.
func openLedger(cfg *config.Config) *ledger.Ledger {
	if cfg.Ledger.Path == "" {
		return nil
	}
	l, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		slog.Warn("ledger_unavailable",
			slog.String("path", cfg.Ledger.Path),
			slog.String("error", err.Error()))
		return nil
	}
	return l
}
