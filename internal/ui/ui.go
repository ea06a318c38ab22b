// Package ui renders ingest progress: a bubbletea view on interactive
// terminals and line-oriented text everywhere else.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage is a step of loading one archive.
type Stage int

const (
	// StageExtracting reads pages out of the archive.
	StageExtracting Stage = iota
	// StageLoading transforms and writes documents.
	StageLoading
	// StageCommitting makes the loaded documents visible.
	StageCommitting
	// StageComplete indicates the run is over.
	StageComplete
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageExtracting:
		return "Extract"
	case StageLoading:
		return "Load"
	case StageCommitting:
		return "Commit"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage tag for plain text output.
func (s Stage) Icon() string {
	switch s {
	case StageExtracting:
		return "EXTRACT"
	case StageLoading:
		return "LOAD"
	case StageCommitting:
		return "COMMIT"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent is a progress update. Total is zero while unknown.
type ProgressEvent struct {
	Stage   Stage
	Current int
	Total   int
	Archive string
	Message string
}

// ErrorEvent reports a rejected document or a warning.
type ErrorEvent struct {
	Archive  string
	Document string
	Err      error
	IsWarn   bool
}

// CompletionStats summarizes a finished run.
type CompletionStats struct {
	Archives int
	Accepted int64
	Rejected int64
	Skipped  int
	Duration time.Duration
	Errors   int
	Warnings int
}

// Renderer displays progress.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// UpdateProgress updates progress display.
	UpdateProgress(event ProgressEvent)

	// AddError adds an error to display.
	AddError(event ErrorEvent)

	// Complete marks rendering as complete with summary.
	Complete(stats CompletionStats)

	// Stop stops the renderer and cleans up.
	Stop() error
}

// Config configures the UI renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	// Target is the index location shown in the header.
	Target string
}

// ConfigOption modifies a Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) { c.ForcePlain = force }
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) { c.NoColor = noColor }
}

// WithTarget sets the index location shown in the header.
func WithTarget(target string) ConfigOption {
	return func(c *Config) { c.Target = target }
}

// NewConfig creates a Config writing to output.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer returns a TUI renderer for interactive terminals and a plain
// renderer for CI, pipes, or when plain output is forced.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}

	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// Discard is a Renderer that shows nothing.
type Discard struct{}

func (Discard) Start(context.Context) error  { return nil }
func (Discard) UpdateProgress(ProgressEvent) {}
func (Discard) AddError(ErrorEvent)          {}
func (Discard) Complete(CompletionStats)     {}
func (Discard) Stop() error                  { return nil }

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}

var _ Renderer = Discard{}
