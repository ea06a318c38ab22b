// Package output formats folio's command output as text or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Aman-CERP/folio/internal/ledger"
	"github.com/Aman-CERP/folio/internal/search"
)

// Format selects how results are written.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown format %q (expected text or json)", s)
	}
}

// maxValueWidth bounds a field value on one text line.
const maxValueWidth = 100

// Writer provides formatted output for CLI.
type Writer struct {
	out    io.Writer
	format Format
}

// New creates a text Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out, format: FormatText}
}

// NewWithFormat creates a Writer for the given format.
func NewWithFormat(out io.Writer, format Format) *Writer {
	return &Writer{out: out, format: format}
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✓", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("!", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("✗", msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// JSON writes v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Results writes assembled search results. Text output lists each row's
// fields in assembly order.
func (w *Writer) Results(res *search.Results) error {
	if w.format == FormatJSON {
		return w.JSON(res)
	}

	total := fmt.Sprintf("%d", res.TotalHits)
	if res.TotalIsApproximate {
		total = "≥" + total
	}
	_, _ = fmt.Fprintf(w.out, "%s hits, showing %d\n", total, len(res.Rows))

	for i := range res.Rows {
		row := &res.Rows[i]
		_, _ = fmt.Fprintf(w.out, "\n%d. %s  (score %.3f)\n", i+1, row.ID, row.Score)
		tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
		for _, name := range row.Names() {
			v, _ := row.Get(name)
			_, _ = fmt.Fprintf(tw, "   %s\t%s\n", name, clip(formatValue(v), maxValueWidth))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// Runs writes ledger runs, newest first.
func (w *Writer) Runs(runs []ledger.Run) error {
	if w.format == FormatJSON {
		if runs == nil {
			runs = []ledger.Run{}
		}
		return w.JSON(runs)
	}
	if len(runs) == 0 {
		w.Status("", "No ingest runs recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "STARTED\tSOURCE\tSTATUS\tACCEPTED\tREJECTED\tDURATION")
	_, _ = fmt.Fprintln(tw, "-------\t------\t------\t--------\t--------\t--------")
	for _, r := range runs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Source,
			r.Status,
			r.Accepted,
			r.Rejected,
			r.Duration().Round(time.Millisecond))
	}
	return tw.Flush()
}

func formatValue(v any) string {
	switch t := v.(type) {
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = formatValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []byte:
		return fmt.Sprintf("<%d bytes>", len(t))
	default:
		return fmt.Sprint(t)
	}
}

// clip flattens whitespace and truncates s to width runes.
func clip(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
