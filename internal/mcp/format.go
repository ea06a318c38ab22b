package mcp

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Aman-CERP/folio/internal/ledger"
	"github.com/Aman-CERP/folio/internal/search"
)

// snippetLength bounds long text values in markdown output.
const snippetLength = 240

// FormatSearchResults formats assembled rows as markdown.
func FormatSearchResults(query string, res *search.Results) string {
	if res == nil || len(res.Rows) == 0 {
		return fmt.Sprintf("No results found for \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search Results for \"%s\"\n\n", query)
	total := fmt.Sprintf("%d", res.TotalHits)
	if res.TotalIsApproximate {
		total = "at least " + total
	}
	fmt.Fprintf(&sb, "Showing %d of %s match", len(res.Rows), total)
	if res.TotalHits != 1 {
		sb.WriteString("es")
	}
	sb.WriteString("\n\n")

	for i := range res.Rows {
		formatRow(&sb, i+1, &res.Rows[i])
	}
	return sb.String()
}

func formatRow(sb *strings.Builder, num int, r *search.Row) {
	fmt.Fprintf(sb, "### %d. %s (score: %.2f)\n\n", num, title(r), r.Score)
	for _, name := range r.Names() {
		v, _ := r.Get(name)
		fmt.Fprintf(sb, "- **%s:** %s\n", name, snippet(formatValue(v)))
	}
	sb.WriteString("\n")
}

// title names a row by book and chapter when both are present.
func title(r *search.Row) string {
	book := r.Text("book")
	chapter, hasChapter := r.Get("chapter")
	switch {
	case book != "" && hasChapter:
		return book + " " + formatValue(chapter)
	case book != "":
		return book
	default:
		return r.ID
	}
}

func formatValue(v any) string {
	switch t := v.(type) {
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = formatValue(e)
		}
		return strings.Join(parts, ", ")
	case []byte:
		return fmt.Sprintf("%d bytes", len(t))
	default:
		return fmt.Sprint(t)
	}
}

func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= snippetLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:snippetLength-3]) + "..."
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}

// toSearchHit converts an assembled row to the tool output format.
func toSearchHit(r *search.Row) SearchHit {
	return SearchHit{ID: r.ID, Score: r.Score, Fields: r.Map()}
}

func toRunInfo(r ledger.Run) RunInfo {
	return RunInfo{
		ID:         r.ID,
		Source:     r.Source,
		Status:     string(r.Status),
		Accepted:   r.Accepted,
		Rejected:   r.Rejected,
		StartedAt:  r.StartedAt.UTC().Format("2006-01-02T15:04:05Z"),
		FailureDoc: r.FailureDoc,
	}
}
