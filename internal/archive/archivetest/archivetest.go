// Package archivetest builds small chapter archives for tests.
package archivetest

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// Entry is one file inside a test archive.
type Entry struct {
	Name    string
	Content string
}

// Write creates a zip archive named name under dir and returns its path.
func Write(tb testing.TB, dir, name string, entries ...Entry) string {
	tb.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		tb.Fatalf("create archive: %v", err)
	}
	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		if err != nil {
			tb.Fatalf("create entry %s: %v", e.Name, err)
		}
		if _, err := w.Write([]byte(e.Content)); err != nil {
			tb.Fatalf("write entry %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		tb.Fatalf("close zip writer: %v", err)
	}
	if err := f.Close(); err != nil {
		tb.Fatalf("close archive: %v", err)
	}
	return path
}

// IndexLine renders a side-index line for group id and display name.
func IndexLine(id int, name string) string {
	return fmt.Sprintf(`<li><a href="%d/1.htm" title="[%d chapters]">%s</a></li>`, id, id, name)
}

// Page renders a chapter page with a title line, a keywords meta line and body.
func Page(title, keywords, body string) string {
	return "<html>\n<head>\n" +
		"<title>" + title + "</title>\n" +
		`<meta name="keywords" content="` + keywords + `">` + "\n" +
		"</head>\n<body>" + body + "</body>\n</html>\n"
}

// Sample writes the two-group archive used across packages: groups
// 1 -> Alpha and 2 -> Beta with pages 1/1.htm, 1/2.htm and 2/1.htm.
func Sample(tb testing.TB, dir string) string {
	tb.Helper()
	index := "<html><body><ul>\n" + IndexLine(1, "Alpha") + "\n" + IndexLine(2, "Beta") + "\n</ul></body></html>\n"
	return Write(tb, dir, "sample.zip",
		Entry{Name: "index.htm", Content: index},
		Entry{Name: "1/1.htm", Content: Page("Alpha 1, Sample Bible", "Audio, Bible, Holy", "<p>In the beginning was the word</p>")},
		Entry{Name: "1/2.htm", Content: Page("Alpha 2, Sample Bible", "Audio, Bible, Holy", "<p>And the light shined in darkness</p>")},
		Entry{Name: "2/1.htm", Content: Page("Beta 1, Sample Bible", "Audio, Bible, Epistle", "<p>The elder unto the wellbeloved Gaius</p>")},
	)
}
