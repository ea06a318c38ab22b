//go:build ignore

// Package main generates synthetic chapter archives for benchmarking ingest.
// Usage: go run scripts/generate-test-corpus.go -archives 4 -books 20 -chapters 50 -output testdata/bench
package main

import (
	"archive/zip"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numArchives = flag.Int("archives", 4, "Number of archives to generate")
	numBooks    = flag.Int("books", 20, "Books (groups) per archive")
	numChapters = flag.Int("chapters", 50, "Chapters per book")
	numLines    = flag.Int("lines", 30, "Body paragraphs per chapter")
	outputDir   = flag.String("output", "testdata/bench", "Output directory")
	seed        = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var (
	bookNames = []string{
		"Genesis", "Exodus", "Leviticus", "Numbers", "Deuteronomy", "Joshua",
		"Judges", "Ruth", "Samuel", "Kings", "Chronicles", "Ezra", "Nehemiah",
		"Esther", "Job", "Psalms", "Proverbs", "Ecclesiastes", "Isaiah",
		"Jeremiah", "Lamentations", "Ezekiel", "Daniel", "Hosea", "Joel",
	}
	keywordPool = []string{
		"Bible", "Holy", "Scripture", "Gospel", "Epistle", "Law", "Prophets",
		"Wisdom", "History", "Poetry",
	}
	words = []string{
		"light", "darkness", "water", "earth", "heaven", "word", "spirit",
		"people", "king", "house", "land", "city", "mountain", "river",
		"voice", "hand", "day", "night", "bread", "wine", "shepherd", "gate",
		"stone", "fire", "cloud", "servant", "law", "covenant", "promise",
	}
)

func main() {
	flag.Parse()
	rand.Seed(*seed)

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generating %d archives (%d books x %d chapters) in %s...\n",
		*numArchives, *numBooks, *numChapters, *outputDir)

	for i := 0; i < *numArchives; i++ {
		path := filepath.Join(*outputDir, fmt.Sprintf("corpus-%03d.zip", i))
		if err := writeArchive(path, i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating %s: %v\n", path, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Generated %d archives, %d chapters total.\n",
		*numArchives, *numArchives**numBooks**numChapters)
}

func writeArchive(path string, n int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	zw := zip.NewWriter(f)
	var index strings.Builder
	index.WriteString("<html><body><ul>\n")
	for b := 1; b <= *numBooks; b++ {
		name := bookName(n, b)
		fmt.Fprintf(&index, "<li><a href=\"%d/1.htm\" title=\"[%d chapters]\">%s</a></li>\n", b, b, name)
		for c := 1; c <= *numChapters; c++ {
			if err := writeEntry(zw, fmt.Sprintf("%d/%d.htm", b, c), chapterPage(name, c)); err != nil {
				return err
			}
		}
	}
	index.WriteString("</ul></body></html>\n")
	if err := writeEntry(zw, "index.htm", index.String()); err != nil {
		return err
	}
	return zw.Close()
}

func writeEntry(zw *zip.Writer, name, content string) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write([]byte(content))
	return err
}

// bookName keeps display names free of digits so both the side index and
// the title synopsis parse.
func bookName(archive, book int) string {
	base := bookNames[(book-1)%len(bookNames)]
	if round := (book - 1) / len(bookNames); round > 0 || archive > 0 {
		return fmt.Sprintf("%s %c%c", base, 'A'+rune(archive%26), 'a'+rune(round%26))
	}
	return base
}

func chapterPage(book string, chapter int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<html>\n<head>\n<title>Audio Books: Holy Bible 1 %s %d</title>\n", book, chapter)
	fmt.Fprintf(&b, "<meta name=\"keywords\" content=\"Audio, %s\">\n", strings.Join(pickKeywords(), ", "))
	b.WriteString("</head>\n<body>\n")
	for i := 0; i < *numLines; i++ {
		fmt.Fprintf(&b, "<p>%d %s</p>\n", i+1, sentence())
	}
	b.WriteString("</body>\n</html>\n")
	return b.String()
}

func pickKeywords() []string {
	k := 1 + rand.Intn(3)
	perm := rand.Perm(len(keywordPool))[:k]
	out := make([]string, k)
	for i, p := range perm {
		out[i] = keywordPool[p]
	}
	return out
}

func sentence() string {
	n := 8 + rand.Intn(12)
	parts := make([]string, n)
	for i := range parts {
		parts[i] = words[rand.Intn(len(words))]
	}
	s := strings.Join(parts, " ")
	return strings.ToUpper(s[:1]) + s[1:] + "."
}
