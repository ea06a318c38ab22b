package archive

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/folio/internal/archive/archivetest"
	ferrors "github.com/Aman-CERP/folio/internal/errors"
)

var fixedNow = time.Date(2024, 3, 1, 12, 30, 0, 0, time.FixedZone("EST", -5*3600))

func fixedClock() time.Time { return fixedNow }

func collect(t *testing.T, docs *Documents) []Document {
	t.Helper()
	var out []Document
	for doc := range docs.All() {
		out = append(out, doc)
	}
	require.NoError(t, docs.Err())
	return out
}

// TS01: Index lines resolve group ids to trimmed names
func TestParseIndex_TolerantMatching(t *testing.T) {
	// Given: index content with matching, padded and unrelated lines
	content := strings.Join([]string{
		archivetest.IndexLine(1, "Genesis"),
		`<a title="[62 chapters]"> 1 John </a>`,
		"<p>no group here</p>",
		`<a title="[x]">Broken</a>`,
	}, "\r\n")

	// When: parsing
	names := ParseIndex(content)

	// Then: only matching lines contribute, names are trimmed
	assert.Equal(t, map[int]string{1: "Genesis", 62: "1 John"}, names)
}

func TestResolveIndex_MissingIndexIsEmpty(t *testing.T) {
	path := archivetest.Write(t, t.TempDir(), "noindex.zip",
		archivetest.Entry{Name: "1/1.htm", Content: "<p>x</p>"})

	names, err := ResolveIndex(path)

	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestResolveIndex_UnreadableArchive(t *testing.T) {
	_, err := ResolveIndex(filepath.Join(t.TempDir(), "missing.zip"))

	require.Error(t, err)
	assert.Equal(t, ferrors.ErrCodeResourceOpen, ferrors.GetCode(err))
}

// TS02: The two-group archive yields (Alpha,1), (Alpha,2), (Beta,1)
func TestExtract_SampleArchive(t *testing.T) {
	// Given: the sample archive and a fixed clock
	path := archivetest.Sample(t, t.TempDir())
	docs, err := NewExtractor(WithClock(fixedClock)).Extract(path)
	require.NoError(t, err)
	defer func() { _ = docs.Close() }()

	// When: draining the sequence
	got := collect(t, docs)

	// Then: three documents with resolved books and numeric chapters
	require.Len(t, got, 3)
	type pair struct {
		book    any
		chapter any
	}
	var pairs []pair
	for _, d := range got {
		b, _ := d.Get(FieldBook)
		c, _ := d.Get(FieldChapter)
		pairs = append(pairs, pair{b, c})
	}
	assert.Equal(t, []pair{{"Alpha", 1}, {"Alpha", 2}, {"Beta", 1}}, pairs)
	assert.Equal(t, 1, docs.Skipped(), "index.htm is not a document")

	first := got[0]
	assert.Equal(t, []string{FieldChapter, FieldBook, FieldSynopsis, FieldKeywords, FieldText, FieldAddTimestamp, FieldSource}, first.Names())
	ts, _ := first.Get(FieldAddTimestamp)
	assert.Equal(t, time.UTC, ts.(time.Time).Location())
	assert.True(t, fixedNow.Equal(ts.(time.Time)))
	src, _ := first.Get(FieldSource)
	assert.Equal(t, "sample.zip", src)
	syn, _ := first.Get(FieldSynopsis)
	assert.Equal(t, "Alpha 1", syn)
	kw, _ := first.Get(FieldKeywords)
	assert.Equal(t, []string{"Bible", "Holy"}, kw)
}

// TS03: Text is extracted byte for byte
func TestExtract_TextIsLossless(t *testing.T) {
	body := "<html>\r\n<title>Psalms 23, KJV</title>\n\t<p>The LORD is my shepherd; I shall not want.</p>  \n"
	path := archivetest.Write(t, t.TempDir(), "psalms.zip",
		archivetest.Entry{Name: "index.htm", Content: archivetest.IndexLine(19, "Psalms")},
		archivetest.Entry{Name: "kj/19/23.htm", Content: body})

	docs, err := NewExtractor().Extract(path)
	require.NoError(t, err)
	got := collect(t, docs)

	require.Len(t, got, 1)
	text, _ := got[0].Get(FieldText)
	assert.Equal(t, body, text)
	book, _ := got[0].Get(FieldBook)
	assert.Equal(t, "Psalms", book)
}

// TS04: Document count equals numeric page entries
func TestExtract_NonNumericPagesExcluded(t *testing.T) {
	// Given: numeric, non-numeric and non-page entries
	path := archivetest.Write(t, t.TempDir(), "mixed.zip",
		archivetest.Entry{Name: "index.htm", Content: archivetest.IndexLine(1, "Alpha")},
		archivetest.Entry{Name: "1/1.htm", Content: "one"},
		archivetest.Entry{Name: "1/intro.htm", Content: "intro"},
		archivetest.Entry{Name: "1/2.html", Content: "wrong suffix"},
		archivetest.Entry{Name: "1/3.htm", Content: "three"},
		archivetest.Entry{Name: "notes.txt", Content: "text"})

	// When: extracting
	docs, err := NewExtractor().Extract(path)
	require.NoError(t, err)
	got := collect(t, docs)

	// Then: only 1.htm and 3.htm are documents
	require.Len(t, got, 2)
	c, _ := got[1].Get(FieldChapter)
	assert.Equal(t, 3, c)
}

func TestExtract_UnknownGroupYieldsNilBook(t *testing.T) {
	path := archivetest.Write(t, t.TempDir(), "orphans.zip",
		archivetest.Entry{Name: "index.htm", Content: archivetest.IndexLine(1, "Alpha")},
		archivetest.Entry{Name: "9/1.htm", Content: "unknown group"},
		archivetest.Entry{Name: "appendix/1.htm", Content: "non-numeric group"},
		archivetest.Entry{Name: "1.htm", Content: "no group"})

	docs, err := NewExtractor().Extract(path)
	require.NoError(t, err)
	got := collect(t, docs)

	require.Len(t, got, 3)
	for _, d := range got {
		book, ok := d.Get(FieldBook)
		assert.True(t, ok)
		assert.Nil(t, book)
	}
}

func TestExtract_FixedGroupSegment(t *testing.T) {
	path := archivetest.Write(t, t.TempDir(), "kjv.zip",
		archivetest.Entry{Name: "kj/index.htm", Content: archivetest.IndexLine(40, "Matthew")},
		archivetest.Entry{Name: "kj/40/5/1.htm", Content: "nested"})

	docs, err := NewExtractor(WithGroupSegment(1)).Extract(path)
	require.NoError(t, err)
	got := collect(t, docs)

	require.Len(t, got, 1)
	book, _ := got[0].Get(FieldBook)
	assert.Equal(t, "Matthew", book)
}

// TS05: Re-extraction is idempotent
func TestExtract_Idempotent(t *testing.T) {
	path := archivetest.Sample(t, t.TempDir())
	ex := NewExtractor(WithClock(fixedClock))

	first, err := ex.Extract(path)
	require.NoError(t, err)
	a := collect(t, first)
	second, err := ex.Extract(path)
	require.NoError(t, err)
	b := collect(t, second)

	require.Len(t, b, len(a))
	for i := range a {
		assert.True(t, a[i].Equal(b[i]), "document %d differs", i)
	}
}

func TestDocuments_SinglePassAndEarlyClose(t *testing.T) {
	path := archivetest.Sample(t, t.TempDir())
	docs, err := NewExtractor().Extract(path)
	require.NoError(t, err)

	for range docs.All() {
		break
	}

	_, ok := docs.Next()
	assert.False(t, ok, "sequence is closed after an early break")
	assert.NoError(t, docs.Close())
}

func TestMatchSynopsis(t *testing.T) {
	tests := []struct {
		line string
		want string
		ok   bool
	}{
		{"<title>Audio Books: Holy Bible 3 John 1</title>", "John 1", true},
		{"<title>Genesis 1, King James Version</title>", "Genesis 1", true},
		{"<title>  , nothing</title>", "", false},
		{"<p>no title</p>", "", false},
	}
	for _, tt := range tests {
		got, ok := MatchSynopsis(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}
}

func TestMatchKeywords_DropsSentinel(t *testing.T) {
	kw, ok := MatchKeywords(`<meta name="keywords" content="Audio, Bible, Holy">`)
	require.True(t, ok)
	assert.Equal(t, []string{"Bible", "Holy"}, kw)

	kw, ok = MatchKeywords(`<meta name="keywords" content="Bible, Audio">`)
	require.True(t, ok)
	assert.Equal(t, []string{"Bible", "Audio"}, kw)
}

func TestMatchKeywords_DropsEmptyTokens(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{`<meta name="keywords" content="">`, nil},
		{`<meta name="keywords" content="Audio">`, nil},
		{`<meta name="keywords" content="Bible, , Holy">`, []string{"Bible", "Holy"}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			kw, ok := MatchKeywords(tt.line)

			require.True(t, ok)
			if tt.want == nil {
				assert.Empty(t, kw)
				return
			}
			assert.Equal(t, tt.want, kw)
		})
	}
}

func TestExtract_EmptyKeywordsOmitted(t *testing.T) {
	path := archivetest.Write(t, t.TempDir(), "bare.zip",
		archivetest.Entry{Name: "index.htm", Content: archivetest.IndexLine(1, "Alpha")},
		archivetest.Entry{Name: "1/1.htm", Content: archivetest.Page("Plain", "", "<p>one</p>")})

	docs, err := NewExtractor().Extract(path)
	require.NoError(t, err)
	got := collect(t, docs)

	require.Len(t, got, 1)
	_, ok := got[0].Get(FieldKeywords)
	assert.False(t, ok)
}
