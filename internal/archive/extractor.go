package archive

import (
	"archive/zip"
	"iter"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	ferrors "github.com/Aman-CERP/folio/internal/errors"
)

// ParentGroup selects the directory that directly contains a page as its group.
const ParentGroup = -1

// Extractor turns a chapter archive into raw documents.
type Extractor struct {
	clock        func() time.Time
	groupSegment int
	logger       *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithClock sets the time source used for add_timestamp.
func WithClock(clock func() time.Time) Option {
	return func(e *Extractor) { e.clock = clock }
}

// WithGroupSegment selects the zero-based path segment naming a page's group.
// ParentGroup (the default) uses the page's parent directory.
func WithGroupSegment(segment int) Option {
	return func(e *Extractor) { e.groupSegment = segment }
}

// WithLogger sets the logger used for skip diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) { e.logger = logger }
}

// NewExtractor creates an Extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		clock:        time.Now,
		groupSegment: ParentGroup,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract opens the archive at path, resolves its side index and returns a
// lazy single-pass sequence of documents. The caller must Close it.
func (e *Extractor) Extract(path string) (*Documents, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, ferrors.ResourceOpen(path, err)
	}

	names, err := resolveFrom(&rc.Reader, path)
	if err != nil {
		_ = rc.Close()
		return nil, err
	}

	return &Documents{
		extractor: e,
		rc:        rc,
		path:      path,
		names:     names,
		source:    filepath.Base(path),
		stamp:     e.clock().UTC(),
	}, nil
}

// Documents is a lazy, finite, single-pass sequence of raw documents read
// from one archive. It is not safe for concurrent use.
type Documents struct {
	extractor *Extractor
	rc        *zip.ReadCloser
	path      string
	names     map[int]string
	source    string
	stamp     time.Time

	pos     int
	skipped int
	err     error
	closed  bool
}

// Next advances to the next page document. It returns false at the end of
// the archive, after a read failure (see Err) or once closed.
func (d *Documents) Next() (Document, bool) {
	if d.closed {
		return Document{}, false
	}
	for d.pos < len(d.rc.File) {
		f := d.rc.File[d.pos]
		d.pos++

		doc, ok, err := d.page(f)
		if err != nil {
			d.err = ferrors.New(ferrors.ErrCodeArchiveRead, "cannot read archive entry "+f.Name, err).
				WithDetail("path", d.path)
			_ = d.Close()
			return Document{}, false
		}
		if ok {
			return doc, true
		}
	}
	_ = d.Close()
	return Document{}, false
}

// All returns the remaining documents as an iterator. Breaking out of the
// loop closes the archive.
func (d *Documents) All() iter.Seq[Document] {
	return func(yield func(Document) bool) {
		for {
			doc, ok := d.Next()
			if !ok {
				return
			}
			if !yield(doc) {
				_ = d.Close()
				return
			}
		}
	}
}

// Err returns the read failure that ended the sequence, if any.
func (d *Documents) Err() error {
	return d.err
}

// Skipped returns how many page-suffixed entries were not documents.
func (d *Documents) Skipped() int {
	return d.skipped
}

// Source returns the archive's base file name.
func (d *Documents) Source() string {
	return d.source
}

// Index returns the group-id to display-name mapping of the archive.
func (d *Documents) Index() map[int]string {
	return d.names
}

// Close releases the archive. It is safe to call more than once.
func (d *Documents) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.rc.Close()
}

func (d *Documents) page(f *zip.File) (Document, bool, error) {
	if f.FileInfo().IsDir() || !strings.HasSuffix(f.Name, PageSuffix) {
		return Document{}, false, nil
	}
	chapter, ok := chapterOf(f.Name)
	if !ok {
		d.skipped++
		d.extractor.logger.Debug("page_skipped",
			slog.String("entry", f.Name),
			slog.String("reason", "non-numeric name"))
		return Document{}, false, nil
	}

	text, err := readEntry(f)
	if err != nil {
		return Document{}, false, err
	}

	var doc Document
	doc.set(FieldChapter, chapter)
	doc.set(FieldBook, d.book(f.Name))
	addSynopsisAndKeywords(&doc, text)
	doc.set(FieldText, text)
	doc.set(FieldAddTimestamp, d.stamp)
	doc.set(FieldSource, d.source)
	return doc, true, nil
}

// book resolves the display name of the page's group, or nil.
func (d *Documents) book(name string) any {
	segments := strings.Split(name, "/")
	idx := d.extractor.groupSegment
	if idx < 0 {
		idx = len(segments) - 2
	}
	if idx < 0 || idx >= len(segments)-1 {
		return nil
	}
	id, err := strconv.Atoi(segments[idx])
	if err != nil {
		return nil
	}
	if display, ok := d.names[id]; ok {
		return display
	}
	return nil
}

func chapterOf(name string) (int, bool) {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	n, err := strconv.Atoi(base)
	if err != nil {
		return 0, false
	}
	return n, true
}

func addSynopsisAndKeywords(doc *Document, text string) {
	var haveSynopsis, haveKeywords bool
	for _, line := range splitLines(text) {
		if !haveSynopsis {
			if s, ok := MatchSynopsis(line); ok {
				doc.set(FieldSynopsis, s)
				haveSynopsis = true
				continue
			}
		}
		if !haveKeywords {
			if kw, ok := MatchKeywords(line); ok && len(kw) > 0 {
				doc.set(FieldKeywords, kw)
				haveKeywords = true
			}
		}
		if haveSynopsis && haveKeywords {
			return
		}
	}
}
