package archive

import (
	"archive/zip"
	"io"
	"log/slog"
	"strconv"
	"strings"

	ferrors "github.com/Aman-CERP/folio/internal/errors"
)

// ResolveIndex opens the archive at path and returns its group-id to
// display-name mapping. An archive without an index entry yields an empty
// mapping.
func ResolveIndex(path string) (map[int]string, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, ferrors.ResourceOpen(path, err)
	}
	defer func() { _ = rc.Close() }()

	return resolveFrom(&rc.Reader, path)
}

func resolveFrom(r *zip.Reader, path string) (map[int]string, error) {
	names := make(map[int]string)
	for _, f := range r.File {
		if !strings.HasSuffix(f.Name, IndexSuffix) {
			continue
		}
		content, err := readEntry(f)
		if err != nil {
			return nil, ferrors.New(ferrors.ErrCodeArchiveRead, "cannot read index entry "+f.Name, err).
				WithDetail("path", path)
		}
		for id, name := range ParseIndex(content) {
			names[id] = name
		}
	}
	if len(names) == 0 {
		slog.Warn("archive_index_empty", slog.String("path", path))
	}
	return names, nil
}

// ParseIndex applies IndexLinePattern to every line of content. Lines that do
// not match are skipped.
func ParseIndex(content string) map[int]string {
	names := make(map[int]string)
	for _, line := range splitLines(content) {
		m := IndexLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		names[id] = strings.TrimSpace(m[2])
	}
	return names
}

func readEntry(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
