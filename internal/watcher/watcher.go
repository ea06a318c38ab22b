package watcher

import (
	"path/filepath"
	"strings"
	"time"
)

// Operation is a file system operation.
type Operation int

const (
	// OpCreate indicates a new file.
	OpCreate Operation = iota
	// OpModify indicates an existing file was rewritten.
	OpModify
	// OpDelete indicates a file was removed.
	OpDelete
	// OpRename indicates a file was renamed away.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is a debounced change to one watched file.
type FileEvent struct {
	// Path is the absolute path of the file.
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Options configures the watcher.
type Options struct {
	// DebounceWindow is how long a path must stay quiet before it is
	// reported. Default: 750ms
	DebounceWindow time.Duration

	// PollInterval is the scan interval of the polling fallback. Default: 2s
	PollInterval time.Duration

	// EventBufferSize is the size of the event channel buffer. Default: 100
	EventBufferSize int

	// Suffixes selects the watched files. Default: .zip
	Suffixes []string

	// ForcePolling skips fsnotify.
	ForcePolling bool
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  750 * time.Millisecond,
		PollInterval:    2 * time.Second,
		EventBufferSize: 100,
		Suffixes:        []string{".zip"},
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow == 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval == 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	if len(o.Suffixes) == 0 {
		o.Suffixes = defaults.Suffixes
	}
	return o
}

// matches reports whether path is a watched file. Hidden files are skipped
// so that partial downloads such as .name.zip.part never match.
func (o Options) matches(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	lower := strings.ToLower(base)
	for _, s := range o.Suffixes {
		if strings.HasSuffix(lower, strings.ToLower(s)) {
			return true
		}
	}
	return false
}
