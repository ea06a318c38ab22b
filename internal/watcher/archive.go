package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports archives appearing in, changing in, or leaving one
// directory. fsnotify is the primary mechanism with polling as the fallback.
type Watcher struct {
	opts      Options
	fsWatcher *fsnotify.Watcher
	polling   bool
	debouncer *Debouncer
	errors    chan error
	stopCh    chan struct{}
	dir       string
	mu        sync.RWMutex
	stopped   bool
}

// New creates a watcher. It falls back to polling when fsnotify is
// unavailable.
func New(opts Options) (*Watcher, error) {
	opts = opts.WithDefaults()

	w := &Watcher{
		opts:      opts,
		debouncer: NewDebouncer(opts.DebounceWindow, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
		polling:   opts.ForcePolling,
	}

	if !w.polling {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			slog.Warn("fsnotify unavailable, polling instead", slog.String("error", err.Error()))
			w.polling = true
		} else {
			w.fsWatcher = fsw
		}
	}
	return w, nil
}

// Start watches dir until ctx is cancelled or Stop is called. Archives
// already in dir are reported as created.
func (w *Watcher) Start(ctx context.Context, dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	w.mu.Lock()
	w.dir = abs
	w.mu.Unlock()

	p := newPoller(abs, w.opts, w.debouncer.Add)

	if !w.polling {
		if err := w.fsWatcher.Add(abs); err != nil {
			slog.Warn("fsnotify cannot watch directory, polling instead",
				slog.String("dir", abs),
				slog.String("error", err.Error()))
			_ = w.fsWatcher.Close()
			w.mu.Lock()
			w.fsWatcher = nil
			w.polling = true
			w.mu.Unlock()
		}
	}

	if w.polling {
		p.run(ctx, w.stopCh, w.emitError)
		return w.finish(ctx)
	}

	if err := p.detectChanges(); err != nil {
		return fmt.Errorf("initial scan: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return w.finish(ctx)
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

func (w *Watcher) finish(ctx context.Context) error {
	_ = w.Stop()
	return ctx.Err()
}

// handle converts a watched fsnotify event and hands it to the debouncer.
func (w *Watcher) handle(event fsnotify.Event) {
	if !w.opts.matches(event.Name) {
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return // chmod
	}

	w.debouncer.Add(FileEvent{
		Path:      event.Name,
		Operation: op,
		Timestamp: time.Now(),
	})
}

func (w *Watcher) emitError(err error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return
	}
	select {
	case w.errors <- err:
	default:
	}
}

// Stop stops the watcher and closes its channels. Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)

	w.debouncer.Stop()
	if w.fsWatcher != nil {
		_ = w.fsWatcher.Close()
	}
	close(w.errors)
	return nil
}

// Events returns the channel of debounced archive events.
func (w *Watcher) Events() <-chan FileEvent {
	return w.debouncer.Output()
}

// Errors returns the channel of non-fatal watch errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Mode returns "fsnotify" or "polling".
func (w *Watcher) Mode() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.polling {
		return "polling"
	}
	return "fsnotify"
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.dir
}
