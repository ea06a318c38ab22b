package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// poller detects changes by listing the directory on every tick. It is the
// fallback when fsnotify cannot watch the directory.
type poller struct {
	dir      string
	interval time.Duration
	opts     Options
	state    map[string]fileSnapshot
	emit     func(FileEvent)
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

func newPoller(dir string, opts Options, emit func(FileEvent)) *poller {
	return &poller{
		dir:      dir,
		interval: opts.PollInterval,
		opts:     opts,
		state:    make(map[string]fileSnapshot),
		emit:     emit,
	}
}

// run polls until ctx is done or stop is closed. Archives present at start
// are reported as created so that a restart picks up what was dropped
// while nothing was watching.
func (p *poller) run(ctx context.Context, stop <-chan struct{}, errs func(error)) {
	if err := p.detectChanges(); err != nil {
		errs(err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if err := p.detectChanges(); err != nil {
				errs(err)
			}
		}
	}
}

// detectChanges compares the directory listing with the previous one.
func (p *poller) detectChanges() error {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return fmt.Errorf("list %s: %w", p.dir, err)
	}

	now := time.Now()
	current := make(map[string]fileSnapshot, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !p.opts.matches(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue // removed between ReadDir and Info
		}
		path := filepath.Join(p.dir, entry.Name())
		snap := fileSnapshot{modTime: info.ModTime(), size: info.Size()}
		current[path] = snap

		prev, seen := p.state[path]
		switch {
		case !seen:
			p.emit(FileEvent{Path: path, Operation: OpCreate, Timestamp: now})
		case prev != snap:
			p.emit(FileEvent{Path: path, Operation: OpModify, Timestamp: now})
		}
	}

	for path := range p.state {
		if _, ok := current[path]; !ok {
			p.emit(FileEvent{Path: path, Operation: OpDelete, Timestamp: now})
		}
	}

	p.state = current
	return nil
}
