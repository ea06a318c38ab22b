package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer holds events per path until the path has been quiet for the
// window. Events for the same path are merged:
//   - CREATE + MODIFY = CREATE (file is still new)
//   - CREATE + DELETE = nothing (file never really existed)
//   - MODIFY + DELETE = DELETE (file is gone)
//   - DELETE + CREATE = MODIFY (file was replaced)
type Debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	pending map[string]*pendingEvent
	output  chan FileEvent
	stopped bool
}

type pendingEvent struct {
	event   FileEvent
	firstOp Operation
	due     time.Time
	timer   *time.Timer
}

// NewDebouncer creates a debouncer with the given quiet window.
func NewDebouncer(window time.Duration, buffer int) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]*pendingEvent),
		output:  make(chan FileEvent, buffer),
	}
}

// Add records event and restarts its path's quiet timer.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	path := event.Path
	existing, ok := d.pending[path]
	if !ok {
		pe := &pendingEvent{event: event, firstOp: event.Operation, due: time.Now().Add(d.window)}
		pe.timer = time.AfterFunc(d.window, func() { d.flush(path, pe) })
		d.pending[path] = pe
		return
	}

	merged := coalesce(existing, event)
	if merged == nil {
		existing.timer.Stop()
		delete(d.pending, path)
		return
	}
	existing.event = *merged
	existing.due = time.Now().Add(d.window)
	existing.timer.Reset(d.window)
}

func coalesce(existing *pendingEvent, next FileEvent) *FileEvent {
	switch existing.firstOp {
	case OpCreate:
		switch next.Operation {
		case OpModify:
			kept := existing.event
			kept.Timestamp = next.Timestamp
			return &kept
		case OpDelete, OpRename:
			return nil
		}
	case OpDelete:
		if next.Operation == OpCreate {
			replaced := next
			replaced.Operation = OpModify
			return &replaced
		}
	}
	return &next
}

// flush emits pe if it is still the pending event for path.
func (d *Debouncer) flush(path string, pe *pendingEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// A timer that fired while Add held the lock has been rescheduled.
	if d.stopped || d.pending[path] != pe || time.Now().Before(pe.due) {
		return
	}
	delete(d.pending, path)

	select {
	case d.output <- pe.event:
	default:
		slog.Warn("debouncer output full, dropping event",
			slog.String("path", path),
			slog.String("op", pe.event.Operation.String()))
	}
}

// Pending returns the number of paths waiting for their quiet window.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Output returns the channel of debounced events.
func (d *Debouncer) Output() <-chan FileEvent {
	return d.output
}

// Stop drops pending events and closes the output channel. Safe to call
// multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	for _, pe := range d.pending {
		pe.timer.Stop()
	}
	d.pending = nil
	close(d.output)
}
