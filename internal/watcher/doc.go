// Package watcher reports archives dropped into a directory.
//
// fsnotify is used where the platform supports it, with directory polling as
// the fallback for network mounts and container volumes. Events are debounced
// per path: an archive is reported once it has been quiet for the debounce
// window, so a file that is still being copied is not picked up half-written.
//
// Usage:
//
//	w, err := watcher.New(watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go func() { _ = w.Start(ctx, "/srv/drop") }()
//
//	for event := range w.Events() {
//	    if event.Operation != watcher.OpDelete {
//	        // load event.Path
//	    }
//	}
package watcher
