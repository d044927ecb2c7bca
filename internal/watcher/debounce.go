package watcher

import (
	"sync"
	"time"
)

// ChangeKind classifies a raw filesystem notification. Creates and writes
// collapse into ChangeAdd; removes and renames into ChangeDelete.
type ChangeKind int

const (
	ChangeAdd ChangeKind = iota
	ChangeDelete
)

// String returns the wire name of the kind.
func (k ChangeKind) String() string {
	if k == ChangeDelete {
		return "delete"
	}
	return "add"
}

// debouncedChange is one pending debounced event.
type debouncedChange struct {
	kind  ChangeKind
	timer *time.Timer
}

// Debouncer coalesces rapid filesystem events per path. When events for the
// same path arrive within the window, only the most recent kind fires.
// A zero window fires synchronously.
type Debouncer struct {
	window   time.Duration
	callback func(path string, kind ChangeKind)

	mu      sync.Mutex
	pending map[string]*debouncedChange
	stopped bool
}

// NewDebouncer creates a new debouncer with the given window and callback.
func NewDebouncer(window time.Duration, callback func(path string, kind ChangeKind)) *Debouncer {
	return &Debouncer{
		window:   window,
		callback: callback,
		pending:  make(map[string]*debouncedChange),
	}
}

// Add queues an event for debouncing.
func (d *Debouncer) Add(path string, kind ChangeKind) {
	if d.window <= 0 {
		d.mu.Lock()
		stopped := d.stopped
		d.mu.Unlock()
		if !stopped && d.callback != nil {
			d.callback(path, kind)
		}
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if existing, ok := d.pending[path]; ok {
		existing.timer.Stop()
		existing.kind = kind
		existing.timer = time.AfterFunc(d.window, func() {
			d.fire(path)
		})
		return
	}

	d.pending[path] = &debouncedChange{
		kind: kind,
		timer: time.AfterFunc(d.window, func() {
			d.fire(path)
		}),
	}
}

// fire executes the callback for a path.
func (d *Debouncer) fire(path string) {
	d.mu.Lock()
	change, ok := d.pending[path]
	if !ok {
		d.mu.Unlock()
		return
	}
	delete(d.pending, path)
	stopped := d.stopped
	d.mu.Unlock()

	if !stopped && d.callback != nil {
		d.callback(path, change.kind)
	}
}

// Stop stops all pending timers and drops their events.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for _, change := range d.pending {
		change.timer.Stop()
	}
	d.pending = make(map[string]*debouncedChange)
}
