// Package watcher bridges raw filesystem notifications to synchronization
// actions: filtering, debouncing, de-duplication, and the manual pending
// queues.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/brianly1003/janus/internal/config"
	"github.com/brianly1003/janus/internal/domain"
	"github.com/brianly1003/janus/internal/domain/events"
	"github.com/brianly1003/janus/internal/domain/ports"
	"github.com/brianly1003/janus/internal/filter"
)

// State is the lifecycle state of a Watcher.
type State int

const (
	// StateCreated is the initial state: configured but not yet started.
	StateCreated State = iota
	// StateWatching means events are flowing (or, in observe mode, would be
	// accepted if injected).
	StateWatching
	// StateDisabled suppresses event effects; configuration and pending sets
	// stay intact and the state is reversible via EnableEvents.
	StateDisabled
	// StateStopped is terminal: OS watch resources are released.
	StateStopped
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateWatching:
		return "watching"
	case StateDisabled:
		return "disabled"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// change is one classified filesystem notification.
type change struct {
	path string
	kind ChangeKind
}

// Watcher observes one watch directory and drives a Synchroniser.
//
// All event effects (filtering, dedup, pending-set mutation) run on a single
// consumer goroutine fed by a bounded channel, so the notification path and
// the manual-flush path never race on shared state.
type Watcher struct {
	id      string
	synchro ports.Synchroniser
	hub     ports.EventHub
	filters *filter.Set
	pending *PendingSet
	bufSize int

	mu           sync.RWMutex
	cfg          config.WatchConfig
	state        State
	lastAccepted string // single-slot add/modify dedup memo
	ctx          context.Context
	cancel       context.CancelFunc

	fs        *fsnotify.Watcher
	debouncer *Debouncer
	incoming  chan change
	done      chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithEventBuffer sets the size of the bounded notification channel.
func WithEventBuffer(n int) Option {
	return func(w *Watcher) {
		if n > 0 {
			w.bufSize = n
		}
	}
}

// New creates a watcher bound to one configuration, a filter set and a
// synchroniser. The watcher does not observe anything until Start.
func New(cfg config.WatchConfig, filters *filter.Set, synchro ports.Synchroniser, hub ports.EventHub, opts ...Option) (*Watcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w := &Watcher{
		id:      uuid.New().String(),
		cfg:     cfg.Clone(),
		filters: filters,
		synchro: synchro,
		hub:     hub,
		pending: NewPendingSet(),
		bufSize: 256,
		state:   StateCreated,
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// ID returns the watcher's unique identifier.
func (w *Watcher) ID() string {
	return w.id
}

// Config returns a copy of the bound watch configuration.
func (w *Watcher) Config() config.WatchConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg.Clone()
}

// Name returns the watch name.
func (w *Watcher) Name() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg.Name
}

// State returns the current lifecycle state.
func (w *Watcher) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// Pending exposes the manual-mode pending sets.
func (w *Watcher) Pending() *PendingSet {
	return w.pending
}

// Equal reports whether two watchers carry deep-equal configurations. The
// synchroniser and other runtime collaborators never participate, so
// value-equal configurations compare equal across process restarts.
func (w *Watcher) Equal(o *Watcher) bool {
	if o == nil {
		return false
	}
	return w.Config().Equal(o.Config())
}

// Start transitions Created -> Watching. Unless the configuration is in
// observe mode, an OS-level watch is installed on the watch directory (and,
// for recursive watches, its subtree).
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	switch w.state {
	case StateStopped:
		w.mu.Unlock()
		return domain.ErrWatcherStopped
	case StateWatching, StateDisabled:
		w.mu.Unlock()
		return nil
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w.ctx = watchCtx
	w.cancel = cancel
	w.incoming = make(chan change, w.bufSize)
	w.done = make(chan struct{})
	w.debouncer = NewDebouncer(w.cfg.Delay, w.enqueue)
	w.state = StateWatching
	observe := w.cfg.Observe
	watchDir := w.cfg.WatchDir
	w.mu.Unlock()

	go w.run(watchCtx)

	if observe {
		log.Debug().Str("watch", w.Name()).Msg("observe mode: no OS watch installed")
		return nil
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		w.Stop()
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	w.mu.Lock()
	w.fs = fs
	w.mu.Unlock()

	if err := w.addWatches(watchDir); err != nil {
		w.Stop()
		return err
	}

	go w.eventLoop(watchCtx, fs)

	log.Info().
		Str("watch", w.Name()).
		Str("path", watchDir).
		Bool("recursive", w.cfg.Recursive).
		Msg("watcher started")
	return nil
}

// Stop disables events and releases OS watch resources. Terminal: a stopped
// watcher cannot be restarted.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.state == StateStopped {
		w.mu.Unlock()
		return nil
	}
	prev := w.state
	w.state = StateStopped
	cancel := w.cancel
	fs := w.fs
	debouncer := w.debouncer
	done := w.done
	w.fs = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if debouncer != nil {
		debouncer.Stop()
	}

	var err error
	if fs != nil {
		err = fs.Close()
	}
	if done != nil && prev != StateCreated {
		<-done
	}

	log.Info().Str("watch", w.Name()).Msg("watcher stopped")
	return err
}

// DisableEvents suppresses event effects. Pending sets and configuration
// remain intact; EnableEvents reverses it.
func (w *Watcher) DisableEvents() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateWatching {
		w.state = StateDisabled
	}
}

// EnableEvents re-enables event effects after DisableEvents.
func (w *Watcher) EnableEvents() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateDisabled {
		w.state = StateWatching
	}
}

// AddFilter appends a filter to the bound configuration and to the live set.
func (w *Watcher) AddFilter(f filter.Filter) error {
	if err := f.Validate(); err != nil {
		return err
	}
	w.mu.Lock()
	w.cfg.Filters = append(w.cfg.Filters, f.Clone())
	w.mu.Unlock()
	w.filters.Append(f)
	return nil
}

// Notify injects one classified change into the pipeline. This is the raw
// event entry point used by the fsnotify loop, and the only way to drive an
// observe-mode watcher.
func (w *Watcher) Notify(path string, kind ChangeKind) {
	w.mu.RLock()
	debouncer := w.debouncer
	w.mu.RUnlock()
	if debouncer == nil {
		return
	}
	debouncer.Add(path, kind)
}

// Synchronise flushes the pending sets. With nothing pending it emits a
// no-changes notification and performs zero synchroniser calls. Otherwise
// every pending copy and delete is submitted (each call independent and
// asynchronous, with no batch atomicity), both sets are cleared, and a
// summary notification reports the pre-clear counts.
func (w *Watcher) Synchronise() {
	copies, dels := w.pending.TakeAll()
	if len(copies) == 0 && len(dels) == 0 {
		w.hub.Publish(events.NewNoChangesEvent(w.Name()))
		return
	}

	for _, path := range copies {
		w.dispatch(path, events.SyncOpAdd)
	}
	for _, path := range dels {
		w.dispatch(path, events.SyncOpDelete)
	}

	log.Info().
		Str("watch", w.Name()).
		Int("copied", len(copies)).
		Int("deleted", len(dels)).
		Msg("manual flush submitted")
	w.hub.Publish(events.NewSyncSummaryEvent(w.Name(), len(copies), len(dels)))
}

// SynchroniseAsync runs Synchronise on its own goroutine.
func (w *Watcher) SynchroniseAsync() {
	go w.Synchronise()
}

// FullSynchronise runs a full tree reconciliation. Cancellation is tied to
// the watcher: Stop aborts an in-flight reconciliation.
func (w *Watcher) FullSynchronise() error {
	w.mu.RLock()
	ctx := w.ctx
	w.mu.RUnlock()
	return w.synchro.FullSynchronise(ctx)
}

// enqueue hands a debounced change to the consumer goroutine. The channel is
// bounded; if the consumer cannot keep up the change is dropped with a
// warning rather than blocking the debounce timer.
func (w *Watcher) enqueue(path string, kind ChangeKind) {
	w.mu.RLock()
	incoming := w.incoming
	w.mu.RUnlock()
	if incoming == nil {
		return
	}
	select {
	case incoming <- change{path: path, kind: kind}:
	default:
		log.Warn().
			Str("watch", w.Name()).
			Str("path", path).
			Msg("event dropped: change queue full")
	}
}

// run is the single serializing consumer of the change queue.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-w.incoming:
			w.process(c)
		}
	}
}

// process applies the per-event pipeline: filter, dedup, cross-cancel, then
// dispatch or enqueue.
func (w *Watcher) process(c change) {
	w.mu.RLock()
	state := w.state
	autoAdd := w.cfg.AutoAdd
	autoDelete := w.cfg.AutoDelete
	w.mu.RUnlock()

	if state != StateWatching {
		return
	}
	if w.filters.ShouldExclude(c.path) {
		log.Debug().Str("watch", w.Name()).Str("path", c.path).Msg("event excluded by filter")
		return
	}

	switch c.kind {
	case ChangeAdd:
		w.mu.Lock()
		if c.path == w.lastAccepted {
			w.mu.Unlock()
			log.Debug().Str("watch", w.Name()).Str("path", c.path).Msg("duplicate add dropped")
			return
		}
		w.lastAccepted = c.path
		w.mu.Unlock()

		w.pending.CancelDelete(c.path)
		if autoAdd {
			w.dispatch(c.path, events.SyncOpAdd)
		} else {
			w.pending.AddCopy(c.path)
		}

	case ChangeDelete:
		w.pending.CancelCopy(c.path)
		if autoDelete {
			w.dispatch(c.path, events.SyncOpDelete)
		} else {
			w.pending.AddDelete(c.path)
		}
	}
}

// dispatch submits one synchroniser operation asynchronously and reports the
// outcome on the hub.
func (w *Watcher) dispatch(path string, op events.SyncOp) {
	w.mu.RLock()
	ctx := w.ctx
	w.mu.RUnlock()

	go func() {
		var err error
		switch op {
		case events.SyncOpDelete:
			err = w.synchro.Delete(ctx, path)
		default:
			err = w.synchro.Add(ctx, path)
		}
		if err != nil {
			log.Warn().
				Err(err).
				Str("watch", w.Name()).
				Str("path", path).
				Str("op", string(op)).
				Msg("sync operation failed")
			w.hub.Publish(events.NewSyncErrorEvent(w.Name(), path, op, err))
			return
		}
		w.hub.Publish(events.NewFileSyncedEvent(w.Name(), path, op))
	}()
}

// addWatches installs the OS watch on root and, for recursive watches, every
// non-excluded subdirectory.
func (w *Watcher) addWatches(root string) error {
	if !w.cfg.Recursive {
		if err := w.fs.Add(root); err != nil {
			return fmt.Errorf("failed to watch %s: %w", root, err)
		}
		return nil
	}
	return w.addWatchRecursive(root)
}

func (w *Watcher) addWatchRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip entries we cannot access
		}
		if !info.IsDir() {
			return nil
		}
		if path != root && w.filters.ShouldExclude(path) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to add watch")
			return nil
		}
		return nil
	})
}

// eventLoop drains fsnotify events into the pipeline.
func (w *Watcher) eventLoop(ctx context.Context, fs *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fs.Events:
			if !ok {
				return
			}
			w.handleRaw(event)

		case err, ok := <-fs.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Str("watch", w.Name()).Msg("watcher error")
		}
	}
}

// handleRaw classifies one fsnotify event and feeds the debouncer.
func (w *Watcher) handleRaw(event fsnotify.Event) {
	switch {
	case event.Op.Has(fsnotify.Create):
		// New directories under a recursive watch need their own OS watch.
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.mu.RLock()
			recursive := w.cfg.Recursive
			fs := w.fs
			w.mu.RUnlock()
			if recursive && fs != nil {
				_ = w.addWatchRecursive(event.Name)
			}
		}
		w.Notify(event.Name, ChangeAdd)
	case event.Op.Has(fsnotify.Write):
		w.Notify(event.Name, ChangeAdd)
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		w.Notify(event.Name, ChangeDelete)
	}
	// Chmod events carry no content change and are ignored.
}
