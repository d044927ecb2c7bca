// Package app orchestrates the janus core: it owns the configuration list,
// the store handle, the notification hub and the live watchers, replacing
// any process-wide mutable state with one explicit context value.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/brianly1003/janus/internal/config"
	"github.com/brianly1003/janus/internal/domain"
	"github.com/brianly1003/janus/internal/domain/events"
	"github.com/brianly1003/janus/internal/filter"
	"github.com/brianly1003/janus/internal/hub"
	"github.com/brianly1003/janus/internal/journal"
	"github.com/brianly1003/janus/internal/store"
	"github.com/brianly1003/janus/internal/syncer"
	"github.com/brianly1003/janus/internal/watcher"
)

// App is the application context owning all core components.
type App struct {
	cfg *config.Config
	fs  afero.Fs

	hub     *hub.Hub
	store   *store.Store
	journal *journal.Journal

	mu       sync.RWMutex
	watchers []*watcher.Watcher
	values   map[string]interface{}
	running  bool
	ctx      context.Context
	cancel   context.CancelFunc

	// persistMu serializes store rewrites: concurrent writers would
	// interleave into a file the strict reader cannot recover from.
	persistMu sync.Mutex
}

// Option configures an App.
type Option func(*App)

// WithFs overrides the filesystem, for tests.
func WithFs(fs afero.Fs) Option {
	return func(a *App) {
		a.fs = fs
	}
}

// New creates a new App instance.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:    cfg,
		fs:     afero.NewOsFs(),
		hub:    hub.New(),
		values: make(map[string]interface{}),
	}
	for _, opt := range opts {
		opt(a)
	}

	storePath := cfg.Store.Path
	if storePath == "" {
		var err error
		storePath, err = store.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve store path: %w", err)
		}
	}
	a.store = store.New(a.fs, storePath)

	return a, nil
}

// Hub returns the notification hub.
func (a *App) Hub() *hub.Hub {
	return a.hub
}

// Store returns the configuration store.
func (a *App) Store() *store.Store {
	return a.store
}

// Journal returns the sync-history journal, nil when disabled.
func (a *App) Journal() *journal.Journal {
	return a.journal
}

// Start loads the persisted configuration, constructs and starts all
// watchers, and blocks until ctx is cancelled.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("application is already running")
	}
	a.running = true
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.mu.Unlock()

	if err := a.hub.Start(); err != nil {
		return fmt.Errorf("failed to start notification hub: %w", err)
	}

	if a.cfg.Journal.Enabled {
		path := a.cfg.Journal.Path
		if path == "" {
			path = journal.DefaultPath(a.store.Path())
		}
		j, err := journal.Open(path)
		if err != nil {
			// Best-effort: run without history rather than refuse to start.
			log.Warn().Err(err).Msg("journal unavailable")
		} else {
			a.journal = j
			a.hub.Subscribe(j.Subscriber("journal"))
		}
	}

	if err := a.store.Initialise(); err != nil {
		return err
	}

	data, err := a.store.Load()
	if err != nil {
		var formatErr *store.FormatError
		if !errors.As(err, &formatErr) {
			return err
		}
		// Fatal format error: surface it and start the session empty.
		log.Error().Err(err).Str("path", a.store.Path()).Msg("store unreadable, starting with empty configuration")
		a.hub.Publish(events.NewStoreLoadFailedEvent(a.store.Path(), err))
		data = store.NewData()
	}

	a.mu.Lock()
	a.values = data.Values
	a.mu.Unlock()

	for _, wc := range data.Watches {
		if _, err := a.startWatcher(wc); err != nil {
			log.Error().Err(err).Str("watch", wc.Name).Msg("failed to start watcher")
		}
	}

	log.Info().Int("watches", len(data.Watches)).Msg("janus started")

	<-a.ctx.Done()
	return a.shutdown()
}

// Stop cancels a running Start.
func (a *App) Stop() {
	a.mu.RLock()
	cancel := a.cancel
	a.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

func (a *App) shutdown() error {
	a.mu.Lock()
	watchers := a.watchers
	a.watchers = nil
	a.running = false
	a.mu.Unlock()

	for _, w := range watchers {
		if err := w.Stop(); err != nil {
			log.Warn().Err(err).Str("watch", w.Name()).Msg("watcher stop failed")
		}
	}
	if a.journal != nil {
		_ = a.journal.Close()
	}
	if err := a.hub.Stop(); err != nil {
		return err
	}
	log.Info().Msg("janus stopped")
	return nil
}

// startWatcher wires one configuration into a filter set, a mirror and a
// running watcher.
func (a *App) startWatcher(wc config.WatchConfig) (*watcher.Watcher, error) {
	filters := filter.NewSet(wc.Filters, func(pattern string, err error) {
		log.Warn().Err(err).Str("watch", wc.Name).Str("pattern", pattern).Msg("invalid filter pattern")
		a.hub.Publish(events.NewPatternInvalidEvent(wc.Name, pattern, err))
	})
	mirror := syncer.NewMirror(a.fs, wc, filters, a.hub)

	w, err := watcher.New(wc, filters, mirror, a.hub,
		watcher.WithEventBuffer(a.cfg.Watcher.EventBufferSize))
	if err != nil {
		return nil, err
	}

	a.mu.RLock()
	ctx := a.ctx
	a.mu.RUnlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := w.Start(ctx); err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.watchers = append(a.watchers, w)
	a.mu.Unlock()
	return w, nil
}

// AddWatch validates and starts a new watch, persists the updated list, and
// announces it on the hub.
func (a *App) AddWatch(wc config.WatchConfig) error {
	if err := wc.Validate(); err != nil {
		return err
	}
	if a.Watcher(wc.Name) != nil {
		return domain.ErrWatchExists
	}

	w, err := a.startWatcher(wc)
	if err != nil {
		return err
	}

	if err := a.persist(); err != nil {
		return err
	}
	a.hub.Publish(events.NewWatchAddedEvent(w.ID(), wc.Name, wc.WatchDir, wc.SyncDir))
	return nil
}

// RemoveWatch irreversibly stops the named watcher, removes its
// configuration, and persists the updated list.
func (a *App) RemoveWatch(name string) error {
	a.mu.Lock()
	var target *watcher.Watcher
	for i, w := range a.watchers {
		if w.Name() == name {
			target = w
			a.watchers = append(a.watchers[:i], a.watchers[i+1:]...)
			break
		}
	}
	a.mu.Unlock()

	if target == nil {
		return domain.ErrWatchNotFound
	}

	if err := target.Stop(); err != nil {
		log.Warn().Err(err).Str("watch", name).Msg("watcher stop failed")
	}
	if err := a.persist(); err != nil {
		return err
	}

	wc := target.Config()
	a.hub.Publish(events.NewWatchRemovedEvent(target.ID(), wc.Name, wc.WatchDir, wc.SyncDir))
	return nil
}

// Watcher returns the live watcher with the given name, or nil.
func (a *App) Watcher(name string) *watcher.Watcher {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, w := range a.watchers {
		if w.Name() == name {
			return w
		}
	}
	return nil
}

// Watchers returns the live watchers in configuration order.
func (a *App) Watchers() []*watcher.Watcher {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*watcher.Watcher, len(a.watchers))
	copy(out, a.watchers)
	return out
}

// SetValue stores an application-data entry and persists.
func (a *App) SetValue(key string, value interface{}) error {
	a.mu.Lock()
	a.values[key] = value
	a.mu.Unlock()
	return a.persist()
}

// Value returns an application-data entry.
func (a *App) Value(key string) (interface{}, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.values[key]
	return v, ok
}

// snapshot captures the persistent state under the read lock.
func (a *App) snapshot() store.Data {
	a.mu.RLock()
	defer a.mu.RUnlock()

	data := store.NewData()
	for _, w := range a.watchers {
		data.Watches = append(data.Watches, w.Config())
	}
	for k, v := range a.values {
		data.Values[k] = v
	}
	return data
}

// persist rewrites the store from current state. Serialized: interleaved
// writes would corrupt the file.
func (a *App) persist() error {
	a.persistMu.Lock()
	defer a.persistMu.Unlock()
	return a.store.Save(a.snapshot())
}
