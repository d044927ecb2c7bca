package config

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/brianly1003/janus/internal/domain"
	"github.com/brianly1003/janus/internal/filter"
)

// WatchConfig describes one source-to-target mirror.
//
// It is pure configuration: runtime collaborators (the OS watch, the
// synchroniser) never appear here, so two configurations loaded in different
// processes compare equal whenever their persisted fields do.
type WatchConfig struct {
	// Name identifies the watch. Unique within the store.
	Name string `yaml:"name"`

	// WatchDir is the source tree being observed.
	WatchDir string `yaml:"watch_dir"`

	// SyncDir is the target tree kept as a mirror of the filtered source.
	SyncDir string `yaml:"sync_dir"`

	// Recursive extends watching and reconciliation to the whole subtree.
	Recursive bool `yaml:"recursive"`

	// AutoAdd dispatches add/modify events to the synchroniser immediately.
	// When false they accumulate for a manual flush.
	AutoAdd bool `yaml:"auto_add"`

	// AutoDelete dispatches delete events immediately. When false they
	// accumulate for a manual flush.
	AutoDelete bool `yaml:"auto_delete"`

	// Observe disables the OS-level watch entirely. The watch exists as
	// configuration plus manual API only.
	Observe bool `yaml:"observe"`

	// Delay is the debounce interval applied to raw filesystem events.
	Delay time.Duration `yaml:"delay"`

	// Filters is the ordered exclusion rule list.
	Filters []filter.Filter `yaml:"filters,omitempty"`
}

// Validate checks the configuration invariants: non-empty name and paths,
// non-negative delay, and persistable filter kinds.
func (c WatchConfig) Validate() error {
	if c.Name == "" {
		return domain.NewValidationError("name", "must not be empty")
	}
	if c.WatchDir == "" {
		return domain.NewValidationError("watch_dir", "must not be empty")
	}
	if c.SyncDir == "" {
		return domain.NewValidationError("sync_dir", "must not be empty")
	}
	if c.WatchDir == c.SyncDir {
		return domain.NewValidationError("sync_dir", "must differ from watch_dir")
	}
	if c.Delay < 0 {
		return domain.NewValidationError("delay", "must not be negative")
	}
	for i, f := range c.Filters {
		if err := f.Validate(); err != nil {
			return domain.NewValidationError(fmt.Sprintf("filters[%d]", i), err.Error())
		}
	}
	return nil
}

// Equal reports deep equality of two watch configurations, order-sensitive
// for filters and patterns.
func (c WatchConfig) Equal(o WatchConfig) bool {
	return c.Name == o.Name &&
		c.WatchDir == o.WatchDir &&
		c.SyncDir == o.SyncDir &&
		c.Recursive == o.Recursive &&
		c.AutoAdd == o.AutoAdd &&
		c.AutoDelete == o.AutoDelete &&
		c.Observe == o.Observe &&
		c.Delay == o.Delay &&
		filter.EqualFilters(c.Filters, o.Filters)
}

// Clone returns a copy sharing no filter storage with c.
func (c WatchConfig) Clone() WatchConfig {
	out := c
	out.Filters = filter.CloneFilters(c.Filters)
	return out
}

// CloneWatches deep-copies a watch configuration list.
func CloneWatches(watches []WatchConfig) []WatchConfig {
	if watches == nil {
		return nil
	}
	out := make([]WatchConfig, len(watches))
	for i, w := range watches {
		out[i] = w.Clone()
	}
	return out
}

// ExportWatches writes the watch list as YAML, for `janus watch export`.
func ExportWatches(w io.Writer, watches []WatchConfig) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()

	if err := enc.Encode(struct {
		Watches []WatchConfig `yaml:"watches"`
	}{Watches: watches}); err != nil {
		return fmt.Errorf("failed to encode watches: %w", err)
	}
	return nil
}

// ImportWatches reads a YAML watch list previously produced by ExportWatches
// and validates every entry.
func ImportWatches(r io.Reader) ([]WatchConfig, error) {
	var doc struct {
		Watches []WatchConfig `yaml:"watches"`
	}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode watches: %w", err)
	}
	for i, w := range doc.Watches {
		if err := w.Validate(); err != nil {
			return nil, fmt.Errorf("watch %d (%s): %w", i, w.Name, err)
		}
	}
	return doc.Watches, nil
}
