// Package config provides centralized default configuration values.
package config

import "github.com/spf13/viper"

// DefaultExcludePatterns is the canonical list of patterns excluded from
// mirroring by a freshly created watch. Users can override per watch or via
// config.yaml: watcher.default_exclude_patterns.
var DefaultExcludePatterns = []string{
	"*.swp",
	"*.tmp",
	"*~",
	"*.part",
	"*/.git/*",
	"*/.DS_Store",
	"*/Thumbs.db",
}

func setDefaults(v *viper.Viper) {
	// Store
	v.SetDefault("store.path", "")

	// Journal
	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", "")

	// Watcher
	v.SetDefault("watcher.default_debounce_ms", 300)
	v.SetDefault("watcher.default_exclude_patterns", DefaultExcludePatterns)
	v.SetDefault("watcher.event_buffer_size", 256)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}
