package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/brianly1003/janus/internal/filter"
)

func TestLoadDefaults(t *testing.T) {
	// Point at an empty directory so no config file is found.
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Watcher.EventBufferSize <= 0 {
		t.Errorf("event buffer size = %d, want positive default", cfg.Watcher.EventBufferSize)
	}
	if len(cfg.Watcher.DefaultExcludePatterns) == 0 {
		t.Error("expected default exclude patterns")
	}
	if cfg.Logging.Level == "" {
		t.Error("expected a default logging level")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
store:
  path: /var/lib/janus/janus.dat
journal:
  enabled: true
logging:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Store.Path != "/var/lib/janus/janus.dat" {
		t.Errorf("store path = %q", cfg.Store.Path)
	}
	if !cfg.Journal.Enabled {
		t.Error("journal should be enabled")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging level = %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: shouty\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid logging level")
	}
}

func validWatch() WatchConfig {
	return WatchConfig{
		Name:     "w",
		WatchDir: "/src",
		SyncDir:  "/dst",
	}
}

func TestWatchConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*WatchConfig)
		ok     bool
	}{
		{"valid", func(c *WatchConfig) {}, true},
		{"empty name", func(c *WatchConfig) { c.Name = "" }, false},
		{"empty watch dir", func(c *WatchConfig) { c.WatchDir = "" }, false},
		{"empty sync dir", func(c *WatchConfig) { c.SyncDir = "" }, false},
		{"same dirs", func(c *WatchConfig) { c.SyncDir = c.WatchDir }, false},
		{"negative delay", func(c *WatchConfig) { c.Delay = -time.Second }, false},
		{"bad filter kind", func(c *WatchConfig) {
			c.Filters = []filter.Filter{{Kind: filter.Kind(99)}}
		}, false},
		{"valid filters", func(c *WatchConfig) {
			c.Filters = []filter.Filter{{Kind: filter.KindInclude, Patterns: []string{"*.go"}}}
		}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validWatch()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestWatchConfigEqualAndClone(t *testing.T) {
	a := validWatch()
	a.Filters = []filter.Filter{{Kind: filter.KindExclude, Patterns: []string{"*.tmp"}}}

	b := a.Clone()
	if !a.Equal(b) {
		t.Fatal("clone should compare equal")
	}

	// The clone shares no pattern storage.
	b.Filters[0].Patterns[0] = "*.log"
	if a.Filters[0].Patterns[0] != "*.tmp" {
		t.Error("mutating the clone changed the original")
	}
	if a.Equal(b) {
		t.Error("configs with different patterns should not compare equal")
	}

	c := a.Clone()
	c.Delay = time.Second
	if a.Equal(c) {
		t.Error("configs with different delay should not compare equal")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	watches := []WatchConfig{
		{
			Name:      "projects",
			WatchDir:  "/src",
			SyncDir:   "/dst",
			Recursive: true,
			AutoAdd:   true,
			Delay:     100 * time.Millisecond,
			Filters: []filter.Filter{
				{Kind: filter.KindExcludeFile, Patterns: []string{"*.swp"}},
				{Kind: filter.KindInclude, Patterns: []string{"*.go"}},
			},
		},
		{Name: "notes", WatchDir: "/a", SyncDir: "/b", Observe: true},
	}

	path := filepath.Join(t.TempDir(), "watches.yaml")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := ExportWatches(f, watches); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	f.Close()

	in, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer in.Close()

	got, err := ImportWatches(in)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if len(got) != len(watches) {
		t.Fatalf("imported %d watches, want %d", len(got), len(watches))
	}
	for i := range watches {
		if !got[i].Equal(watches[i]) {
			t.Errorf("watch %d mismatch:\n got %+v\nwant %+v", i, got[i], watches[i])
		}
	}
}

func TestImportRejectsInvalidWatch(t *testing.T) {
	doc := "watches:\n  - name: \"\"\n    watch_dir: /a\n    sync_dir: /b\n"
	if _, err := ImportWatches(strings.NewReader(doc)); err == nil {
		t.Error("expected error for invalid imported watch")
	}
}

func TestImportRejectsMalformedYAML(t *testing.T) {
	if _, err := ImportWatches(strings.NewReader("watches: [")); err == nil {
		t.Error("expected error for malformed document")
	}
}
