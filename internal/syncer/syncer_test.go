package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/brianly1003/janus/internal/config"
	"github.com/brianly1003/janus/internal/domain"
	"github.com/brianly1003/janus/internal/domain/events"
	"github.com/brianly1003/janus/internal/filter"
	"github.com/brianly1003/janus/internal/hub"
	"github.com/brianly1003/janus/internal/testutil"
)

func testMirror(t *testing.T, cfg config.WatchConfig) (*Mirror, afero.Fs, *testutil.MockSubscriber) {
	t.Helper()

	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll(cfg.WatchDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := fs.MkdirAll(cfg.SyncDir, 0o755); err != nil {
		t.Fatal(err)
	}

	h := hub.New()
	if err := h.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { h.Stop() })
	sub := testutil.NewMockSubscriber("test")
	h.Subscribe(sub)

	filters := filter.NewSet(cfg.Filters, nil)
	return NewMirror(fs, cfg, filters, h), fs, sub
}

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func mustExist(t *testing.T, fs afero.Fs, path string) {
	t.Helper()
	if exists, _ := afero.Exists(fs, path); !exists {
		t.Errorf("expected %s to exist", path)
	}
}

func mustNotExist(t *testing.T, fs afero.Fs, path string) {
	t.Helper()
	if exists, _ := afero.Exists(fs, path); exists {
		t.Errorf("expected %s to be absent", path)
	}
}

func baseConfig() config.WatchConfig {
	return config.WatchConfig{
		Name:      "w",
		WatchDir:  "/src",
		SyncDir:   "/dst",
		Recursive: true,
	}
}

func TestAddCopiesFile(t *testing.T) {
	m, fs, _ := testMirror(t, baseConfig())
	writeFile(t, fs, "/src/a.txt", "hello")

	if err := m.Add(context.Background(), "/src/a.txt"); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	got, err := afero.ReadFile(fs, "/dst/a.txt")
	if err != nil {
		t.Fatalf("target not readable: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("target content = %q, want %q", got, "hello")
	}
}

func TestAddOverwritesExistingTarget(t *testing.T) {
	m, fs, _ := testMirror(t, baseConfig())
	writeFile(t, fs, "/src/a.txt", "new")
	writeFile(t, fs, "/dst/a.txt", "old content that is longer")

	if err := m.Add(context.Background(), "/src/a.txt"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	got, _ := afero.ReadFile(fs, "/dst/a.txt")
	if string(got) != "new" {
		t.Errorf("target content = %q, want %q", got, "new")
	}
}

func TestAddCreatesNestedParents(t *testing.T) {
	m, fs, _ := testMirror(t, baseConfig())
	writeFile(t, fs, "/src/a/b/c.txt", "deep")

	if err := m.Add(context.Background(), "/src/a/b/c.txt"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	mustExist(t, fs, "/dst/a/b/c.txt")
}

func TestAddMapsDirectoryToDirectory(t *testing.T) {
	m, fs, _ := testMirror(t, baseConfig())
	if err := fs.MkdirAll("/src/sub", 0o755); err != nil {
		t.Fatal(err)
	}

	if err := m.Add(context.Background(), "/src/sub"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	info, err := fs.Stat("/dst/sub")
	if err != nil {
		t.Fatalf("target missing: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected a directory on the target side")
	}
}

func TestAddRejectsPathOutsideWatch(t *testing.T) {
	m, fs, _ := testMirror(t, baseConfig())
	writeFile(t, fs, "/elsewhere/x.txt", "x")

	err := m.Add(context.Background(), "/elsewhere/x.txt")
	if !errors.Is(err, domain.ErrPathOutsideWatch) {
		t.Errorf("add = %v, want ErrPathOutsideWatch", err)
	}

	var syncErr *domain.SyncError
	if !errors.As(err, &syncErr) {
		t.Errorf("add error %T should be a SyncError", err)
	}
}

func TestAddMissingSourceFails(t *testing.T) {
	m, _, _ := testMirror(t, baseConfig())
	if err := m.Add(context.Background(), "/src/nope.txt"); err == nil {
		t.Error("expected error for missing source")
	}
}

func TestDeleteRemovesTarget(t *testing.T) {
	m, fs, _ := testMirror(t, baseConfig())
	writeFile(t, fs, "/dst/a.txt", "stale")

	if err := m.Delete(context.Background(), "/src/a.txt"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	mustNotExist(t, fs, "/dst/a.txt")
}

func TestDeleteMissingTargetSucceeds(t *testing.T) {
	m, _, _ := testMirror(t, baseConfig())
	if err := m.Delete(context.Background(), "/src/never-existed.txt"); err != nil {
		t.Errorf("delete of absent target = %v, want nil", err)
	}
}

func TestDeleteRemovesSubtree(t *testing.T) {
	m, fs, _ := testMirror(t, baseConfig())
	writeFile(t, fs, "/dst/sub/a.txt", "a")
	writeFile(t, fs, "/dst/sub/b.txt", "b")

	if err := m.Delete(context.Background(), "/src/sub"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	mustNotExist(t, fs, "/dst/sub")
}

func TestCancelledContextAborts(t *testing.T) {
	m, fs, _ := testMirror(t, baseConfig())
	writeFile(t, fs, "/src/a.txt", "hello")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.Add(ctx, "/src/a.txt"); !errors.Is(err, context.Canceled) {
		t.Errorf("add = %v, want context.Canceled", err)
	}
	if err := m.Delete(ctx, "/src/a.txt"); !errors.Is(err, context.Canceled) {
		t.Errorf("delete = %v, want context.Canceled", err)
	}
	if err := m.FullSynchronise(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("full synchronise = %v, want context.Canceled", err)
	}
}

func TestFullSynchroniseCreatesAndPrunes(t *testing.T) {
	m, fs, sub := testMirror(t, baseConfig())
	writeFile(t, fs, "/src/a.txt", "a")
	writeFile(t, fs, "/src/sub/b.txt", "b")
	writeFile(t, fs, "/dst/orphan.txt", "gone")
	writeFile(t, fs, "/dst/stale/nested.txt", "gone too")

	if err := m.FullSynchronise(context.Background()); err != nil {
		t.Fatalf("full synchronise failed: %v", err)
	}

	mustExist(t, fs, "/dst/a.txt")
	mustExist(t, fs, "/dst/sub/b.txt")
	mustNotExist(t, fs, "/dst/orphan.txt")
	mustNotExist(t, fs, "/dst/stale")

	testutil.WaitFor(t, time.Second, func() bool {
		return len(sub.EventsOfType(events.EventTypeFullSync)) == 1
	}, "expected one full_sync_completed event")
}

func TestFullSynchroniseLeavesMatchingFilesAlone(t *testing.T) {
	m, fs, _ := testMirror(t, baseConfig())
	writeFile(t, fs, "/src/a.txt", "source version")
	writeFile(t, fs, "/dst/a.txt", "target version")

	if err := m.FullSynchronise(context.Background()); err != nil {
		t.Fatalf("full synchronise failed: %v", err)
	}

	// Existence is the comparison: content drift is not detected.
	got, _ := afero.ReadFile(fs, "/dst/a.txt")
	if string(got) != "target version" {
		t.Errorf("matching target was rewritten: %q", got)
	}
}

func TestFullSynchroniseHonorsFilters(t *testing.T) {
	cfg := baseConfig()
	cfg.Filters = []filter.Filter{
		{Kind: filter.KindExcludeFile, Patterns: []string{"*.tmp"}},
		{Kind: filter.KindExclude, Patterns: []string{"*/.git/*", "*/.git"}},
	}
	m, fs, _ := testMirror(t, cfg)

	writeFile(t, fs, "/src/keep.txt", "keep")
	writeFile(t, fs, "/src/skip.tmp", "skip")
	writeFile(t, fs, "/src/.git/HEAD", "ref")
	// An excluded file already on the target has no source counterpart in
	// the filtered set, so it gets pruned.
	writeFile(t, fs, "/dst/old.tmp", "stale")

	if err := m.FullSynchronise(context.Background()); err != nil {
		t.Fatalf("full synchronise failed: %v", err)
	}

	mustExist(t, fs, "/dst/keep.txt")
	mustNotExist(t, fs, "/dst/skip.tmp")
	mustNotExist(t, fs, "/dst/.git")
	mustNotExist(t, fs, "/dst/old.tmp")
}

func TestFullSynchroniseNonRecursive(t *testing.T) {
	cfg := baseConfig()
	cfg.Recursive = false
	m, fs, _ := testMirror(t, cfg)

	writeFile(t, fs, "/src/top.txt", "top")
	writeFile(t, fs, "/src/sub/nested.txt", "nested")

	if err := m.FullSynchronise(context.Background()); err != nil {
		t.Fatalf("full synchronise failed: %v", err)
	}

	mustExist(t, fs, "/dst/top.txt")
	mustNotExist(t, fs, "/dst/sub")
}
