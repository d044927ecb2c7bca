// Package syncer implements the Synchroniser contract: one-way mirroring of
// a filtered source tree into a sync target.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/brianly1003/janus/internal/config"
	"github.com/brianly1003/janus/internal/domain"
	"github.com/brianly1003/janus/internal/domain/events"
	"github.com/brianly1003/janus/internal/domain/ports"
	"github.com/brianly1003/janus/internal/filter"
)

// Mirror mirrors the watch directory of one configuration into its sync
// directory. Operations on the same target path are serialized through
// striped locks; unrelated paths run concurrently.
type Mirror struct {
	fs        afero.Fs
	watch     string
	watchDir  string
	syncDir   string
	recursive bool
	filters   *filter.Set
	hub       ports.EventHub
	locks     *pathLocks
}

// NewMirror creates a mirror for cfg over the given filesystem.
func NewMirror(fs afero.Fs, cfg config.WatchConfig, filters *filter.Set, hub ports.EventHub) *Mirror {
	return &Mirror{
		fs:        fs,
		watch:     cfg.Name,
		watchDir:  filepath.Clean(cfg.WatchDir),
		syncDir:   filepath.Clean(cfg.SyncDir),
		recursive: cfg.Recursive,
		filters:   filters,
		hub:       hub,
		locks:     newPathLocks(),
	}
}

// targetPath maps a source path under the watch root to its mirror location.
func (m *Mirror) targetPath(path string) (string, error) {
	rel, err := filepath.Rel(m.watchDir, filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrPathOutsideWatch, path)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", domain.ErrPathOutsideWatch, path)
	}
	return filepath.Join(m.syncDir, rel), nil
}

// Add copies the file at path to its mapped target location, creating parent
// directories and preserving the file mode. A source directory maps to a
// directory creation.
func (m *Mirror) Add(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target, err := m.targetPath(path)
	if err != nil {
		return domain.NewSyncError("add", path, err)
	}

	unlock := m.locks.lock(target)
	defer unlock()

	info, err := m.fs.Stat(path)
	if err != nil {
		return domain.NewSyncError("add", path, err)
	}

	if info.IsDir() {
		if err := m.fs.MkdirAll(target, info.Mode().Perm()); err != nil {
			return domain.NewSyncError("add", path, err)
		}
		return nil
	}

	if err := m.copyFile(path, target, info.Mode().Perm()); err != nil {
		return domain.NewSyncError("add", path, err)
	}
	log.Debug().Str("watch", m.watch).Str("path", path).Str("target", target).Msg("file mirrored")
	return nil
}

// Delete removes the mapped target-side entry. A missing target is success.
func (m *Mirror) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target, err := m.targetPath(path)
	if err != nil {
		return domain.NewSyncError("delete", path, err)
	}

	unlock := m.locks.lock(target)
	defer unlock()

	if err := m.fs.RemoveAll(target); err != nil && !os.IsNotExist(err) {
		return domain.NewSyncError("delete", path, err)
	}
	log.Debug().Str("watch", m.watch).Str("target", target).Msg("target entry removed")
	return nil
}

// FullSynchronise reconciles the whole target against the filtered source
// set: entries missing on the target are created, target entries with no
// filtered source counterpart are removed. Comparison is by existence and
// metadata only; a file present on both sides with the same name is never
// re-copied, so byte-level content drift goes undetected by design.
//
// Per-file errors are logged and reported through the hub, and the walk
// continues past them. The returned error summarizes the run.
func (m *Mirror) FullSynchronise(ctx context.Context) error {
	snapshot, err := m.snapshotSource(ctx)
	if err != nil {
		return err
	}

	var copied, removed, failed int

	// Phase 1: create missing target entries.
	for _, src := range snapshot.ordered {
		if err := ctx.Err(); err != nil {
			return err
		}
		target := filepath.Join(m.syncDir, src.rel)
		if exists, _ := afero.Exists(m.fs, target); exists {
			continue
		}
		var err error
		if src.dir {
			err = m.fs.MkdirAll(target, src.mode)
		} else {
			unlock := m.locks.lock(target)
			err = m.copyFile(src.path, target, src.mode)
			unlock()
		}
		if err != nil {
			failed++
			m.reportFileError(src.path, err)
			continue
		}
		copied++
	}

	// Phase 2: remove orphaned target entries.
	n, nerr := m.pruneTarget(ctx, snapshot)
	if err := ctx.Err(); err != nil {
		return err
	}
	removed += n
	failed += nerr

	log.Info().
		Str("watch", m.watch).
		Int("copied", copied).
		Int("removed", removed).
		Int("errors", failed).
		Msg("full synchronisation completed")
	m.hub.Publish(events.NewFullSyncEvent(m.watch, copied, removed, failed))

	if failed > 0 {
		return fmt.Errorf("full synchronise completed with %d errors", failed)
	}
	return nil
}

// sourceEntry is one filtered source tree entry.
type sourceEntry struct {
	path string
	rel  string
	dir  bool
	mode os.FileMode
}

// sourceSnapshot indexes the filtered source set by watch-root-relative path.
type sourceSnapshot struct {
	byRel   map[string]sourceEntry
	ordered []sourceEntry
}

func (s *sourceSnapshot) add(e sourceEntry) {
	s.byRel[e.rel] = e
	s.ordered = append(s.ordered, e)
}

// snapshotSource walks the watch root, honoring the recursive flag and the
// filter set. Unreadable entries are skipped, not fatal.
func (m *Mirror) snapshotSource(ctx context.Context) (*sourceSnapshot, error) {
	snapshot := &sourceSnapshot{byRel: make(map[string]sourceEntry)}

	err := afero.Walk(m.fs, m.watchDir, func(path string, info os.FileInfo, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("skipping unreadable source entry")
			return nil
		}
		if filepath.Clean(path) == m.watchDir {
			return nil
		}
		if m.filters.ShouldExclude(path) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() && !m.recursive {
			return filepath.SkipDir
		}

		rel, rerr := filepath.Rel(m.watchDir, path)
		if rerr != nil {
			return nil
		}
		snapshot.add(sourceEntry{
			path: path,
			rel:  rel,
			dir:  info.IsDir(),
			mode: info.Mode().Perm(),
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to walk watch directory: %w", err)
	}
	return snapshot, nil
}

// pruneTarget removes target entries with no filtered source counterpart.
func (m *Mirror) pruneTarget(ctx context.Context, snapshot *sourceSnapshot) (removed, failed int) {
	_ = afero.Walk(m.fs, m.syncDir, func(path string, info os.FileInfo, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("skipping unreadable target entry")
			return nil
		}
		if filepath.Clean(path) == m.syncDir {
			return nil
		}

		rel, rerr := filepath.Rel(m.syncDir, path)
		if rerr != nil {
			return nil
		}
		if _, ok := snapshot.byRel[rel]; ok {
			return nil
		}

		unlock := m.locks.lock(path)
		rmErr := m.fs.RemoveAll(path)
		unlock()
		if rmErr != nil && !os.IsNotExist(rmErr) {
			failed++
			m.reportFileError(path, rmErr)
			return nil
		}
		removed++
		if info.IsDir() {
			// The subtree is gone with it.
			return filepath.SkipDir
		}
		return nil
	})
	return removed, failed
}

// copyFile copies one file, creating parent directories.
func (m *Mirror) copyFile(src, dst string, mode os.FileMode) error {
	if err := m.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	in, err := m.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := m.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// reportFileError logs a per-file failure and surfaces it on the hub.
func (m *Mirror) reportFileError(path string, err error) {
	log.Warn().Err(err).Str("watch", m.watch).Str("path", path).Msg("full sync entry failed")
	m.hub.Publish(events.NewSyncErrorEvent(m.watch, path, events.SyncOpFull, err))
}
