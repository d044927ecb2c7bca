// Package journal keeps a SQLite history of completed and failed sync
// operations. It is strictly best-effort: journal failures are logged and
// never affect synchronization.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/brianly1003/janus/internal/domain/events"
	"github.com/brianly1003/janus/internal/domain/ports"
	"github.com/brianly1003/janus/internal/hub"
)

const schema = `
CREATE TABLE IF NOT EXISTS sync_history (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	watch      TEXT NOT NULL,
	op         TEXT NOT NULL,
	path       TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL,
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sync_history_created ON sync_history(created_at DESC);
`

// Entry is one journal row.
type Entry struct {
	ID        int64
	Watch     string
	Op        string
	Path      string
	Status    string // "ok" or "error"
	Error     string
	CreatedAt time.Time
}

// Journal records sync history in a SQLite database.
type Journal struct {
	db   *sql.DB
	path string
}

// DefaultPath returns the journal location next to the given store file.
func DefaultPath(storePath string) string {
	return filepath.Join(filepath.Dir(storePath), "history.db")
}

// Open opens (creating if needed) the journal database at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			log.Warn().Err(err).Str("pragma", pragma).Msg("failed to set pragma")
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init journal schema: %w", err)
	}

	return &Journal{db: db, path: path}, nil
}

// Path returns the journal database path.
func (j *Journal) Path() string {
	return j.path
}

// Record inserts one entry.
func (j *Journal) Record(e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := j.db.Exec(
		`INSERT INTO sync_history (watch, op, path, status, error, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.Watch, e.Op, e.Path, e.Status, e.Error, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record journal entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	rows, err := j.db.Query(
		`SELECT id, watch, op, path, status, error, created_at
		 FROM sync_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Watch, &e.Op, &e.Path, &e.Status, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Subscriber returns a hub subscriber that records file_synced and
// sync_error events into the journal.
func (j *Journal) Subscriber(id string) ports.Subscriber {
	return hub.NewFuncSubscriber(id, func(event events.Event) {
		base, ok := event.(*events.BaseEvent)
		if !ok {
			return
		}

		var entry Entry
		switch event.Type() {
		case events.EventTypeFileSynced:
			payload, ok := base.Payload.(events.FileSyncedPayload)
			if !ok {
				return
			}
			entry = Entry{
				Watch:  event.GetWatch(),
				Op:     string(payload.Op),
				Path:   payload.Path,
				Status: "ok",
			}
		case events.EventTypeSyncError:
			payload, ok := base.Payload.(events.SyncErrorPayload)
			if !ok {
				return
			}
			entry = Entry{
				Watch:  event.GetWatch(),
				Op:     string(payload.Op),
				Path:   payload.Path,
				Status: "error",
				Error:  payload.Error,
			}
		default:
			return
		}

		if err := j.Record(entry); err != nil {
			log.Warn().Err(err).Msg("journal record failed")
		}
	})
}
