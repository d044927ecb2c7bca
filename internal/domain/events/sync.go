package events

// SyncOp identifies the mirroring operation an event refers to.
type SyncOp string

const (
	SyncOpAdd    SyncOp = "add"
	SyncOpDelete SyncOp = "delete"
	SyncOpFull   SyncOp = "full"
)

// SyncSummaryPayload is the payload for sync_summary events, emitted after a
// manual flush. Counts are captured before the pending sets are cleared.
type SyncSummaryPayload struct {
	Copied  int `json:"copied"`
	Deleted int `json:"deleted"`
}

// FileSyncedPayload is the payload for file_synced events.
type FileSyncedPayload struct {
	Path string `json:"path"`
	Op   SyncOp `json:"op"`
}

// SyncErrorPayload is the payload for sync_error events.
type SyncErrorPayload struct {
	Path  string `json:"path,omitempty"`
	Op    SyncOp `json:"op"`
	Error string `json:"error"`
}

// FullSyncPayload is the payload for full_sync_completed events.
type FullSyncPayload struct {
	Copied  int `json:"copied"`
	Removed int `json:"removed"`
	Errors  int `json:"errors"`
}

// WatchPayload is the payload for watch_added and watch_removed events.
type WatchPayload struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	WatchDir string `json:"watch_dir"`
	SyncDir  string `json:"sync_dir"`
}

// StoreLoadFailedPayload is the payload for store_load_failed events.
type StoreLoadFailedPayload struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// PatternInvalidPayload is the payload for pattern_invalid events, reported
// when a filter pattern fails to compile. The pattern is treated as a
// non-match from then on.
type PatternInvalidPayload struct {
	Pattern string `json:"pattern"`
	Error   string `json:"error"`
}

// NewSyncSummaryEvent creates a new sync_summary event.
func NewSyncSummaryEvent(watch string, copied, deleted int) *BaseEvent {
	return NewWatchEvent(EventTypeSyncSummary, watch, SyncSummaryPayload{
		Copied:  copied,
		Deleted: deleted,
	})
}

// NewNoChangesEvent creates a new no_changes event.
func NewNoChangesEvent(watch string) *BaseEvent {
	return NewWatchEvent(EventTypeNoChanges, watch, nil)
}

// NewFileSyncedEvent creates a new file_synced event.
func NewFileSyncedEvent(watch, path string, op SyncOp) *BaseEvent {
	return NewWatchEvent(EventTypeFileSynced, watch, FileSyncedPayload{
		Path: path,
		Op:   op,
	})
}

// NewSyncErrorEvent creates a new sync_error event.
func NewSyncErrorEvent(watch, path string, op SyncOp, err error) *BaseEvent {
	return NewWatchEvent(EventTypeSyncError, watch, SyncErrorPayload{
		Path:  path,
		Op:    op,
		Error: err.Error(),
	})
}

// NewFullSyncEvent creates a new full_sync_completed event.
func NewFullSyncEvent(watch string, copied, removed, errs int) *BaseEvent {
	return NewWatchEvent(EventTypeFullSync, watch, FullSyncPayload{
		Copied:  copied,
		Removed: removed,
		Errors:  errs,
	})
}

// NewWatchAddedEvent creates a new watch_added event.
func NewWatchAddedEvent(id, name, watchDir, syncDir string) *BaseEvent {
	return NewWatchEvent(EventTypeWatchAdded, name, WatchPayload{
		ID:       id,
		Name:     name,
		WatchDir: watchDir,
		SyncDir:  syncDir,
	})
}

// NewWatchRemovedEvent creates a new watch_removed event.
func NewWatchRemovedEvent(id, name, watchDir, syncDir string) *BaseEvent {
	return NewWatchEvent(EventTypeWatchRemoved, name, WatchPayload{
		ID:       id,
		Name:     name,
		WatchDir: watchDir,
		SyncDir:  syncDir,
	})
}

// NewStoreLoadFailedEvent creates a new store_load_failed event.
func NewStoreLoadFailedEvent(path string, err error) *BaseEvent {
	return NewEvent(EventTypeStoreLoadFailed, StoreLoadFailedPayload{
		Path:  path,
		Error: err.Error(),
	})
}

// NewPatternInvalidEvent creates a new pattern_invalid event.
func NewPatternInvalidEvent(watch, pattern string, err error) *BaseEvent {
	return NewWatchEvent(EventTypePatternInvalid, watch, PatternInvalidPayload{
		Pattern: pattern,
		Error:   err.Error(),
	})
}
