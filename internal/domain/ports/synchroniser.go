package ports

import "context"

// Synchroniser defines the contract for mirroring a watched source tree into
// its sync target. Implementations map a source path to the corresponding
// location under the sync root, preserving relative structure.
//
// Every operation fails per file: an error from one call never implies
// anything about other paths, and callers are expected to continue their
// batch regardless.
type Synchroniser interface {
	// Add copies the file at path (under the watch root) to its mapped
	// location under the sync root, creating parent directories as needed.
	Add(ctx context.Context, path string) error

	// Delete removes the mapped target-side entry if present. A missing
	// target is not an error.
	Delete(ctx context.Context, path string) error

	// FullSynchronise walks the filtered source tree and brings the target
	// into exact correspondence: missing entries are created, orphaned
	// target entries are removed. Comparison is by existence and metadata,
	// never file contents. Per-file errors are reported out of band and do
	// not abort the walk; the returned error summarizes the run.
	FullSynchronise(ctx context.Context) error
}
