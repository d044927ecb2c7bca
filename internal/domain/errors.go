// Package domain contains domain errors used throughout the application.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	ErrWatcherStopped    = errors.New("watcher is stopped")
	ErrWatcherNotStarted = errors.New("watcher is not started")
	ErrWatchNotFound     = errors.New("watch not found")
	ErrWatchExists       = errors.New("watch with this name already exists")
	ErrPathOutsideWatch  = errors.New("path is outside watch directory")
	ErrHubNotRunning     = errors.New("event hub is not running")
	ErrSubscriberClosed  = errors.New("subscriber is closed")
)

// ValidationError represents a watch configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// SyncError represents a per-file failure during a mirroring operation.
// A SyncError never aborts the batch or walk that produced it.
type SyncError struct {
	Op   string // "add", "delete" or "full"
	Path string
	Err  error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// NewSyncError creates a new SyncError.
func NewSyncError(op, path string, err error) *SyncError {
	return &SyncError{
		Op:   op,
		Path: path,
		Err:  err,
	}
}
