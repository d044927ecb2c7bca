// Package events defines all notification event types used in janus.
package events

import (
	"encoding/json"
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Sync events
	EventTypeSyncSummary EventType = "sync_summary"
	EventTypeNoChanges   EventType = "no_changes"
	EventTypeFileSynced  EventType = "file_synced"
	EventTypeSyncError   EventType = "sync_error"
	EventTypeFullSync    EventType = "full_sync_completed"

	// Watch lifecycle events
	EventTypeWatchAdded   EventType = "watch_added"
	EventTypeWatchRemoved EventType = "watch_removed"

	// Store events
	EventTypeStoreLoadFailed EventType = "store_load_failed"

	// Filter events
	EventTypePatternInvalid EventType = "pattern_invalid"
)

// Event is the base interface for all events.
type Event interface {
	// Type returns the event type.
	Type() EventType

	// Timestamp returns when the event occurred.
	Timestamp() time.Time

	// ToJSON serializes the event to JSON.
	ToJSON() ([]byte, error)

	// GetWatch returns the name of the watch the event belongs to (may be empty).
	GetWatch() string
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventType EventType   `json:"event"`
	EventTime time.Time   `json:"timestamp"`
	Watch     string      `json:"watch,omitempty"`
	Payload   interface{} `json:"payload"`
}

// Type returns the event type.
func (e *BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e *BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// ToJSON serializes the event to JSON.
func (e *BaseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// GetWatch returns the name of the watch the event belongs to.
func (e *BaseEvent) GetWatch() string {
	return e.Watch
}

// NewEvent creates a new base event with the given type and payload.
func NewEvent(eventType EventType, payload interface{}) *BaseEvent {
	return &BaseEvent{
		EventType: eventType,
		EventTime: time.Now().UTC(),
		Payload:   payload,
	}
}

// NewWatchEvent creates a new event bound to a named watch.
func NewWatchEvent(eventType EventType, watch string, payload interface{}) *BaseEvent {
	return &BaseEvent{
		EventType: eventType,
		EventTime: time.Now().UTC(),
		Watch:     watch,
		Payload:   payload,
	}
}
