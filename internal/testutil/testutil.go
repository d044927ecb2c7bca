// Package testutil provides shared test utilities and mocks for janus tests.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/brianly1003/janus/internal/domain/events"
)

// MockSubscriber implements ports.Subscriber for testing.
type MockSubscriber struct {
	id      string
	mu      sync.Mutex
	events  []events.Event
	closed  bool
	sendErr error
	done    chan struct{}
}

// NewMockSubscriber creates a new mock subscriber.
func NewMockSubscriber(id string) *MockSubscriber {
	return &MockSubscriber{
		id:   id,
		done: make(chan struct{}),
	}
}

// FailWith makes every subsequent Send return err.
func (m *MockSubscriber) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// ID returns the subscriber ID.
func (m *MockSubscriber) ID() string {
	return m.id
}

// Send records the event and returns any configured error.
func (m *MockSubscriber) Send(e events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.events = append(m.events, e)
	return nil
}

// Close marks the subscriber as closed.
func (m *MockSubscriber) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

// Done returns a channel that's closed when the subscriber is done.
func (m *MockSubscriber) Done() <-chan struct{} {
	return m.done
}

// Events returns all received events.
func (m *MockSubscriber) Events() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]events.Event, len(m.events))
	copy(out, m.events)
	return out
}

// EventsOfType returns received events with the given type.
func (m *MockSubscriber) EventsOfType(t events.EventType) []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []events.Event
	for _, e := range m.events {
		if e.Type() == t {
			out = append(out, e)
		}
	}
	return out
}

// MockSynchroniser implements ports.Synchroniser for testing, recording
// every call.
type MockSynchroniser struct {
	mu        sync.Mutex
	adds      []string
	deletes   []string
	fullCalls int
	failPaths map[string]error
}

// NewMockSynchroniser creates a new mock synchroniser.
func NewMockSynchroniser() *MockSynchroniser {
	return &MockSynchroniser{failPaths: make(map[string]error)}
}

// FailPath makes operations on path return err.
func (m *MockSynchroniser) FailPath(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPaths[path] = err
}

// Add records an add call.
func (m *MockSynchroniser) Add(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failPaths[path]; ok {
		return err
	}
	m.adds = append(m.adds, path)
	return nil
}

// Delete records a delete call.
func (m *MockSynchroniser) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failPaths[path]; ok {
		return err
	}
	m.deletes = append(m.deletes, path)
	return nil
}

// FullSynchronise records a full reconciliation call.
func (m *MockSynchroniser) FullSynchronise(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fullCalls++
	return nil
}

// Adds returns the recorded add paths.
func (m *MockSynchroniser) Adds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.adds...)
}

// Deletes returns the recorded delete paths.
func (m *MockSynchroniser) Deletes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deletes...)
}

// FullCalls returns the number of FullSynchronise calls.
func (m *MockSynchroniser) FullCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fullCalls
}

// CallCount returns the total number of add and delete calls.
func (m *MockSynchroniser) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.adds) + len(m.deletes)
}

// WaitFor polls cond until it returns true or the deadline expires.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}
