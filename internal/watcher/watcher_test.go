package watcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brianly1003/janus/internal/config"
	"github.com/brianly1003/janus/internal/domain"
	"github.com/brianly1003/janus/internal/domain/events"
	"github.com/brianly1003/janus/internal/filter"
	"github.com/brianly1003/janus/internal/hub"
	"github.com/brianly1003/janus/internal/testutil"
)

// testConfig returns an observe-mode configuration: no OS watch is installed,
// so events are injected through Notify.
func testConfig(name string, auto bool) config.WatchConfig {
	return config.WatchConfig{
		Name:       name,
		WatchDir:   "/src",
		SyncDir:    "/dst",
		Recursive:  true,
		AutoAdd:    auto,
		AutoDelete: auto,
		Observe:    true,
	}
}

// newTestWatcher builds and starts a watcher over a mock synchroniser, with a
// running hub and a subscriber recording every published event.
func newTestWatcher(t *testing.T, cfg config.WatchConfig) (*Watcher, *testutil.MockSynchroniser, *testutil.MockSubscriber) {
	t.Helper()

	h := hub.New()
	if err := h.Start(); err != nil {
		t.Fatalf("failed to start hub: %v", err)
	}
	t.Cleanup(func() { h.Stop() })

	sub := testutil.NewMockSubscriber("test")
	h.Subscribe(sub)

	syn := testutil.NewMockSynchroniser()
	filters := filter.NewSet(cfg.Filters, nil)

	w, err := New(cfg, filters, syn, h)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	t.Cleanup(func() { w.Stop() })

	return w, syn, sub
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig("w", true)
	cfg.Name = ""
	if _, err := New(cfg, filter.NewSet(nil, nil), testutil.NewMockSynchroniser(), hub.New()); err == nil {
		t.Fatal("expected validation error for empty name")
	}
}

func TestLifecycleStates(t *testing.T) {
	cfg := testConfig("w", true)
	syn := testutil.NewMockSynchroniser()
	w, err := New(cfg, filter.NewSet(nil, nil), syn, hub.New())
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	if got := w.State(); got != StateCreated {
		t.Errorf("initial state = %v, want %v", got, StateCreated)
	}

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if got := w.State(); got != StateWatching {
		t.Errorf("state after Start = %v, want %v", got, StateWatching)
	}

	// Starting a running watcher is a no-op.
	if err := w.Start(context.Background()); err != nil {
		t.Errorf("second Start returned %v", err)
	}

	w.DisableEvents()
	if got := w.State(); got != StateDisabled {
		t.Errorf("state after DisableEvents = %v, want %v", got, StateDisabled)
	}
	w.EnableEvents()
	if got := w.State(); got != StateWatching {
		t.Errorf("state after EnableEvents = %v, want %v", got, StateWatching)
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if got := w.State(); got != StateStopped {
		t.Errorf("state after Stop = %v, want %v", got, StateStopped)
	}

	// Stopped is terminal.
	if err := w.Start(context.Background()); !errors.Is(err, domain.ErrWatcherStopped) {
		t.Errorf("Start after Stop = %v, want ErrWatcherStopped", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop returned %v", err)
	}
}

func TestAutoModeDispatchesImmediately(t *testing.T) {
	w, syn, sub := newTestWatcher(t, testConfig("w", true))

	w.Notify("/src/a.txt", ChangeAdd)
	w.Notify("/src/b.txt", ChangeDelete)

	testutil.WaitFor(t, time.Second, func() bool {
		return syn.CallCount() == 2
	}, "expected both operations dispatched")

	if adds := syn.Adds(); len(adds) != 1 || adds[0] != "/src/a.txt" {
		t.Errorf("adds = %v", adds)
	}
	if dels := syn.Deletes(); len(dels) != 1 || dels[0] != "/src/b.txt" {
		t.Errorf("deletes = %v", dels)
	}
	if !w.Pending().Empty() {
		t.Error("auto mode should leave nothing pending")
	}

	testutil.WaitFor(t, time.Second, func() bool {
		return len(sub.EventsOfType(events.EventTypeFileSynced)) == 2
	}, "expected file_synced notifications")
}

func TestManualModeAccumulatesPending(t *testing.T) {
	w, syn, _ := newTestWatcher(t, testConfig("w", false))

	w.Notify("/src/a.txt", ChangeAdd)
	w.Notify("/src/b.txt", ChangeAdd)
	w.Notify("/src/c.txt", ChangeDelete)

	testutil.WaitFor(t, time.Second, func() bool {
		copies, dels := w.Pending().Counts()
		return copies == 2 && dels == 1
	}, "expected pending counts (2, 1)")

	if syn.CallCount() != 0 {
		t.Errorf("manual mode dispatched %d operations before flush", syn.CallCount())
	}
}

func TestManualModeDuplicateModifySinglePending(t *testing.T) {
	w, _, _ := newTestWatcher(t, testConfig("w", false))

	w.Notify("/w/a.txt", ChangeAdd)
	w.Notify("/w/a.txt", ChangeAdd)

	testutil.WaitFor(t, time.Second, func() bool {
		return w.Pending().HasCopy("/w/a.txt")
	}, "expected the path pending")
	copies, dels := w.Pending().Counts()
	if copies != 1 || dels != 0 {
		t.Errorf("pending counts = (%d, %d), want (1, 0)", copies, dels)
	}
}

func TestDuplicateModifyDropped(t *testing.T) {
	w, syn, _ := newTestWatcher(t, testConfig("w", true))

	// Two modifications to the same path collapse to one; a different path
	// resets the single-slot memo.
	w.Notify("/src/a.txt", ChangeAdd)
	w.Notify("/src/a.txt", ChangeAdd)
	w.Notify("/src/b.txt", ChangeAdd)

	testutil.WaitFor(t, time.Second, func() bool {
		return len(syn.Adds()) == 2
	}, "expected exactly 2 add dispatches")

	// After the memo moved to b, the same path is accepted again.
	w.Notify("/src/a.txt", ChangeAdd)
	testutil.WaitFor(t, time.Second, func() bool {
		return len(syn.Adds()) == 3
	}, "expected /src/a.txt re-accepted after memo reset")
}

func TestDeleteDoesNotClearDuplicateMemo(t *testing.T) {
	w, _, _ := newTestWatcher(t, testConfig("w", false))

	w.Notify("/src/a.txt", ChangeAdd)
	testutil.WaitFor(t, time.Second, func() bool {
		return w.Pending().HasCopy("/src/a.txt")
	}, "expected pending copy")

	w.Notify("/src/a.txt", ChangeDelete)
	testutil.WaitFor(t, time.Second, func() bool {
		return w.Pending().HasDelete("/src/a.txt")
	}, "expected pending delete")

	// The memo still holds the path, so the re-add is dropped and the
	// pending delete survives.
	w.Notify("/src/a.txt", ChangeAdd)
	time.Sleep(20 * time.Millisecond)
	copies, dels := w.Pending().Counts()
	if copies != 0 || dels != 1 {
		t.Errorf("pending counts = (%d, %d), want (0, 1)", copies, dels)
	}
}

func TestCrossCancellation(t *testing.T) {
	w, _, _ := newTestWatcher(t, testConfig("w", false))

	// A delete cancels the pending copy for the same path.
	w.Notify("/src/a.txt", ChangeAdd)
	w.Notify("/src/a.txt", ChangeDelete)
	testutil.WaitFor(t, time.Second, func() bool {
		return w.Pending().HasDelete("/src/a.txt") && !w.Pending().HasCopy("/src/a.txt")
	}, "delete should cancel the pending copy")

	// A re-creation cancels the pending delete for the same path.
	w.Notify("/src/b.txt", ChangeDelete)
	w.Notify("/src/b.txt", ChangeAdd)
	testutil.WaitFor(t, time.Second, func() bool {
		return w.Pending().HasCopy("/src/b.txt") && !w.Pending().HasDelete("/src/b.txt")
	}, "re-creation should cancel the pending delete")
}

func TestSynchroniseNothingPending(t *testing.T) {
	w, syn, sub := newTestWatcher(t, testConfig("w", false))

	w.Synchronise()

	testutil.WaitFor(t, time.Second, func() bool {
		return len(sub.EventsOfType(events.EventTypeNoChanges)) == 1
	}, "expected a no_changes notification")

	if syn.CallCount() != 0 {
		t.Errorf("empty flush performed %d synchroniser calls", syn.CallCount())
	}
}

func TestSynchroniseFlushesPending(t *testing.T) {
	w, syn, sub := newTestWatcher(t, testConfig("w", false))

	w.Notify("/src/a.txt", ChangeAdd)
	w.Notify("/src/b.txt", ChangeAdd)
	w.Notify("/src/c.txt", ChangeDelete)
	testutil.WaitFor(t, time.Second, func() bool {
		copies, dels := w.Pending().Counts()
		return copies == 2 && dels == 1
	}, "expected pending counts (2, 1)")

	w.Synchronise()

	testutil.WaitFor(t, time.Second, func() bool {
		return syn.CallCount() == 3
	}, "expected all pending operations dispatched")
	if !w.Pending().Empty() {
		t.Error("pending sets should be cleared by flush")
	}

	testutil.WaitFor(t, time.Second, func() bool {
		return len(sub.EventsOfType(events.EventTypeSyncSummary)) == 1
	}, "expected a sync_summary notification")
	summary := sub.EventsOfType(events.EventTypeSyncSummary)[0].(*events.BaseEvent)
	payload, ok := summary.Payload.(events.SyncSummaryPayload)
	if !ok {
		t.Fatalf("unexpected summary payload %T", summary.Payload)
	}
	if payload.Copied != 2 || payload.Deleted != 1 {
		t.Errorf("summary = %+v, want {Copied:2 Deleted:1}", payload)
	}
}

func TestSynchroniseOperationsAreIndependent(t *testing.T) {
	w, syn, sub := newTestWatcher(t, testConfig("w", false))
	syn.FailPath("/src/bad.txt", errors.New("disk full"))

	w.Notify("/src/good.txt", ChangeAdd)
	w.Notify("/src/bad.txt", ChangeAdd)
	testutil.WaitFor(t, time.Second, func() bool {
		copies, _ := w.Pending().Counts()
		return copies == 2
	}, "expected both paths pending")

	w.Synchronise()

	// The failing operation does not stop the other one.
	testutil.WaitFor(t, time.Second, func() bool {
		return len(syn.Adds()) == 1 &&
			len(sub.EventsOfType(events.EventTypeSyncError)) == 1 &&
			len(sub.EventsOfType(events.EventTypeFileSynced)) == 1
	}, "expected one success and one reported failure")
}

func TestDisabledWatcherIgnoresEvents(t *testing.T) {
	w, _, _ := newTestWatcher(t, testConfig("w", false))

	w.DisableEvents()
	w.Notify("/src/a.txt", ChangeAdd)
	w.EnableEvents()
	w.Notify("/src/b.txt", ChangeAdd)

	// Events are processed in order: once b is pending, a's fate is settled.
	testutil.WaitFor(t, time.Second, func() bool {
		return w.Pending().HasCopy("/src/b.txt")
	}, "expected event accepted after re-enable")
	if w.Pending().HasCopy("/src/a.txt") {
		t.Error("event received while disabled should be dropped")
	}
}

func TestFilteredEventsIgnored(t *testing.T) {
	cfg := testConfig("w", false)
	cfg.Filters = []filter.Filter{{Kind: filter.KindExclude, Patterns: []string{"*.tmp"}}}
	w, _, _ := newTestWatcher(t, cfg)

	w.Notify("/src/a.tmp", ChangeAdd)
	w.Notify("/src/b.txt", ChangeAdd)

	testutil.WaitFor(t, time.Second, func() bool {
		return w.Pending().HasCopy("/src/b.txt")
	}, "expected unfiltered event accepted")
	if w.Pending().HasCopy("/src/a.tmp") {
		t.Error("excluded path should not reach the pending set")
	}
}

func TestAddFilterAppliesImmediately(t *testing.T) {
	w, _, _ := newTestWatcher(t, testConfig("w", false))

	if err := w.AddFilter(filter.Filter{Kind: filter.KindExcludeFile, Patterns: []string{"*.log"}}); err != nil {
		t.Fatalf("AddFilter failed: %v", err)
	}

	w.Notify("/src/x.log", ChangeAdd)
	w.Notify("/src/y.txt", ChangeAdd)
	testutil.WaitFor(t, time.Second, func() bool {
		return w.Pending().HasCopy("/src/y.txt")
	}, "expected unfiltered event accepted")
	if w.Pending().HasCopy("/src/x.log") {
		t.Error("path excluded by the appended filter should be dropped")
	}

	if got := len(w.Config().Filters); got != 1 {
		t.Errorf("config carries %d filters, want 1", got)
	}

	if err := w.AddFilter(filter.Filter{Kind: filter.Kind(99)}); err == nil {
		t.Error("expected error for unknown filter kind")
	}
}

func TestFullSynchroniseDelegates(t *testing.T) {
	w, syn, _ := newTestWatcher(t, testConfig("w", true))

	if err := w.FullSynchronise(); err != nil {
		t.Fatalf("FullSynchronise failed: %v", err)
	}
	if syn.FullCalls() != 1 {
		t.Errorf("full calls = %d, want 1", syn.FullCalls())
	}
}

func TestEqualComparesConfigurationOnly(t *testing.T) {
	cfg := testConfig("w", true)

	a, err := New(cfg, filter.NewSet(nil, nil), testutil.NewMockSynchroniser(), hub.New())
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(cfg, filter.NewSet(nil, nil), testutil.NewMockSynchroniser(), hub.New())
	if err != nil {
		t.Fatal(err)
	}

	// Different runtime collaborators, same configuration.
	if !a.Equal(b) {
		t.Error("watchers with equal configurations should compare equal")
	}
	if a.ID() == b.ID() {
		t.Error("watcher identifiers should be unique")
	}

	other := testConfig("other", true)
	c, err := New(other, filter.NewSet(nil, nil), testutil.NewMockSynchroniser(), hub.New())
	if err != nil {
		t.Fatal(err)
	}
	if a.Equal(c) {
		t.Error("watchers with different configurations should not compare equal")
	}
	if a.Equal(nil) {
		t.Error("Equal(nil) should be false")
	}
}

func TestNotifyBeforeStartIsIgnored(t *testing.T) {
	cfg := testConfig("w", false)
	w, err := New(cfg, filter.NewSet(nil, nil), testutil.NewMockSynchroniser(), hub.New())
	if err != nil {
		t.Fatal(err)
	}

	// No debouncer exists yet; this must not panic.
	w.Notify("/src/a.txt", ChangeAdd)
	if !w.Pending().Empty() {
		t.Error("notification before Start should have no effect")
	}
}

func TestStateString(t *testing.T) {
	cases := []struct {
		state State
		want  string
	}{
		{StateCreated, "created"},
		{StateWatching, "watching"},
		{StateDisabled, "disabled"},
		{StateStopped, "stopped"},
		{State(42), "state(42)"},
	}
	for _, tc := range cases {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tc.state), got, tc.want)
		}
	}
}
