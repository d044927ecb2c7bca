package watcher

import "sync"

// PendingSet holds the paths accumulated in manual mode: pending-copy and
// pending-delete. The two sets are mutually exclusive - inserting a path into
// one removes it from the other, since a later delete invalidates a pending
// copy and a later re-creation invalidates a pending delete.
type PendingSet struct {
	mu     sync.Mutex
	copies map[string]struct{}
	dels   map[string]struct{}
}

// NewPendingSet creates an empty pending set.
func NewPendingSet() *PendingSet {
	return &PendingSet{
		copies: make(map[string]struct{}),
		dels:   make(map[string]struct{}),
	}
}

// AddCopy queues path for copying and cancels any pending delete for it.
func (p *PendingSet) AddCopy(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.dels, path)
	p.copies[path] = struct{}{}
}

// AddDelete queues path for deletion and cancels any pending copy for it.
func (p *PendingSet) AddDelete(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.copies, path)
	p.dels[path] = struct{}{}
}

// CancelCopy removes path from pending-copy if present.
func (p *PendingSet) CancelCopy(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.copies, path)
}

// CancelDelete removes path from pending-delete if present.
func (p *PendingSet) CancelDelete(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.dels, path)
}

// HasCopy reports whether path is queued for copying.
func (p *PendingSet) HasCopy(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.copies[path]
	return ok
}

// HasDelete reports whether path is queued for deletion.
func (p *PendingSet) HasDelete(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.dels[path]
	return ok
}

// Counts returns the sizes of the two sets.
func (p *PendingSet) Counts() (copies, dels int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.copies), len(p.dels)
}

// Empty reports whether both sets are empty.
func (p *PendingSet) Empty() bool {
	c, d := p.Counts()
	return c == 0 && d == 0
}

// TakeAll atomically drains both sets and returns their contents.
func (p *PendingSet) TakeAll() (copies, dels []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	copies = make([]string, 0, len(p.copies))
	for path := range p.copies {
		copies = append(copies, path)
	}
	dels = make([]string, 0, len(p.dels))
	for path := range p.dels {
		dels = append(dels, path)
	}
	p.copies = make(map[string]struct{})
	p.dels = make(map[string]struct{})
	return copies, dels
}
