package syncer

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 64

// pathLocks serializes operations on the same target path with striped
// mutexes. Two paths hashing to different stripes proceed concurrently;
// colliding paths serialize, which is safe, just occasionally stricter than
// necessary.
type pathLocks struct {
	stripes [lockStripes]sync.Mutex
}

func newPathLocks() *pathLocks {
	return &pathLocks{}
}

// lock acquires the stripe for path and returns its unlock func.
func (p *pathLocks) lock(path string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(path))
	mu := &p.stripes[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}
