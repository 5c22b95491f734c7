package typestate

import (
	"sync"
	"sync/atomic"
)

const maxPooledScratch = 1 << 14

// scratchPool hands out object buffers to the general paths of the set
// operations. A buffer is owned by one goroutine between acquire and release
// and its contents never escape: results are copied out before release.
type scratchPool struct {
	pool sync.Pool
	// held counts buffers acquired and not yet released.
	held atomic.Int64
}

type scratch struct {
	objects []*Object
}

func newScratchPool() *scratchPool {
	return &scratchPool{pool: sync.Pool{
		New: func() any { return &scratch{objects: make([]*Object, 0, 64)} },
	}}
}

func (p *scratchPool) acquire() *scratch {
	s := p.pool.Get().(*scratch)
	s.objects = s.objects[:0]
	p.held.Add(1)
	return s
}

// release returns s to the pool. Callers defer it right after acquire.
func (p *scratchPool) release(s *scratch) {
	p.held.Add(-1)
	if cap(s.objects) > maxPooledScratch {
		return
	}
	clear(s.objects[:cap(s.objects)])
	s.objects = s.objects[:0]
	p.pool.Put(s)
}

// withScratch runs fn with a pooled buffer and releases it on every exit
// path, including panics raised by invariant checks.
func withScratch[T any](u *Universe, fn func(s *scratch) T) T {
	s := u.scratch.acquire()
	defer u.scratch.release(s)
	return fn(s)
}

// detach copies the buffered objects into a right-sized slice.
func (s *scratch) detach() []*Object {
	out := make([]*Object, len(s.objects))
	copy(out, s.objects)
	return out
}
