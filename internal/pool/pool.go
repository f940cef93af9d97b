// Package pool implements the fixed-capacity slot allocators the rest of
// adcpd builds on: a static pool backed by a preallocated arena and a
// dynamic pool backed by a process-wide heap partition. Both guarantee
// bounded-latency allocate/free and never fragment, because slots are
// never resized or compacted — only handed out and returned.
package pool

import "sync/atomic"

// Pool is a fixed-capacity slot table of T. Zero value is not usable;
// construct with New or NewDynamic.
type Pool[T any] struct {
	slots    []T
	free     []bool
	inUse    []bool
	count    atomic.Int64
	watermark atomic.Int64
	dynamic  bool
}

// New returns a static pool with its arena preallocated up front.
func New[T any](capacity int) *Pool[T] {
	return newPool[T](capacity, false)
}

// NewDynamic returns a pool whose backing slice is still fixed capacity,
// but conceptually drawn from a process-wide heap partition rather than a
// single dedicated arena — the distinction only matters for accounting,
// not allocation behavior.
func NewDynamic[T any](capacity int) *Pool[T] {
	return newPool[T](capacity, true)
}

func newPool[T any](capacity int, dynamic bool) *Pool[T] {
	if capacity <= 0 {
		panic("pool: capacity must be positive")
	}
	return &Pool[T]{
		slots:   make([]T, capacity),
		inUse:   make([]bool, capacity),
		dynamic: dynamic,
	}
}

// Capacity returns the fixed number of slots.
func (p *Pool[T]) Capacity() int { return len(p.slots) }

// Used returns the number of currently allocated slots.
func (p *Pool[T]) Used() int { return int(p.count.Load()) }

// Available returns the number of currently free slots.
func (p *Pool[T]) Available() int { return len(p.slots) - p.Used() }

// HighWaterMark returns the maximum simultaneous occupancy observed.
func (p *Pool[T]) HighWaterMark() int { return int(p.watermark.Load()) }

// Allocate returns a slot index for a zeroed T, or ok=false if the pool is
// full. The returned index is the caller's handle; it is stable until
// Free is called with it.
func (p *Pool[T]) Allocate() (idx int, ok bool) {
	for i := range p.inUse {
		if !p.inUse[i] {
			p.inUse[i] = true
			var zero T
			p.slots[i] = zero
			n := p.count.Add(1)
			for {
				hwm := p.watermark.Load()
				if n <= hwm || p.watermark.CompareAndSwap(hwm, n) {
					break
				}
			}
			return i, true
		}
	}
	return 0, false
}

// Get returns a pointer to the slot's value. Callers must only hold this
// pointer while the slot remains allocated.
func (p *Pool[T]) Get(idx int) *T {
	return &p.slots[idx]
}

// Free returns the slot to the pool. Freeing an index that is not
// currently allocated is reported as an error and has no effect, matching
// the pool-conservation invariant (used+free=capacity always holds, and a
// bad free never corrupts the count).
func (p *Pool[T]) Free(idx int) error {
	if idx < 0 || idx >= len(p.slots) {
		return ErrOutOfRange
	}
	if !p.inUse[idx] {
		return ErrNotAllocated
	}
	p.inUse[idx] = false
	p.count.Add(-1)
	return nil
}

// Entries calls fn for every currently allocated slot, in index order.
// Used by the streaming fan-out and the stats reporter to iterate live
// entries without a separate liveness index.
func (p *Pool[T]) Entries(fn func(idx int, v *T)) {
	for i := range p.inUse {
		if p.inUse[i] {
			fn(i, &p.slots[i])
		}
	}
}

// IsDynamic reports whether this pool was constructed with NewDynamic.
func (p *Pool[T]) IsDynamic() bool { return p.dynamic }
