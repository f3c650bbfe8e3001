// Package queue provides bounded, lock-free single-producer/single-consumer
// channels with no dynamic allocation after construction.
//
// Both Ring and Framed are safe to use across an interrupt/foreground
// boundary without locks: the producer only ever advances the write cursor
// and the consumer only ever advances the read cursor, with the usual
// acquire/release ordering carried by sync/atomic. This is the same span +
// atomic-cursor construction used by SPSC byte rings elsewhere in the
// ecosystem, generalized here from a byte ring to a ring of arbitrary
// fixed-size values.
package queue

import "sync/atomic"

// Ring is a fixed-capacity SPSC ring buffer of values of type T. It never
// allocates after New: the backing array is sized once and reused for the
// lifetime of the Ring.
type Ring[T any] struct {
	slots []T
	mask  uint32
	rd    atomic.Uint32
	wr    atomic.Uint32
}

// NewRing constructs a Ring able to hold capacity items. capacity is
// rounded up to the next power of two internally; callers only observe the
// requested capacity through Cap's lower bound.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	size := nextPowerOfTwo(capacity)
	return &Ring[T]{
		slots: make([]T, size),
		mask:  uint32(size - 1),
	}
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Cap returns the usable capacity of the ring.
func (r *Ring[T]) Cap() int { return len(r.slots) }

// Len returns the number of items currently queued.
func (r *Ring[T]) Len() int {
	return int(r.wr.Load() - r.rd.Load())
}

// IsEmpty reports whether the ring currently holds no items.
func (r *Ring[T]) IsEmpty() bool { return r.Len() == 0 }

// IsFull reports whether the ring currently has no free slots.
func (r *Ring[T]) IsFull() bool { return r.Len() == len(r.slots) }

// TryPush attempts to enqueue v without blocking. It returns false if the
// ring is full; the caller is responsible for observing this as a dropped
// item (the response/URC queues in atat are allowed to silently drop on a
// full queue per the protocol's flow-control design).
func (r *Ring[T]) TryPush(v T) bool {
	rd := r.rd.Load()
	wr := r.wr.Load()
	if wr-rd == uint32(len(r.slots)) {
		return false
	}
	r.slots[wr&r.mask] = v
	r.wr.Store(wr + 1) // release to consumer
	return true
}

// TryPop attempts to dequeue a value without blocking. ok is false if the
// ring is empty.
func (r *Ring[T]) TryPop() (v T, ok bool) {
	rd := r.rd.Load()
	wr := r.wr.Load()
	if rd == wr {
		return v, false
	}
	v = r.slots[rd&r.mask]
	var zero T
	r.slots[rd&r.mask] = zero
	r.rd.Store(rd + 1) // release space to producer
	return v, true
}
