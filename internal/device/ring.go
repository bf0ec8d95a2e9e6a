// SPDX-License-Identifier: MIT
package device

import "sync/atomic"

// ring is a single-producer single-consumer ring buffer bridging the
// PortAudio stream callback and the tick path. Both sides are lock-free;
// capacity must be a power of two.
type ring[T any] struct {
	buf  []T
	mask uint64
	head atomic.Uint64 // next write
	tail atomic.Uint64 // next read
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{
		buf:  make([]T, capacity),
		mask: uint64(capacity - 1),
	}
}

// push appends v, dropping it when the ring is full. head has exactly one
// writer (the producer) and tail exactly one (the consumer); a full ring
// sheds the newest sample, matching the bridge's overflow policy.
func (r *ring[T]) push(v T) {
	head := r.head.Load()
	if head-r.tail.Load() >= uint64(len(r.buf)) {
		return
	}
	r.buf[head&r.mask] = v
	r.head.Store(head + 1)
}

// pop removes the oldest entry. ok is false when the ring is empty.
func (r *ring[T]) pop() (v T, ok bool) {
	tail := r.tail.Load()
	if tail == r.head.Load() {
		return v, false
	}
	v = r.buf[tail&r.mask]
	r.tail.Store(tail + 1)
	return v, true
}

func (r *ring[T]) len() int {
	return int(r.head.Load() - r.tail.Load())
}
