// SPDX-License-Identifier: MIT
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// BlockEvent identifies exactly one completed capture block and the
// playback block the worker must fill. It is a small fixed-size value:
// posting one never touches the heap.
type BlockEvent struct {
	CaptureStart  int       // first index of the completed capture block
	PlaybackStart int       // first index of the playback block to fill
	Seq           uint64    // monotonically increasing block number
	PostedAt      time.Time // when the tick handler emitted the event
}

// Bridge is the bounded, non-blocking hand-off from the tick context to
// the worker context. The buffered channel doubles as the preallocated
// event slot ring: Post never allocates and never blocks.
//
// Overflow policy is drop-newest: a full bridge rejects the incoming
// event rather than stalling the producer or dropping the oldest (which
// would put the worker behind stale work). Accepted events are delivered
// strictly in post order.
type Bridge struct {
	ch        chan BlockEvent
	closeOnce sync.Once
}

// NewBridge creates a bridge holding at most capacity pending events.
func NewBridge(capacity int) (*Bridge, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("bridge capacity must be positive, got %d", capacity)
	}
	return &Bridge{ch: make(chan BlockEvent, capacity)}, nil
}

// Post hands an event to the worker. Safe from the tick context: it
// returns false immediately when the bridge is full.
func (b *Bridge) Post(ev BlockEvent) bool {
	select {
	case b.ch <- ev:
		return true
	default:
		return false
	}
}

// Take blocks the worker until an event is available. ok is false when
// the context is cancelled or the bridge is closed and drained.
func (b *Bridge) Take(ctx context.Context) (ev BlockEvent, ok bool) {
	select {
	case ev, ok = <-b.ch:
		return ev, ok
	case <-ctx.Done():
		return BlockEvent{}, false
	}
}

// Close releases the worker once pending events are drained. Posting
// after Close is a programming error (it panics), so the pipeline stops
// the clock first.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() { close(b.ch) })
}

// Pending returns the number of queued events.
func (b *Bridge) Pending() int {
	return len(b.ch)
}

// Capacity returns the bridge's fixed capacity.
func (b *Bridge) Capacity() int {
	return cap(b.ch)
}
