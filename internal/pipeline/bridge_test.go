// SPDX-License-Identifier: MIT
package pipeline

import (
	"context"
	"testing"
	"time"
)

func TestBridgeRejectsNonPositiveCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		if _, err := NewBridge(capacity); err == nil {
			t.Errorf("NewBridge(%d) succeeded, expected error", capacity)
		}
	}
}

func TestBridgePostDropsNewestWhenFull(t *testing.T) {
	b, err := NewBridge(2)
	if err != nil {
		t.Fatalf("NewBridge: %v", err)
	}

	for seq := uint64(0); seq < 2; seq++ {
		if !b.Post(BlockEvent{Seq: seq}) {
			t.Fatalf("Post(%d) rejected with room available", seq)
		}
	}
	if b.Post(BlockEvent{Seq: 2}) {
		t.Error("Post accepted into a full bridge")
	}
	if b.Pending() != 2 {
		t.Errorf("Pending = %d, expected 2", b.Pending())
	}
}

func TestBridgeOrderSurvivesPartialLoss(t *testing.T) {
	b, err := NewBridge(3)
	if err != nil {
		t.Fatalf("NewBridge: %v", err)
	}
	ctx := context.Background()

	var accepted []uint64
	for seq := uint64(0); seq < 10; seq++ {
		if b.Post(BlockEvent{Seq: seq}) {
			accepted = append(accepted, seq)
		}
		// Drain every third post so acceptance is interleaved with loss.
		if seq%3 == 2 {
			ev, ok := b.Take(ctx)
			if !ok {
				t.Fatal("Take failed on a non-empty bridge")
			}
			if ev.Seq != accepted[0] {
				t.Fatalf("Take returned seq %d, expected %d", ev.Seq, accepted[0])
			}
			accepted = accepted[1:]
		}
	}

	prev := uint64(0)
	for _, seq := range accepted {
		if seq < prev {
			t.Fatalf("accepted sequence regressed: %d after %d", seq, prev)
		}
		prev = seq
	}
}

func TestBridgeTakeHonorsCancellation(t *testing.T) {
	b, err := NewBridge(1)
	if err != nil {
		t.Fatalf("NewBridge: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() {
		_, ok := b.Take(ctx)
		done <- ok
	}()

	cancel()
	select {
	case ok := <-done:
		if ok {
			t.Error("Take reported ok after cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("Take did not return after cancellation")
	}
}

func TestBridgeCloseReleasesTaker(t *testing.T) {
	b, err := NewBridge(4)
	if err != nil {
		t.Fatalf("NewBridge: %v", err)
	}

	b.Post(BlockEvent{Seq: 7})
	b.Close()
	b.Close() // idempotent

	ev, ok := b.Take(context.Background())
	if !ok || ev.Seq != 7 {
		t.Fatalf("Take after Close = (%d, %v), expected the queued event", ev.Seq, ok)
	}
	if _, ok := b.Take(context.Background()); ok {
		t.Error("Take reported ok on a closed, drained bridge")
	}
}

func TestBridgePostDoesNotAllocate(t *testing.T) {
	b, err := NewBridge(4)
	if err != nil {
		t.Fatalf("NewBridge: %v", err)
	}
	ctx := context.Background()

	allocs := testing.AllocsPerRun(1000, func() {
		b.Post(BlockEvent{Seq: 1, PostedAt: time.Time{}})
		b.Take(ctx)
	})
	if allocs > 0 {
		t.Errorf("Post allocates %.1f times per event, expected 0", allocs)
	}
}
