// SPDX-License-Identifier: MIT
package pipeline

import (
	"errors"
	"testing"
	"time"

	"wearaudio/internal/device"
)

// stubProcessor lets tests script sample counts, errors and latency.
type stubProcessor struct {
	name    string
	fill    uint8
	written func(blockSize int) int
	err     error
	delay   time.Duration
	calls   int
}

func (s *stubProcessor) Process(in []uint16, out []uint8) (int, error) {
	s.calls++
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return 0, s.err
	}
	for i := range out {
		out[i] = s.fill
	}
	if s.written != nil {
		return s.written(len(out)), nil
	}
	return len(out), nil
}

func (s *stubProcessor) Name() string { return s.name }

func workerFixture(t *testing.T, proc Processor) (*Core, *Bridge, *ManualClock, *Worker) {
	t.Helper()
	core, bridge, clock := testCore(t, 4, 8, device.NewSliceInput(rampInput(64)), device.DiscardOutput{})
	return core, bridge, clock, NewWorker(core, bridge, proc)
}

func rampInput(n int) []uint16 {
	samples := make([]uint16, n)
	for i := range samples {
		samples[i] = uint16(i * 16)
	}
	return samples
}

func drain(t *testing.T, w *Worker, bridge *Bridge) {
	t.Helper()
	for bridge.Pending() > 0 {
		ev, ok := takeNow(bridge)
		if !ok {
			t.Fatal("bridge reported pending events but none taken")
		}
		w.processEvent(ev)
	}
}

func TestWorkerFillsPlaybackBlock(t *testing.T) {
	proc := &stubProcessor{name: "stub", fill: 200}
	core, bridge, clock, w := workerFixture(t, proc)

	clock.Tick(4)
	drain(t, w, bridge)

	block := core.PlaybackBlock(4)
	for i, v := range block {
		if v != 200 {
			t.Fatalf("playback[%d] = %d, expected 200", 4+i, v)
		}
	}
	if got := core.Counters().BlocksProcessed.Load(); got != 1 {
		t.Errorf("BlocksProcessed = %d, expected 1", got)
	}
}

func TestWorkerFallsBackOnShortWrite(t *testing.T) {
	proc := &stubProcessor{
		name:    "short",
		fill:    200,
		written: func(blockSize int) int { return blockSize - 1 },
	}
	core, bridge, clock, w := workerFixture(t, proc)

	clock.Tick(4)
	drain(t, w, bridge)

	if got := core.Counters().ContractViolations.Load(); got != 1 {
		t.Fatalf("ContractViolations = %d, expected 1", got)
	}

	// The fallback narrows the captured input, discarding the stub's fill.
	in := core.CaptureBlock(0)
	out := core.PlaybackBlock(4)
	for i := range out {
		if expected := uint8(in[i] >> device.InputToOutputShift); out[i] != expected {
			t.Fatalf("playback[%d] = %d, expected narrowed input %d", 4+i, out[i], expected)
		}
	}
}

func TestWorkerFallsBackOnProcessError(t *testing.T) {
	proc := &stubProcessor{name: "broken", err: errors.New("transform failed")}
	core, bridge, clock, w := workerFixture(t, proc)

	clock.Tick(8)
	drain(t, w, bridge)

	snap := core.Counters().Snapshot()
	if snap.ContractViolations != 2 {
		t.Errorf("ContractViolations = %d, expected 2", snap.ContractViolations)
	}
	if snap.BlocksProcessed != 2 {
		t.Errorf("BlocksProcessed = %d, expected 2 (fallback still completes the block)", snap.BlocksProcessed)
	}
}

func TestWorkerCountsDeadlineMisses(t *testing.T) {
	core, bridge, clock, w := workerFixture(t, &stubProcessor{name: "slow", delay: 2 * time.Millisecond})

	// Block period at 8000 Hz and block 4 is 500µs; a 2ms processor
	// always misses.
	clock.Tick(4)
	drain(t, w, bridge)

	if got := core.Counters().DeadlineMisses.Load(); got != 1 {
		t.Errorf("DeadlineMisses = %d, expected 1", got)
	}
}

func TestWorkerSwapTakesEffectBetweenBlocks(t *testing.T) {
	first := &stubProcessor{name: "first", fill: 10}
	second := &stubProcessor{name: "second", fill: 20}
	core, bridge, clock, w := workerFixture(t, first)

	clock.Tick(4)
	drain(t, w, bridge)

	if old := w.Swap(second); old != Processor(first) {
		t.Fatalf("Swap returned %v, expected the first processor", old)
	}
	if w.Active() != Processor(second) {
		t.Fatal("Active did not report the swapped-in processor")
	}

	clock.Tick(4)
	drain(t, w, bridge)

	if first.calls != 1 || second.calls != 1 {
		t.Fatalf("calls = (%d, %d), expected one block through each", first.calls, second.calls)
	}
	for i, v := range core.PlaybackBlock(0) {
		if v != 20 {
			t.Fatalf("playback[%d] = %d, expected the second processor's fill", i, v)
		}
	}
}

func TestWorkerRunExitsOnBridgeClose(t *testing.T) {
	_, bridge, clock, w := workerFixture(t, &stubProcessor{name: "stub"})

	w.Start()
	w.Start() // idempotent
	clock.Tick(8)

	deadline := time.After(time.Second)
	for bridge.Pending() > 0 {
		select {
		case <-deadline:
			t.Fatal("worker did not drain the bridge")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	bridge.Close()
	done := make(chan struct{})
	go func() {
		w.Stop()
		w.Stop() // idempotent
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

type sliceSink struct {
	blocks [][]uint8
	err    error
}

func (s *sliceSink) WriteBlock(block []uint8) error {
	if s.err != nil {
		return s.err
	}
	s.blocks = append(s.blocks, append([]uint8(nil), block...))
	return nil
}

func TestWorkerForwardsBlocksToSink(t *testing.T) {
	proc := &stubProcessor{name: "stub", fill: 99}
	core, bridge, clock, w := workerFixture(t, proc)

	sink := &sliceSink{}
	w.SetSink(sink)

	clock.Tick(8)
	drain(t, w, bridge)

	if len(sink.blocks) != 2 {
		t.Fatalf("sink received %d blocks, expected 2", len(sink.blocks))
	}
	for _, block := range sink.blocks {
		if len(block) != core.BlockSize() {
			t.Fatalf("sink block length %d, expected %d", len(block), core.BlockSize())
		}
		for _, v := range block {
			if v != 99 {
				t.Fatalf("sink sample %d, expected 99", v)
			}
		}
	}

	// A failing sink never disturbs the audio path.
	sink.err = errors.New("disk full")
	clock.Tick(4)
	drain(t, w, bridge)
	if got := core.Counters().BlocksProcessed.Load(); got != 3 {
		t.Errorf("BlocksProcessed = %d, expected 3", got)
	}

	w.SetSink(nil)
	clock.Tick(4)
	drain(t, w, bridge)
	if len(sink.blocks) != 2 {
		t.Errorf("sink received %d blocks after removal, expected 2", len(sink.blocks))
	}
}
