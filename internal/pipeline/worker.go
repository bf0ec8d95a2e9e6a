// SPDX-License-Identifier: MIT
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"wearaudio/internal/device"
	applog "wearaudio/internal/log"
)

// Processor consumes one capture block and fills one playback block,
// reporting how many output samples it wrote. algo.Instance satisfies it.
type Processor interface {
	Process(in []uint16, out []uint8) (int, error)
	Name() string
}

// BlockSink receives a copy of every completed playback block. Used for
// recording; Send failures are logged, never fatal to the audio path.
type BlockSink interface {
	WriteBlock(block []uint8) error
}

type procHolder struct {
	proc Processor
}

// Worker drains the bridge and runs the active processor on each block.
// It is the only goroutine touching the playback buffer between the
// block boundaries, and the only caller of Processor.Process.
//
// The active processor is swappable between blocks through an atomic
// pointer; no lock is held across a Process call.
type Worker struct {
	core   *Core
	bridge *Bridge
	active atomic.Pointer[procHolder]
	sink   atomic.Pointer[BlockSink]

	deadline time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewWorker binds a worker to the core and bridge with proc active.
func NewWorker(core *Core, bridge *Bridge, proc Processor) *Worker {
	w := &Worker{
		core:     core,
		bridge:   bridge,
		deadline: core.BlockPeriod(),
	}
	w.active.Store(&procHolder{proc: proc})
	return w
}

// Swap replaces the active processor and returns the previous one. Takes
// effect at the next block boundary; the in-flight block finishes on the
// old processor.
func (w *Worker) Swap(proc Processor) Processor {
	old := w.active.Swap(&procHolder{proc: proc})
	applog.Infof("Worker: algorithm swapped to %q", proc.Name())
	return old.proc
}

// Active returns the processor the next block will run through.
func (w *Worker) Active() Processor {
	return w.active.Load().proc
}

// SetSink installs a block sink, or removes it when sink is nil.
func (w *Worker) SetSink(sink BlockSink) {
	if sink == nil {
		w.sink.Store(nil)
		return
	}
	w.sink.Store(&sink)
}

// Start launches the worker goroutine. Idempotent.
func (w *Worker) Start() {
	w.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		w.cancel = cancel
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.Run(ctx)
		}()
	})
}

// Stop cancels the worker and waits for the in-flight block. Idempotent.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		w.wg.Wait()
	})
}

// Run drains the bridge until ctx is cancelled or the bridge closes.
// Exposed for tests that want the loop on their own goroutine.
func (w *Worker) Run(ctx context.Context) {
	applog.Infof("Worker: running (deadline=%s)", w.deadline)
	for {
		ev, ok := w.bridge.Take(ctx)
		if !ok {
			applog.Infof("Worker: exiting")
			return
		}
		w.processEvent(ev)
	}
}

func (w *Worker) processEvent(ev BlockEvent) {
	counters := w.core.Counters()
	in := w.core.CaptureBlock(ev.CaptureStart)
	out := w.core.PlaybackBlock(ev.PlaybackStart)

	proc := w.active.Load().proc
	n, err := proc.Process(in, out)
	if err != nil || n != len(out) {
		counters.ContractViolations.Add(1)
		if err != nil {
			applog.Errorf("Worker: block %d: %s failed: %v", ev.Seq, proc.Name(), err)
		} else {
			applog.Errorf("Worker: block %d: %s wrote %d samples, expected %d",
				ev.Seq, proc.Name(), n, len(out))
		}
		fallbackFill(in, out)
	}

	if time.Since(ev.PostedAt) > w.deadline {
		counters.DeadlineMisses.Add(1)
		applog.Warnf("Worker: block %d missed the %s deadline", ev.Seq, w.deadline)
	}
	counters.BlocksProcessed.Add(1)

	if sp := w.sink.Load(); sp != nil {
		if err := (*sp).WriteBlock(out); err != nil {
			applog.Errorf("Worker: block sink: %v", err)
		}
	}
}

// fallbackFill writes the unprocessed narrowed input so a faulty
// algorithm degrades to passthrough audio instead of stale samples.
func fallbackFill(in []uint16, out []uint8) {
	for i := range out {
		out[i] = uint8(in[i] >> device.InputToOutputShift)
	}
}
