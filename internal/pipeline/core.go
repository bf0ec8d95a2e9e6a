// SPDX-License-Identifier: MIT
/*
Package pipeline implements the real-time capture/playback core: the tick
handler driven by the sample clock, the two phase-offset circular buffers
it advances, the bounded bridge that hands completed blocks to the worker,
and the worker loop that runs the active algorithm.

Concurrency model: the tick handler is the interrupt context. It is O(1),
allocation-free and lock-free. The worker is an ordinarily scheduled
goroutine that may block and allocate. The two share the circular buffers
without locks because mutation rights are partitioned spatially: the
playback cursor stays exactly one block ahead of the capture cursor
(mod bufferLength), so the block the worker touches is never the block
the tick handler is traversing, as long as the worker finishes within one
block period. That deadline is the correctness assumption, and misses are
counted rather than silently ignored.
*/
package pipeline

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"wearaudio/internal/device"
	applog "wearaudio/internal/log"
)

// ErrInvalidConfig wraps the geometry rejections from Config.validate.
var ErrInvalidConfig = errors.New("invalid pipeline configuration")

// Config fixes the pipeline geometry at initialization. The values
// originate outside the core and are validated, never adjusted.
type Config struct {
	SampleRateHz float64
	BlockSize    int
	BufferLength int
}

func (c Config) validate() error {
	if c.SampleRateHz <= 0 {
		return fmt.Errorf("%w: sample rate must be positive, got %f", ErrInvalidConfig, c.SampleRateHz)
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("%w: block size must be positive, got %d", ErrInvalidConfig, c.BlockSize)
	}
	if c.BufferLength%c.BlockSize != 0 {
		return fmt.Errorf("%w: buffer length %d is not a multiple of block size %d",
			ErrInvalidConfig, c.BufferLength, c.BlockSize)
	}
	if c.BufferLength < 2*c.BlockSize {
		return fmt.Errorf("%w: buffer length %d is less than two blocks of %d",
			ErrInvalidConfig, c.BufferLength, c.BlockSize)
	}
	return nil
}

// Core owns both circular buffers and cursors, the tick handler, and
// start/stop control. One Core is constructed at bring-up and passed by
// reference into the clock and the worker; there is no ambient state.
type Core struct {
	cfg Config

	capture  []uint16 // written by the tick handler, read per block by the worker
	playback []uint8  // written per block by the worker, read by the tick handler

	capturePos  int
	playbackPos int
	seq         uint64

	in     device.Input
	out    device.Output
	bridge *Bridge
	clock  Clock

	counters Counters
	running  atomic.Bool
}

// New allocates both buffers and wires the core to its devices, bridge
// and clock. Cursors start with the playback cursor exactly one block
// ahead, the fixed pipeline delay every later tick preserves. The
// playback buffer is seeded with the DAC midpoint so the first block
// period plays silence, not garbage.
func New(cfg Config, in device.Input, out device.Output, bridge *Bridge, clock Clock) (*Core, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if in == nil || out == nil {
		return nil, fmt.Errorf("%w: nil input or output device", ErrInvalidConfig)
	}
	if bridge == nil {
		return nil, fmt.Errorf("%w: nil bridge", ErrInvalidConfig)
	}
	if clock == nil {
		return nil, fmt.Errorf("%w: nil clock", ErrInvalidConfig)
	}

	playback := make([]uint8, cfg.BufferLength)
	for i := range playback {
		playback[i] = device.OutputMidpoint
	}

	core := &Core{
		cfg:         cfg,
		capture:     make([]uint16, cfg.BufferLength),
		playback:    playback,
		capturePos:  0,
		playbackPos: cfg.BlockSize,
		in:          in,
		out:         out,
		bridge:      bridge,
		clock:       clock,
	}

	applog.Infof("Pipeline: core initialized (rate=%.0f Hz, block=%d, buffer=%d, delay=%s)",
		cfg.SampleRateHz, cfg.BlockSize, cfg.BufferLength, core.BlockPeriod())

	return core, nil
}

// Start enables tick generation. Idempotent.
func (c *Core) Start() error {
	if !c.running.CompareAndSwap(false, true) {
		return nil
	}
	if err := c.clock.Start(c.OnTick); err != nil {
		c.running.Store(false)
		return err
	}
	applog.Infof("Pipeline: started")
	return nil
}

// Stop disables tick generation. Idempotent. A worker invocation already
// in flight completes; there is no mid-block cancellation.
func (c *Core) Stop() error {
	if !c.running.CompareAndSwap(true, false) {
		return nil
	}
	if err := c.clock.Stop(); err != nil {
		return err
	}
	applog.Infof("Pipeline: stopped")
	return nil
}

// Running reports whether ticks are enabled.
func (c *Core) Running() bool {
	return c.running.Load()
}

// OnTick is the periodic interrupt handler. It is O(1) and performs no
// allocation and takes no locks:
//
//  1. Read one sample from the input device into the capture buffer.
//  2. Write one sample from the playback buffer to the output device.
//  3. Advance both cursors modulo the buffer length.
//  4. On a block boundary, post the just-completed capture block and its
//     destination playback block. A full bridge drops the event (newest
//     loses) and bumps the overflow counter; output continuity is never
//     sacrificed for algorithm coverage.
func (c *Core) OnTick() {
	c.capture[c.capturePos] = c.in.ReadSample()
	c.out.WriteSample(c.playback[c.playbackPos])

	c.capturePos++
	if c.capturePos == c.cfg.BufferLength {
		c.capturePos = 0
	}
	c.playbackPos++
	if c.playbackPos == c.cfg.BufferLength {
		c.playbackPos = 0
	}

	if c.capturePos%c.cfg.BlockSize == 0 {
		captureStart := c.capturePos - c.cfg.BlockSize
		if captureStart < 0 {
			captureStart += c.cfg.BufferLength
		}
		ev := BlockEvent{
			CaptureStart:  captureStart,
			PlaybackStart: c.capturePos,
			Seq:           c.seq,
			PostedAt:      time.Now(),
		}
		c.seq++
		if c.bridge.Post(ev) {
			c.counters.EventsPosted.Add(1)
		} else {
			c.counters.Overflows.Add(1)
		}
	}

	c.counters.Ticks.Add(1)
}

// CaptureBlock returns the capture block starting at start. The worker
// calls it with the event's CaptureStart only; the block is fully written
// and will not be revisited for bufferLength/blockSize - 1 more blocks.
func (c *Core) CaptureBlock(start int) []uint16 {
	return c.capture[start : start+c.cfg.BlockSize]
}

// PlaybackBlock returns the playback block starting at start, which the
// tick handler will begin reading one block period after the event fired.
func (c *Core) PlaybackBlock(start int) []uint8 {
	return c.playback[start : start+c.cfg.BlockSize]
}

// Cursors returns the current capture and playback positions.
func (c *Core) Cursors() (capturePos, playbackPos int) {
	return c.capturePos, c.playbackPos
}

// BlockPeriod is the worker's deadline: blockSize / sampleRate.
func (c *Core) BlockPeriod() time.Duration {
	return time.Duration(float64(c.cfg.BlockSize) / c.cfg.SampleRateHz * float64(time.Second))
}

// BlockSize returns the configured block size.
func (c *Core) BlockSize() int {
	return c.cfg.BlockSize
}

// Counters exposes the diagnostic counters.
func (c *Core) Counters() *Counters {
	return &c.counters
}

// Close stops the pipeline and releases the timer claim.
func (c *Core) Close() error {
	if err := c.Stop(); err != nil {
		return err
	}
	c.clock.Release()
	return nil
}
