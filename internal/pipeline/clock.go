// SPDX-License-Identifier: MIT
package pipeline

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrTimerUnavailable is returned when the periodic sample timer has
// already been claimed. The device has exactly one; so does this model.
var ErrTimerUnavailable = errors.New("sample timer already claimed")

// Clock is the periodic interrupt resource driving the tick handler.
// Start and Stop are idempotent; the tick callback runs on the clock's
// goroutine and must observe the tick handler's constraints.
type Clock interface {
	Start(onTick func()) error
	Stop() error
	Release()
}

// timerClaimed models the single hardware timer slot.
var timerClaimed atomic.Bool

// TickerClock drives ticks from a time.Ticker at the sample rate.
// Construction claims the timer slot; Release returns it.
type TickerClock struct {
	interval time.Duration

	mu      sync.Mutex
	done    chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewTickerClock claims the timer and prepares a clock firing at
// sampleRateHz. Fails with ErrTimerUnavailable if the timer is taken.
func NewTickerClock(sampleRateHz float64) (*TickerClock, error) {
	if sampleRateHz <= 0 {
		return nil, errors.New("sample rate must be positive")
	}
	if !timerClaimed.CompareAndSwap(false, true) {
		return nil, ErrTimerUnavailable
	}
	return &TickerClock{
		interval: time.Duration(float64(time.Second) / sampleRateHz),
	}, nil
}

// Start begins firing onTick once per interval. Idempotent.
func (c *TickerClock) Start(onTick func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}
	c.running = true
	c.done = make(chan struct{})

	done := c.done
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				onTick()
			case <-done:
				return
			}
		}
	}()
	return nil
}

// Stop disables further ticks. Idempotent; a tick already in flight
// completes.
func (c *TickerClock) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}
	c.running = false
	close(c.done)
	c.wg.Wait()
	return nil
}

// Release stops the clock and returns the timer slot.
func (c *TickerClock) Release() {
	c.Stop()
	timerClaimed.Store(false)
}

// ManualClock fires ticks only when told to, for deterministic tests.
type ManualClock struct {
	mu      sync.Mutex
	onTick  func()
	running bool
}

func NewManualClock() *ManualClock { return &ManualClock{} }

func (c *ManualClock) Start(onTick func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTick = onTick
	c.running = true
	return nil
}

func (c *ManualClock) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

func (c *ManualClock) Release() {}

// Tick fires n ticks synchronously. No-op while stopped.
func (c *ManualClock) Tick(n int) {
	c.mu.Lock()
	onTick, running := c.onTick, c.running
	c.mu.Unlock()

	if !running || onTick == nil {
		return
	}
	for range n {
		onTick()
	}
}
