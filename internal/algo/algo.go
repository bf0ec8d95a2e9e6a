// SPDX-License-Identifier: MIT
/*
Package algo defines the pluggable block-transform interface the worker
drives, plus the closed set of concrete variants: passthrough and
spectral analysis.

Exactly one variant is active at a time. A variant consumes one completed
capture block and produces one playback block of the same length; the
returned sample count is the worker's contract check. Swapping the active
variant happens either while the pipeline is stopped or through the
worker's atomic swap point between block invocations.
*/
package algo

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
)

// Peak tracking policies for the spectral variant. The reference behavior
// leaves this open, so it is configuration rather than fixed semantics.
const (
	PeakLifetime = "lifetime" // accumulate for the instance's lifetime
	PeakBlock    = "block"    // reset at every block
)

// MaxGain bounds the linear gain. Anything past this saturates every
// non-midpoint sample anyway, and it keeps the 16.16 fixed-point
// representation far from the int32 edge.
const MaxGain = 256.0

// Config carries the algorithm-specific parameters supplied by the
// bring-up path. Values originate outside the core (CLI, config file or
// a serial control packet) and are validated here.
type Config struct {
	BlockSize    int
	SampleRate   float64
	Gain         float64 // linear gain applied by passthrough, 1.0 = unity
	GateThresh   float64 // noise gate threshold 0..1 of full scale, 0 disables
	Window       string  // window function name for the spectral variant
	PeakTracking string  // PeakLifetime or PeakBlock
}

// Algorithm is the capability set every variant exposes. Process must
// consume exactly len(in) samples and report len(out) samples written;
// any other count is a contract violation handled by the worker.
type Algorithm interface {
	Init(cfg Config) error
	Process(in []uint16, out []uint8) (int, error)
	Deinit() error
	Name() string
}

// State of a plugin instance. Transitions are one-way except the
// Ready/Processing pair, which alternates across block invocations.
type State uint32

const (
	StateUninitialized State = iota
	StateReady
	StateProcessing
	StateDeinitialized
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateProcessing:
		return "processing"
	case StateDeinitialized:
		return "deinitialized"
	default:
		return "unknown"
	}
}

var (
	ErrNotReady           = errors.New("algorithm is not in the ready state")
	ErrAlreadyInitialized = errors.New("algorithm is already initialized")
	ErrDeinitialized      = errors.New("algorithm has been deinitialized")
	ErrUnknownAlgorithm   = errors.New("unknown algorithm")
)

// Instance wraps a variant with the lifecycle state machine:
// Uninitialized → Ready → (Processing per call) → Deinitialized.
// Process is never re-entered concurrently; the single worker guarantees
// that, and the state machine catches misuse.
type Instance struct {
	algo  Algorithm
	state atomic.Uint32
}

// NewInstance wraps a variant in an Uninitialized instance.
func NewInstance(a Algorithm) *Instance {
	return &Instance{algo: a}
}

// Init moves the instance to Ready. Calling it twice, or after Deinit, is
// an error.
func (i *Instance) Init(cfg Config) error {
	switch State(i.state.Load()) {
	case StateDeinitialized:
		return ErrDeinitialized
	case StateReady, StateProcessing:
		return ErrAlreadyInitialized
	}

	if err := i.algo.Init(cfg); err != nil {
		return err
	}
	i.state.Store(uint32(StateReady))
	return nil
}

// Process runs one block through the variant. Only callable in Ready.
func (i *Instance) Process(in []uint16, out []uint8) (int, error) {
	if !i.state.CompareAndSwap(uint32(StateReady), uint32(StateProcessing)) {
		return 0, fmt.Errorf("%w: state is %s", ErrNotReady, State(i.state.Load()))
	}
	defer i.state.Store(uint32(StateReady))

	return i.algo.Process(in, out)
}

// Deinit releases the variant. Terminal; the instance cannot be reused.
// A Process call in flight finishes first; Deinit spins through the
// Processing window rather than yanking state out from under it.
func (i *Instance) Deinit() error {
	for {
		s := State(i.state.Load())
		if s == StateDeinitialized {
			return nil
		}
		if s == StateProcessing {
			runtime.Gosched()
			continue
		}
		if i.state.CompareAndSwap(uint32(s), uint32(StateDeinitialized)) {
			return i.algo.Deinit()
		}
	}
}

// Name returns the wrapped variant's name.
func (i *Instance) Name() string {
	return i.algo.Name()
}

// State returns the current lifecycle state.
func (i *Instance) State() State {
	return State(i.state.Load())
}

// Unwrap exposes the wrapped variant, e.g. to query the spectral peak.
func (i *Instance) Unwrap() Algorithm {
	return i.algo
}

// New constructs a variant from the closed set by name.
func New(name string) (Algorithm, error) {
	switch name {
	case "passthrough":
		return NewPassthrough(), nil
	case "spectral":
		return NewSpectral(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
}

// Names lists the available variants.
func Names() []string {
	return []string{"passthrough", "spectral"}
}

func validate(cfg Config) error {
	if cfg.BlockSize <= 0 {
		return fmt.Errorf("block size must be positive, got %d", cfg.BlockSize)
	}
	if cfg.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %f", cfg.SampleRate)
	}
	if cfg.Gain < 0 || cfg.Gain > MaxGain {
		return fmt.Errorf("gain must be in 0..%g, got %f", MaxGain, cfg.Gain)
	}
	if cfg.GateThresh < 0 || cfg.GateThresh > 1 {
		return fmt.Errorf("gate threshold must be in 0..1, got %f", cfg.GateThresh)
	}
	if cfg.PeakTracking != "" && cfg.PeakTracking != PeakLifetime && cfg.PeakTracking != PeakBlock {
		return fmt.Errorf("peak tracking must be %q or %q, got %q", PeakLifetime, PeakBlock, cfg.PeakTracking)
	}
	return nil
}
