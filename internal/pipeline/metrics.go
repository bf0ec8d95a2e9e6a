// SPDX-License-Identifier: MIT
package pipeline

import "sync/atomic"

// Counters are the pipeline's diagnostic metrics. Runtime faults on the
// tick path cannot propagate as errors, so they are recorded here and
// never silently ignored. All fields are atomics; safe from any context.
type Counters struct {
	Ticks              atomic.Uint64 // total tick handler invocations
	EventsPosted       atomic.Uint64 // block-ready events accepted by the bridge
	Overflows          atomic.Uint64 // events dropped because the bridge was full
	BlocksProcessed    atomic.Uint64 // blocks completed by the worker
	DeadlineMisses     atomic.Uint64 // blocks finished after one block period
	ContractViolations atomic.Uint64 // wrong sample counts from the active algorithm
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Ticks              uint64
	EventsPosted       uint64
	Overflows          uint64
	BlocksProcessed    uint64
	DeadlineMisses     uint64
	ContractViolations uint64
}

// Snapshot reads every counter once. The values are individually atomic,
// not a consistent cut; good enough for diagnostics.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Ticks:              c.Ticks.Load(),
		EventsPosted:       c.EventsPosted.Load(),
		Overflows:          c.Overflows.Load(),
		BlocksProcessed:    c.BlocksProcessed.Load(),
		DeadlineMisses:     c.DeadlineMisses.Load(),
		ContractViolations: c.ContractViolations.Load(),
	}
}
