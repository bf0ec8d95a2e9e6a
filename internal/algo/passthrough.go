// SPDX-License-Identifier: MIT
package algo

import (
	"wearaudio/internal/device"
)

// Passthrough maps each 12-bit capture sample to an 8-bit playback sample
// with a configurable linear gain: the baseline transform with no latency
// beyond the fixed one-block pipeline delay.
//
// An optional noise gate mutes blocks whose peak amplitude stays under the
// threshold, so the output is silent between utterances instead of
// replaying amplified noise floor.
type Passthrough struct {
	gain      float64
	gateThr   int32 // absolute amplitude threshold on the 12-bit scale
	gainFixed int32 // gain in 16.16 fixed point, applied branch-free per sample
}

// NewPassthrough returns an uninitialized passthrough variant.
func NewPassthrough() *Passthrough {
	return &Passthrough{gain: 1.0}
}

func (p *Passthrough) Name() string { return "passthrough" }

func (p *Passthrough) Init(cfg Config) error {
	if err := validate(cfg); err != nil {
		return err
	}
	p.gain = cfg.Gain
	if p.gain == 0 {
		p.gain = 1.0
	}
	// Fixed-point gain keeps the per-sample loop free of float math.
	p.gainFixed = int32(p.gain * (1 << 16))
	p.gateThr = int32(cfg.GateThresh * device.InputMidpoint)
	return nil
}

// Process writes scale(in[i]) for every i. With the gate enabled and the
// block below threshold, the whole block is the DAC midpoint (silence).
func (p *Passthrough) Process(in []uint16, out []uint8) (int, error) {
	if p.gateThr > 0 && blockPeak(in) < p.gateThr {
		for i := range out {
			out[i] = device.OutputMidpoint
		}
		return len(out), nil
	}

	n := len(in)
	if len(out) < n {
		n = len(out)
	}
	for i := 0; i < n; i++ {
		out[i] = scaleSample(in[i], p.gainFixed)
	}
	return n, nil
}

func (p *Passthrough) Deinit() error { return nil }

// blockPeak returns the maximum absolute amplitude of a block around the
// 12-bit midpoint. Branchless abs and max keep the loop predictable.
func blockPeak(in []uint16) int32 {
	var peak int32
	for _, s := range in {
		v := int32(s) - device.InputMidpoint
		mask := v >> 31
		amp := (v ^ mask) - mask
		diff := amp - peak
		peak += (diff & (diff >> 31)) ^ diff
	}
	return peak
}

// scaleSample centers a 12-bit reading, applies the fixed-point gain,
// clamps, and narrows to the 8-bit DAC width.
func scaleSample(s uint16, gainFixed int32) uint8 {
	v := int32((int64(s) - device.InputMidpoint) * int64(gainFixed) >> 16)
	if v > device.InputMidpoint-1 {
		v = device.InputMidpoint - 1
	} else if v < -device.InputMidpoint {
		v = -device.InputMidpoint
	}
	return uint8((v >> device.InputToOutputShift) + device.OutputMidpoint)
}

var _ Algorithm = (*Passthrough)(nil)
