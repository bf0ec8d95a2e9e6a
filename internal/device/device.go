// SPDX-License-Identifier: MIT
/*
Package device abstracts the single-channel sample primitives the pipeline
ticks against: one fixed-width reading in, one fixed-width sample out per
call. Both are treated as bounded-latency, non-blocking primitives.

The capture side carries 12-bit unsigned samples (ADC resolution), the
playback side 8-bit unsigned samples (DAC-native width). Implementations
must be safe to call from the tick path: no allocation, no locks.
*/
package device

import "math"

// Sample format of the capture and playback primitives.
const (
	InputBits      = 12
	InputMax       = 4095
	InputMidpoint  = 2048
	OutputMidpoint = 128

	// InputToOutputShift converts a 12-bit reading to the 8-bit DAC width.
	InputToOutputShift = 4
)

// Input is a single-channel sampling primitive returning one 12-bit
// reading per call.
type Input interface {
	ReadSample() uint16
}

// Output is a single-channel write primitive accepting one 8-bit sample
// per call.
type Output interface {
	WriteSample(uint8)
}

// SineInput produces a pure sinusoid, used by the synth backend and tests.
type SineInput struct {
	sampleRate float64
	frequency  float64
	amplitude  float64
	phase      int
}

// NewSineInput returns a sine source at frequency Hz with amplitude in
// 0..1 of full scale.
func NewSineInput(sampleRate, frequency, amplitude float64) *SineInput {
	return &SineInput{
		sampleRate: sampleRate,
		frequency:  frequency,
		amplitude:  amplitude,
	}
}

func (s *SineInput) ReadSample() uint16 {
	t := float64(s.phase) / s.sampleRate
	s.phase++
	v := math.Sin(2*math.Pi*s.frequency*t) * s.amplitude * (InputMidpoint - 1)
	return uint16(v + InputMidpoint)
}

// SliceInput replays a fixed sample sequence, then the midpoint. Tests use
// it to feed exact blocks through the pipeline.
type SliceInput struct {
	samples []uint16
	pos     int
}

func NewSliceInput(samples []uint16) *SliceInput {
	return &SliceInput{samples: samples}
}

func (s *SliceInput) ReadSample() uint16 {
	if s.pos >= len(s.samples) {
		return InputMidpoint
	}
	v := s.samples[s.pos]
	s.pos++
	return v
}

// SilentInput always reads the midpoint.
type SilentInput struct{}

func (SilentInput) ReadSample() uint16 { return InputMidpoint }

// DiscardOutput drops every sample, for headless runs.
type DiscardOutput struct{}

func (DiscardOutput) WriteSample(uint8) {}

// CaptureOutput records every written sample so tests can inspect the
// played stream.
type CaptureOutput struct {
	Samples []uint8
}

func (c *CaptureOutput) WriteSample(v uint8) {
	c.Samples = append(c.Samples, v)
}

// GatedOutput forwards samples only while the ready predicate holds,
// otherwise it drops them. This is the boundary to the peer-connection
// subsystem: the peer exposes nothing but "ready to receive output".
type GatedOutput struct {
	out   Output
	ready func() bool
}

func NewGatedOutput(out Output, ready func() bool) *GatedOutput {
	return &GatedOutput{out: out, ready: ready}
}

func (g *GatedOutput) WriteSample(v uint8) {
	if g.ready() {
		g.out.WriteSample(v)
	}
}
