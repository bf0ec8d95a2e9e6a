// SPDX-License-Identifier: MIT
// Package testsig generates deterministic 12-bit test signals shared by
// package tests. Samples are unsigned, centered on the ADC midpoint (2048).
package testsig

import "math"

const (
	// Midpoint is the zero level of a 12-bit unsigned sample.
	Midpoint = 2048
	// FullScale is the largest deviation from the midpoint.
	FullScale = 2047
)

// Sine fills a new buffer of the given size with a sine wave at the given
// frequency and amplitude (0..1 of full scale).
func Sine(size int, sampleRate, frequency, amplitude float64) []uint16 {
	buffer := make([]uint16, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		v := math.Sin(2*math.Pi*frequency*t) * amplitude * FullScale
		buffer[i] = uint16(v + Midpoint)
	}
	return buffer
}

// MultiTone generates a fundamental with two harmonics, the same shape used
// for spectral benchmarks: f at 0.5, 2f at 0.3, 3f at 0.2 of the amplitude.
func MultiTone(size int, sampleRate, fundamental float64) []uint16 {
	buffer := make([]uint16, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		v := math.Sin(2*math.Pi*fundamental*t)*0.5 +
			math.Sin(2*math.Pi*2*fundamental*t)*0.3 +
			math.Sin(2*math.Pi*3*fundamental*t)*0.2
		buffer[i] = uint16(v*0.9*FullScale + Midpoint)
	}
	return buffer
}

// Ramp fills a buffer with an ascending sequence starting at the midpoint,
// handy for exact positional round-trip checks.
func Ramp(size int) []uint16 {
	buffer := make([]uint16, size)
	for i := range buffer {
		buffer[i] = uint16((Midpoint + i) % 4096)
	}
	return buffer
}

// FindPeakBin returns the index of the largest magnitude in [startBin, endBin].
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
