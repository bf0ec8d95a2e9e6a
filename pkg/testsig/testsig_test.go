// SPDX-License-Identifier: MIT
package testsig

import (
	"math"
	"testing"
)

func TestSineStaysInRange(t *testing.T) {
	buffer := Sine(1024, 8000, 440, 1.0)
	for i, s := range buffer {
		if s > 4095 {
			t.Fatalf("sample %d out of 12-bit range: %d", i, s)
		}
	}
}

func TestSineZeroAmplitudeIsMidpoint(t *testing.T) {
	buffer := Sine(64, 8000, 440, 0)
	for i, s := range buffer {
		if s != Midpoint {
			t.Fatalf("sample %d = %d, expected midpoint %d", i, s, Midpoint)
		}
	}
}

func TestFindPeakBin(t *testing.T) {
	magnitudes := make([]float64, 512)
	for i := range magnitudes {
		// Hill with a known peak at bin 128.
		magnitudes[i] = math.Exp(-0.01 * math.Pow(float64(i-128), 2))
	}

	tests := []struct {
		name     string
		start    int
		end      int
		expected int
	}{
		{"Full Range", 0, 511, 128},
		{"Clamped Start", -5, 511, 128},
		{"Clamped End", 0, 10000, 128},
		{"Window Excludes Peak", 200, 300, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindPeakBin(magnitudes, tt.start, tt.end); got != tt.expected {
				t.Errorf("FindPeakBin(%d, %d) = %d, expected %d", tt.start, tt.end, got, tt.expected)
			}
		})
	}
}
