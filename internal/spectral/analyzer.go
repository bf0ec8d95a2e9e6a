// SPDX-License-Identifier: MIT
/*
Package spectral provides the stateless forward-transform utility behind
the spectral-analysis algorithm: one block of 12-bit samples in, a
magnitude spectrum out.

All buffers are pre-allocated at construction; Transform performs no
allocations, so it is safe in the worker's steady-state loop.
*/
package spectral

import (
	"fmt"
	"math/cmplx"
	"strings"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	"wearaudio/internal/device"
	"wearaudio/pkg/bitint"
)

// WindowFunc selects the window applied before the transform.
type WindowFunc int

const (
	BartlettHann WindowFunc = iota
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

// Pre-allocated buffers for one analyzer.
type workspace struct {
	input     []float64    // windowed, normalized input
	coeffs    []complex128 // FFT complex output
	magnitude []float64    // |coeffs|
	window    []float64    // window coefficients
	mu        sync.RWMutex // guards magnitude against concurrent readers
}

// Analyzer computes the forward real FFT of fixed-size sample blocks.
// Transform is called from exactly one goroutine (the worker); magnitude
// readers such as the UDP publisher may run concurrently.
type Analyzer struct {
	fft        *fourier.FFT
	size       int
	sampleRate float64
	workspace  workspace
}

// NewAnalyzer pre-allocates the transform workspace for blocks of the
// given size. Size must be a power of 2 and the sample rate positive.
func NewAnalyzer(size int, sampleRate float64, windowType WindowFunc) (*Analyzer, error) {
	if !bitint.IsPowerOfTwo(size) {
		return nil, fmt.Errorf("transform size must be a power of 2, got %d", size)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	coeffs := make([]float64, size)
	applyWindow(coeffs, windowType)

	// FFT of a real block yields size/2 + 1 complex values.
	bins := size/2 + 1

	return &Analyzer{
		fft:        fourier.NewFFT(size),
		size:       size,
		sampleRate: sampleRate,
		workspace: workspace{
			input:     make([]float64, size),
			coeffs:    make([]complex128, bins),
			magnitude: make([]float64, bins),
			window:    coeffs,
		},
	}, nil
}

// Transform windows and normalizes one block, runs the forward FFT and
// returns the internal magnitude slice (valid until the next Transform).
// Blocks shorter than the transform size are zero-padded.
func (a *Analyzer) Transform(block []uint16) []float64 {
	a.workspace.mu.Lock()

	const norm = 1.0 / device.InputMidpoint
	n := len(block)
	for i := range a.size {
		if i < n {
			centered := float64(int(block[i]) - device.InputMidpoint)
			a.workspace.input[i] = centered * norm * a.workspace.window[i]
		} else {
			a.workspace.input[i] = 0
		}
	}

	a.fft.Coefficients(a.workspace.coeffs, a.workspace.input)
	for i, c := range a.workspace.coeffs {
		a.workspace.magnitude[i] = cmplx.Abs(c)
	}

	a.workspace.mu.Unlock()
	return a.workspace.magnitude
}

// MagnitudesInto copies the latest magnitudes into dest, which must have
// length Bins(). Intended for concurrent readers that must not allocate.
func (a *Analyzer) MagnitudesInto(dest []float64) error {
	a.workspace.mu.RLock()
	defer a.workspace.mu.RUnlock()

	if len(dest) != len(a.workspace.magnitude) {
		return fmt.Errorf("destination slice length %d does not match required length %d",
			len(dest), len(a.workspace.magnitude))
	}
	copy(dest, a.workspace.magnitude)
	return nil
}

// FreqForBin returns the center frequency (Hz) of bin k.
func (a *Analyzer) FreqForBin(k int) float64 {
	if k < 0 || k >= len(a.workspace.coeffs) {
		return 0
	}
	return float64(k) * (a.sampleRate / float64(a.size))
}

// BinWidth returns the frequency resolution (Hz per bin).
func (a *Analyzer) BinWidth() float64 {
	return a.sampleRate / float64(a.size)
}

// Bins returns the number of complex output values (size/2 + 1).
func (a *Analyzer) Bins() int {
	return a.size/2 + 1
}

// Size returns the transform size in samples.
func (a *Analyzer) Size() int {
	return a.size
}

// SampleRate returns the configured sample rate (Hz).
func (a *Analyzer) SampleRate() float64 {
	return a.sampleRate
}

// ParseWindow converts a window name (case-insensitive) to a WindowFunc.
// Returns Hann and an error if the name is unknown.
func ParseWindow(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Hann, fmt.Errorf("unknown window function name: '%s'", name)
	}
}

// applyWindow fills coeffs with the selected window function. The slice is
// set to 1.0 first because the gonum window functions multiply in place.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		window.Hann(coeffs)
	}
}
