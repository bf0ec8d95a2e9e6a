// SPDX-License-Identifier: MIT
package algo

import (
	"fmt"
	"sync"
	"sync/atomic"

	applog "wearaudio/internal/log"
	"wearaudio/internal/spectral"
	"wearaudio/internal/transport"
)

// Spectral runs a forward real FFT over each capture block and tracks the
// dominant frequency: the bin (k = 1 .. N/2-1) with the largest magnitude,
// where frequency = k * sampleRate / N.
//
// The reference behavior leaves the playback block unspecified for this
// variant; the documented policy here is to pass the input through
// unchanged so the wearer keeps hearing the signal while it is analyzed.
// Peak tracking either accumulates over the instance lifetime or resets
// every block, selected by Config.PeakTracking.
//
// The analyzer pointer is atomic because pollers (the UDP publisher, the
// peak accessor) may still hold a reference after Deinit releases the
// instance; post-Deinit queries fail cleanly instead of dereferencing nil.
type Spectral struct {
	analyzer atomic.Pointer[spectral.Analyzer]
	resetPer bool
	gainUnit int32 // unity fixed-point gain for the passthrough output

	mu       sync.Mutex
	peakMag  float64
	peakFreq float64

	// Optional monitoring transport, fed once per block from the worker
	// context. Nil is fine.
	transport transport.Transport
}

// NewSpectral returns an uninitialized spectral-analysis variant.
func NewSpectral() *Spectral {
	return &Spectral{gainUnit: 1 << 16}
}

func (s *Spectral) Name() string { return "spectral" }

// SetTransport attaches a monitoring transport. Must be called before
// Init; the worker owns the instance afterwards.
func (s *Spectral) SetTransport(t transport.Transport) {
	s.transport = t
}

func (s *Spectral) Init(cfg Config) error {
	if err := validate(cfg); err != nil {
		return err
	}

	windowType, err := spectral.ParseWindow(cfg.Window)
	if err != nil {
		return err
	}

	analyzer, err := spectral.NewAnalyzer(cfg.BlockSize, cfg.SampleRate, windowType)
	if err != nil {
		return err
	}

	s.analyzer.Store(analyzer)
	s.resetPer = cfg.PeakTracking == PeakBlock

	applog.Infof("Algo: spectral variant ready (block=%d, rate=%.0f Hz, bins=%d, tracking=%s)",
		cfg.BlockSize, cfg.SampleRate, analyzer.Bins(), cfg.PeakTracking)
	return nil
}

// Process transforms the capture block, updates the running peak, feeds
// the monitoring transport, and passes the input through to the playback
// block.
func (s *Spectral) Process(in []uint16, out []uint8) (int, error) {
	analyzer := s.analyzer.Load()
	if analyzer == nil {
		return 0, fmt.Errorf("spectral: %w", ErrDeinitialized)
	}
	magnitudes := analyzer.Transform(in)

	// Scan the usable bins, skipping DC and Nyquist.
	half := analyzer.Size() / 2
	bestMag, bestBin := 0.0, 0
	for k := 1; k < half; k++ {
		if magnitudes[k] > bestMag {
			bestMag = magnitudes[k]
			bestBin = k
		}
	}

	s.mu.Lock()
	if s.resetPer {
		s.peakMag, s.peakFreq = bestMag, analyzer.FreqForBin(bestBin)
	} else if bestMag > s.peakMag {
		s.peakMag = bestMag
		s.peakFreq = analyzer.FreqForBin(bestBin)
	}
	s.mu.Unlock()

	if s.transport != nil {
		_ = s.transport.Send(magnitudes)
	}

	n := len(in)
	if len(out) < n {
		n = len(out)
	}
	for i := 0; i < n; i++ {
		out[i] = scaleSample(in[i], s.gainUnit)
	}
	return n, nil
}

func (s *Spectral) Deinit() error {
	s.analyzer.Store(nil)
	return nil
}

// Peak returns the tracked dominant frequency (Hz) and its magnitude.
// Query accessor for external callers; the playback path never carries it.
func (s *Spectral) Peak() (freqHz, magnitude float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peakFreq, s.peakMag
}

// ResetPeak clears the running maximum, e.g. on a control command.
func (s *Spectral) ResetPeak() {
	s.mu.Lock()
	s.peakMag, s.peakFreq = 0, 0
	s.mu.Unlock()
}

// Bins exposes the magnitude frame size for pollers. Zero after Deinit.
func (s *Spectral) Bins() int {
	if analyzer := s.analyzer.Load(); analyzer != nil {
		return analyzer.Bins()
	}
	return 0
}

// MagnitudesInto copies the latest magnitude frame into dest.
func (s *Spectral) MagnitudesInto(dest []float64) error {
	analyzer := s.analyzer.Load()
	if analyzer == nil {
		return fmt.Errorf("spectral: %w", ErrDeinitialized)
	}
	return analyzer.MagnitudesInto(dest)
}

var _ Algorithm = (*Spectral)(nil)
