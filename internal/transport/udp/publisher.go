// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	applog "wearaudio/internal/log"
)

// SpectrumSource is what the publisher polls: the latest magnitude frame
// plus the tracked dominant-frequency peak. The spectral-analysis
// algorithm implements it.
type SpectrumSource interface {
	Bins() int
	MagnitudesInto(dest []float64) error
	Peak() (freqHz, magnitude float64)
}

// Publisher periodically fetches the latest spectrum, packs it into a
// binary packet and sends it over UDP. It runs in its own goroutine
// managed by Start and Stop.
type Publisher struct {
	sender   *Sender
	source   SpectrumSource
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // protects source, ticker and doneChan

	sequenceNum uint32

	// Pre-allocated buffers so the publish loop stays allocation-free.
	magBuffer    []float64
	f32Buffer    []float32
	packetBuffer *bytes.Buffer
}

// NewPublisher creates a Publisher polling source every interval.
// An interval <= 0 defaults to 16ms (~60Hz).
func NewPublisher(interval time.Duration, sender *Sender, source SpectrumSource) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("publisher: UDP sender cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("publisher: spectrum source cannot be nil")
	}

	if interval <= 0 {
		interval = 16 * time.Millisecond
		applog.Warnf("Publisher: Invalid interval provided, defaulting to %s", interval)
	}

	bins := source.Bins()
	applog.Infof("Publisher: Initializing (Interval: %s, Bins: %d)", interval, bins)

	return &Publisher{
		sender:       sender,
		source:       source,
		interval:     interval,
		magBuffer:    make([]float64, bins),
		f32Buffer:    make([]float32, bins),
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Rebind points the publisher at a new source, e.g. after an algorithm
// swap replaces the instance it has been polling. The new source must
// serve the bin count the packet buffers were sized for.
func (p *Publisher) Rebind(source SpectrumSource) error {
	if source == nil {
		return fmt.Errorf("publisher: spectrum source cannot be nil")
	}
	if bins := source.Bins(); bins != len(p.magBuffer) {
		return fmt.Errorf("publisher: source serves %d bins, buffers sized for %d",
			bins, len(p.magBuffer))
	}

	p.mu.Lock()
	p.source = source
	p.mu.Unlock()
	return nil
}

// Running reports whether the publish goroutine is active.
func (p *Publisher) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ticker != nil
}

// Start begins periodic publishing. Safe to call more than once;
// subsequent calls are no-ops while running.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("Publisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan

	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Infof("Publisher: goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publish goroutine to terminate and waits for it.
// Safe to call more than once.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})

	p.mu.Unlock()

	p.wg.Wait()
	applog.Infof("Publisher: goroutine finished.")
	return nil
}

/*
Packet layout (BigEndian):

	| Field           | Type      | Size (bytes)  |
	|-----------------|-----------|---------------|
	| Sequence Number | uint32    | 4             |
	| Timestamp       | int64     | 8             |
	| Peak Frequency  | float32   | 4             |
	| Peak Magnitude  | float32   | 4             |
	| Bin Count       | uint16    | 2             |
	| Magnitudes      | []float32 | Bin Count * 4 |
*/
func (p *Publisher) buildAndSendPacket() {
	p.mu.Lock()
	source := p.source
	p.mu.Unlock()

	if err := source.MagnitudesInto(p.magBuffer); err != nil {
		applog.Errorf("Publisher: Error getting magnitudes: %v", err)
		return
	}
	peakFreq, peakMag := source.Peak()

	for i, v := range p.magBuffer {
		p.f32Buffer[i] = float32(v)
	}

	p.sequenceNum++
	timestamp := time.Now().UnixNano()
	binCount := uint16(len(p.f32Buffer))

	p.packetBuffer.Reset()

	err := binary.Write(p.packetBuffer, binary.BigEndian, p.sequenceNum)
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, timestamp)
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, float32(peakFreq))
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, float32(peakMag))
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, binCount)
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, p.f32Buffer)
	}

	if err != nil {
		applog.Errorf("Publisher: Error packing packet: %v", err)
		return
	}

	if err := p.sender.Send(p.packetBuffer.Bytes()); err == nil {
		applog.Debugf("Publisher: Sent packet %d (%d bytes)", p.sequenceNum, p.packetBuffer.Len())
	}
}

// Close implements io.Closer by stopping the publisher.
func (p *Publisher) Close() error {
	return p.Stop()
}

var _ interface{ Close() error } = (*Publisher)(nil)
