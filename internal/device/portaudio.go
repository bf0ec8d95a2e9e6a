// SPDX-License-Identifier: MIT
package device

import (
	"fmt"
	"time"

	"github.com/gordonklaus/portaudio"

	applog "wearaudio/internal/log"
	"wearaudio/pkg/bitint"
)

// Duplex bridges a PortAudio duplex stream to the per-sample Input/Output
// primitives the pipeline ticks against. The stream callback and the tick
// path run on different threads; two SPSC rings decouple them so neither
// side ever blocks.
//
// Stream samples are int32; capture readings are narrowed to the 12-bit
// device resolution and playback samples widened from 8 bits.
type Duplex struct {
	stream *portaudio.Stream

	inRing  *ring[uint16]
	outRing *ring[uint8]

	lastIn uint16 // replayed when the capture ring runs dry
}

// DuplexParams selects the devices and stream geometry for OpenDuplex.
type DuplexParams struct {
	InputDevice     int // PortAudio device index, -1 for default
	OutputDevice    int // PortAudio device index, -1 for default
	SampleRate      float64
	FramesPerBuffer int
	LowLatency      bool
}

// OpenDuplex opens and starts a mono duplex stream. The ring capacity is
// sized to four stream buffers, rounded up to a power of two.
func OpenDuplex(params DuplexParams) (*Duplex, error) {
	inDev, err := InputDevice(params.InputDevice)
	if err != nil {
		return nil, err
	}
	outDev, err := OutputDevice(params.OutputDevice)
	if err != nil {
		return nil, err
	}

	ringSize := bitint.NextPowerOfTwo(params.FramesPerBuffer * 4)
	d := &Duplex{
		inRing:  newRing[uint16](ringSize),
		outRing: newRing[uint8](ringSize),
		lastIn:  InputMidpoint,
	}

	inLatency := inDev.DefaultHighInputLatency
	outLatency := outDev.DefaultHighOutputLatency
	if params.LowLatency {
		inLatency = inDev.DefaultLowInputLatency
		outLatency = outDev.DefaultLowOutputLatency
	}

	streamParams := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: 1,
			Device:   inDev,
			Latency:  inLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 1,
			Device:   outDev,
			Latency:  outLatency,
		},
		FramesPerBuffer: params.FramesPerBuffer,
		SampleRate:      params.SampleRate,
	}

	stream, err := portaudio.OpenStream(streamParams, d.streamCallback)
	if err != nil {
		return nil, fmt.Errorf("failed to open duplex stream: %w", err)
	}
	d.stream = stream

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start duplex stream: %w", err)
	}

	applog.Infof("Device: Duplex stream open (in=%s out=%s rate=%.0f Hz latency=%s/%s)",
		inDev.Name, outDev.Name, params.SampleRate,
		inLatency.Round(time.Millisecond), outLatency.Round(time.Millisecond))

	return d, nil
}

// streamCallback runs on the PortAudio thread. Pre-allocated rings only,
// no allocation.
func (d *Duplex) streamCallback(in, out []int32) {
	for _, s := range in {
		// Narrow the int32 stream sample to the 12-bit capture width.
		d.inRing.push(uint16(int32(s>>20) + InputMidpoint))
	}
	for i := range out {
		v, ok := d.outRing.pop()
		if !ok {
			v = OutputMidpoint
		}
		// Widen the 8-bit playback sample back to the int32 stream range.
		out[i] = (int32(v) - OutputMidpoint) << 23
	}
}

// ReadSample pops one capture reading; when the ring is momentarily dry it
// replays the previous reading rather than stalling the tick.
func (d *Duplex) ReadSample() uint16 {
	if v, ok := d.inRing.pop(); ok {
		d.lastIn = v
		return v
	}
	return d.lastIn
}

// WriteSample queues one playback sample for the stream callback.
func (d *Duplex) WriteSample(v uint8) {
	d.outRing.push(v)
}

// Close stops and closes the stream.
func (d *Duplex) Close() error {
	if d.stream == nil {
		return nil
	}
	if err := d.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop duplex stream: %w", err)
	}
	if err := d.stream.Close(); err != nil {
		return fmt.Errorf("failed to close duplex stream: %w", err)
	}
	d.stream = nil
	return nil
}

var (
	_ Input  = (*Duplex)(nil)
	_ Output = (*Duplex)(nil)
)
