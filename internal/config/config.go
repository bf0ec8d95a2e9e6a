// SPDX-License-Identifier: MIT
// Package config holds the runtime configuration: defaults, YAML file
// loading, environment overrides and validation. Values flow one way,
// from here into the engine at bring-up; nothing reads config after
// startup.
package config

import (
	"fmt"
	"strings"

	"wearaudio/internal/algo"
	"wearaudio/pkg/bitint"
)

// Defaults and limits for the engine configuration.
const (
	DefaultSampleRate   = 8000.0 // matches the device ADC timer rate
	DefaultBlockSize    = 256
	DefaultBufferLength = 512 // two blocks, the canonical geometry
	DefaultBridgeCap    = 8
	DefaultAlgorithm    = "passthrough"
	DefaultGain         = 1.0
	DefaultWindow       = "Hann"
	DefaultBackend      = BackendSynth
	DefaultLogLevel     = "info"

	MinSampleRate = 1000.0
	MaxSampleRate = 192000.0
	MaxBlockSize  = 8192

	// Audio backends.
	BackendSynth     = "synth"     // internal sine source, discard sink
	BackendPortAudio = "portaudio" // real duplex device
)

// Config is the full application configuration, loaded from YAML and
// overridden by environment variables and CLI flags.
type Config struct {
	LogLevel string `yaml:"log_level"`         // "debug", "info", "warn", "error"
	Command  string `yaml:"command,omitempty"` // one-off command instead of running ("list", "version")

	Audio     AudioConfig     `yaml:"audio"`
	Algorithm AlgorithmConfig `yaml:"algorithm"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`
	Serial    SerialConfig    `yaml:"serial"`
}

// AudioConfig fixes the pipeline geometry and the device backend.
type AudioConfig struct {
	Backend      string  `yaml:"backend"`       // "synth" or "portaudio"
	InputDevice  int     `yaml:"input_device"`  // portaudio device index, -1 for default
	OutputDevice int     `yaml:"output_device"` // portaudio device index, -1 for default
	SampleRate   float64 `yaml:"sample_rate"`   // ticks per second
	BlockSize    int     `yaml:"block_size"`    // samples per algorithm invocation
	BufferLength int     `yaml:"buffer_length"` // circular buffer capacity, multiple of block_size
	LowLatency   bool    `yaml:"low_latency"`   // request low latency from portaudio
	SynthFreq    float64 `yaml:"synth_freq"`    // sine frequency for the synth backend
}

// AlgorithmConfig selects and parameterizes the active algorithm.
type AlgorithmConfig struct {
	Name         string  `yaml:"name"`           // "passthrough" or "spectral"
	Gain         float64 `yaml:"gain"`           // linear, 1.0 = unity
	GateThresh   float64 `yaml:"gate_threshold"` // 0..1 of full scale, 0 disables
	Window       string  `yaml:"window"`         // FFT window name for spectral
	PeakTracking string  `yaml:"peak_tracking"`  // "lifetime" or "block"
}

// BridgeConfig bounds the block hand-off queue.
type BridgeConfig struct {
	Capacity int `yaml:"capacity"` // pending block events before drops
}

// RecordingConfig controls the WAV tee of processed output blocks.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	OutputDir  string `yaml:"output_dir"`
	OutputFile string `yaml:"output_file"` // empty for a timestamped name
}

// TransportConfig controls the monitoring outputs for spectral frames.
type TransportConfig struct {
	UDPEnabled        bool   `yaml:"udp_enabled"`
	UDPTargetAddress  string `yaml:"udp_target_address"`
	UDPSendIntervalMs int    `yaml:"udp_send_interval_ms"`
	WSEnabled         bool   `yaml:"ws_enabled"`
	WSListenAddress   string `yaml:"ws_listen_address"`
}

// SerialConfig points the control-packet decoder at its byte stream.
type SerialConfig struct {
	Enabled bool   `yaml:"enabled"`
	Device  string `yaml:"device"` // path to the serial device or FIFO
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			Backend:      DefaultBackend,
			InputDevice:  -1,
			OutputDevice: -1,
			SampleRate:   DefaultSampleRate,
			BlockSize:    DefaultBlockSize,
			BufferLength: DefaultBufferLength,
			SynthFreq:    440,
		},
		Algorithm: AlgorithmConfig{
			Name:         DefaultAlgorithm,
			Gain:         DefaultGain,
			Window:       DefaultWindow,
			PeakTracking: algo.PeakLifetime,
		},
		Bridge: BridgeConfig{
			Capacity: DefaultBridgeCap,
		},
		Recording: RecordingConfig{
			OutputDir: "./recordings",
		},
		Transport: TransportConfig{
			UDPTargetAddress:  "127.0.0.1:9090",
			UDPSendIntervalMs: 33,
			WSListenAddress:   ":8080",
		},
	}
}

// Validate rejects configurations the engine cannot run. The pipeline
// geometry checks mirror the core's own validation so a bad file fails
// here, before any resource is claimed.
func (c *Config) Validate() error {
	a := &c.Audio
	if a.Backend != BackendSynth && a.Backend != BackendPortAudio {
		return fmt.Errorf("audio.backend must be %q or %q, got %q",
			BackendSynth, BackendPortAudio, a.Backend)
	}
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate %g out of range %g..%g",
			a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if a.BlockSize <= 0 || a.BlockSize > MaxBlockSize {
		return fmt.Errorf("audio.block_size %d out of range 1..%d", a.BlockSize, MaxBlockSize)
	}
	if a.BufferLength%a.BlockSize != 0 {
		return fmt.Errorf("audio.buffer_length %d is not a multiple of block_size %d",
			a.BufferLength, a.BlockSize)
	}
	if a.BufferLength < 2*a.BlockSize {
		return fmt.Errorf("audio.buffer_length %d is less than two blocks of %d",
			a.BufferLength, a.BlockSize)
	}

	found := false
	for _, name := range algo.Names() {
		if c.Algorithm.Name == name {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("algorithm.name %q unknown, available: %s",
			c.Algorithm.Name, strings.Join(algo.Names(), ", "))
	}
	if c.Algorithm.Name == "spectral" && !bitint.IsPowerOfTwo(a.BlockSize) {
		return fmt.Errorf("audio.block_size must be a power of two for the spectral algorithm, got %d",
			a.BlockSize)
	}
	if g := c.Algorithm.Gain; g < 0 || g > algo.MaxGain {
		return fmt.Errorf("algorithm.gain must be in 0..%g, got %g", algo.MaxGain, g)
	}
	if t := c.Algorithm.GateThresh; t < 0 || t > 1 {
		return fmt.Errorf("algorithm.gate_threshold must be in 0..1, got %g", t)
	}

	if c.Bridge.Capacity <= 0 {
		return fmt.Errorf("bridge.capacity must be positive, got %d", c.Bridge.Capacity)
	}

	if c.Transport.UDPEnabled {
		if c.Transport.UDPTargetAddress == "" {
			return fmt.Errorf("transport.udp_target_address must be set when UDP is enabled")
		}
		if c.Transport.UDPSendIntervalMs <= 0 {
			return fmt.Errorf("transport.udp_send_interval_ms must be positive, got %d",
				c.Transport.UDPSendIntervalMs)
		}
	}
	if c.Serial.Enabled && c.Serial.Device == "" {
		return fmt.Errorf("serial.device must be set when serial control is enabled")
	}

	return nil
}

// AlgoConfig converts the relevant sections into the algorithm package's
// parameter struct.
func (c *Config) AlgoConfig() algo.Config {
	return algo.Config{
		BlockSize:    c.Audio.BlockSize,
		SampleRate:   c.Audio.SampleRate,
		Gain:         c.Algorithm.Gain,
		GateThresh:   c.Algorithm.GateThresh,
		Window:       c.Algorithm.Window,
		PeakTracking: c.Algorithm.PeakTracking,
	}
}
