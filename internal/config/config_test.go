// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wearaudio/internal/algo"
)

func TestDefaultsValidate(t *testing.T) {
	if err := New().Validate(); err != nil {
		t.Fatalf("default configuration invalid: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"Unknown Backend", func(c *Config) { c.Audio.Backend = "alsa" }, "audio.backend"},
		{"Sample Rate Too Low", func(c *Config) { c.Audio.SampleRate = 100 }, "sample_rate"},
		{"Zero Block Size", func(c *Config) { c.Audio.BlockSize = 0 }, "block_size"},
		{"Buffer Not A Multiple", func(c *Config) { c.Audio.BufferLength = 600 }, "multiple"},
		{"Buffer Under Two Blocks", func(c *Config) { c.Audio.BufferLength = 256 }, "two blocks"},
		{"Unknown Algorithm", func(c *Config) { c.Algorithm.Name = "reverb" }, "unknown"},
		{"Negative Gain", func(c *Config) { c.Algorithm.Gain = -0.5 }, "gain"},
		{"Gain Above Maximum", func(c *Config) { c.Algorithm.Gain = algo.MaxGain + 1 }, "gain"},
		{"Gate Out Of Range", func(c *Config) { c.Algorithm.GateThresh = 1.5 }, "gate_threshold"},
		{"Zero Bridge Capacity", func(c *Config) { c.Bridge.Capacity = 0 }, "bridge.capacity"},
		{"UDP Without Target", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Transport.UDPTargetAddress = ""
		}, "udp_target_address"},
		{"Serial Without Device", func(c *Config) { c.Serial.Enabled = true }, "serial.device"},
		{"Spectral Non Power Of Two", func(c *Config) {
			c.Algorithm.Name = "spectral"
			c.Audio.BlockSize = 250
			c.Audio.BufferLength = 500
		}, "power of two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate accepted an invalid configuration")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wearaudio.yaml")
	body := `
log_level: debug
audio:
  sample_rate: 16000
  block_size: 128
  buffer_length: 256
algorithm:
  name: spectral
  gain: 2.0
transport:
  udp_enabled: true
  udp_target_address: "10.0.0.2:9090"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("WEARAUDIO_SAMPLE_RATE", "32000")
	t.Setenv("WEARAUDIO_BLOCK_SIZE", "not-a-number") // ignored

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, expected file value", cfg.LogLevel)
	}
	if cfg.Audio.SampleRate != 32000 {
		t.Errorf("SampleRate = %g, expected env override 32000", cfg.Audio.SampleRate)
	}
	if cfg.Audio.BlockSize != 128 {
		t.Errorf("BlockSize = %d, expected file value 128 (bad env ignored)", cfg.Audio.BlockSize)
	}
	if cfg.Algorithm.Name != "spectral" || cfg.Algorithm.Gain != 2.0 {
		t.Errorf("Algorithm = %+v, expected file values", cfg.Algorithm)
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.UDPTargetAddress != "10.0.0.2:9090" {
		t.Errorf("Transport = %+v, expected file values", cfg.Transport)
	}
	// Untouched sections keep defaults.
	if cfg.Bridge.Capacity != DefaultBridgeCap {
		t.Errorf("Bridge.Capacity = %d, expected default %d", cfg.Bridge.Capacity, DefaultBridgeCap)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load succeeded on a missing explicit path")
	}
}

func TestLoadInvalidFileRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("audio:\n  block_size: 0\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load accepted a configuration failing validation")
	}
}
