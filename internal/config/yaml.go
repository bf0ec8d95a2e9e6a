// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	applog "wearaudio/internal/log"
)

// Load builds the configuration from defaults, an optional YAML file and
// environment overrides, in that order, then validates the result. If
// path is empty the default locations are searched; no file at all is
// fine, defaults stand.
func Load(path string) (*Config, error) {
	cfg := New()

	if path == "" {
		candidates := []string{"wearaudio.yaml", "config.yaml"}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		applog.Infof("Config: loaded %s", path)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies WEARAUDIO_* environment variables on top of
// whatever the file set. Unparseable values are ignored with a warning
// rather than failing startup.
func (c *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("WEARAUDIO_LOG_LEVEL"); ok {
		c.LogLevel = val
	}
	if val, ok := os.LookupEnv("WEARAUDIO_BACKEND"); ok {
		c.Audio.Backend = val
	}
	if val, ok := os.LookupEnv("WEARAUDIO_SAMPLE_RATE"); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			c.Audio.SampleRate = f
		} else {
			applog.Warnf("Config: ignoring WEARAUDIO_SAMPLE_RATE=%q: %v", val, err)
		}
	}
	if val, ok := os.LookupEnv("WEARAUDIO_BLOCK_SIZE"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			c.Audio.BlockSize = n
		} else {
			applog.Warnf("Config: ignoring WEARAUDIO_BLOCK_SIZE=%q: %v", val, err)
		}
	}
	if val, ok := os.LookupEnv("WEARAUDIO_BUFFER_LENGTH"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			c.Audio.BufferLength = n
		} else {
			applog.Warnf("Config: ignoring WEARAUDIO_BUFFER_LENGTH=%q: %v", val, err)
		}
	}
	if val, ok := os.LookupEnv("WEARAUDIO_ALGORITHM"); ok {
		c.Algorithm.Name = val
	}
	if val, ok := os.LookupEnv("WEARAUDIO_UDP_ENABLED"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = b
		} else {
			applog.Warnf("Config: ignoring WEARAUDIO_UDP_ENABLED=%q: %v", val, err)
		}
	}
	if val, ok := os.LookupEnv("WEARAUDIO_UDP_TARGET"); ok {
		c.Transport.UDPTargetAddress = val
	}
}
