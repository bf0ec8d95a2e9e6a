// SPDX-License-Identifier: MIT
// Package cmd parses the command line into a validated configuration.
// Flags override values from the config file, which override defaults.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"wearaudio/internal/config"
	"wearaudio/pkg/build"
)

func ParseArgs() (*config.Config, error) {
	buildInfo := build.GetBuildFlags()

	var (
		configPath string
		flags      config.Config
	)

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error { return nil },
	}

	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	var command string

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Run: func(cmd *cobra.Command, args []string) {
			command = "list"
		},
	}
	rootCmd.AddCommand(listCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			command = "version"
		},
	}
	rootCmd.AddCommand(versionCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "f", "",
		"Path to a YAML config file (default: wearaudio.yaml in the working directory)")

	// Audio
	pf.StringVar(&flags.Audio.Backend, "backend", config.DefaultBackend,
		"Audio backend: synth or portaudio")
	pf.IntVarP(&flags.Audio.InputDevice, "input-device", "i", -1,
		"Input device ID. Use 'list' to see available devices.")
	pf.IntVarP(&flags.Audio.OutputDevice, "output-device", "o", -1,
		"Output device ID. Use 'list' to see available devices.")
	pf.Float64VarP(&flags.Audio.SampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&flags.Audio.BlockSize, "block-size", "b", config.DefaultBlockSize,
		"Samples per algorithm invocation")
	pf.IntVar(&flags.Audio.BufferLength, "buffer-length", config.DefaultBufferLength,
		"Circular buffer capacity, a multiple of the block size")
	pf.BoolVarP(&flags.Audio.LowLatency, "low-latency", "l", false,
		"Use low latency mode for real-time processing")

	// Algorithm
	pf.StringVarP(&flags.Algorithm.Name, "algo", "a", config.DefaultAlgorithm,
		"Active algorithm: passthrough or spectral")
	pf.Float64VarP(&flags.Algorithm.Gain, "gain", "g", config.DefaultGain,
		"Linear gain, 1.0 = unity")
	pf.Float64Var(&flags.Algorithm.GateThresh, "gate", 0,
		"Noise gate threshold in 0..1 of full scale, 0 disables")
	pf.StringVarP(&flags.Algorithm.Window, "window", "w", config.DefaultWindow,
		"FFT window function for the spectral algorithm")

	// Recording
	pf.BoolVarP(&flags.Recording.Enabled, "record", "r", false,
		"Record processed output blocks to a WAV file")

	// Debug
	pf.StringVar(&flags.LogLevel, "log-level", config.DefaultLogLevel,
		"Log level: debug, info, warn, error")

	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if command != "" {
		cfg.Command = command
	}

	// Only flags the user actually set override the file.
	set := func(name string) bool { return pf.Changed(name) }
	if set("backend") {
		cfg.Audio.Backend = flags.Audio.Backend
	}
	if set("input-device") {
		cfg.Audio.InputDevice = flags.Audio.InputDevice
	}
	if set("output-device") {
		cfg.Audio.OutputDevice = flags.Audio.OutputDevice
	}
	if set("sample-rate") {
		cfg.Audio.SampleRate = flags.Audio.SampleRate
	}
	if set("block-size") {
		cfg.Audio.BlockSize = flags.Audio.BlockSize
	}
	if set("buffer-length") {
		cfg.Audio.BufferLength = flags.Audio.BufferLength
	}
	if set("low-latency") {
		cfg.Audio.LowLatency = flags.Audio.LowLatency
	}
	if set("algo") {
		cfg.Algorithm.Name = flags.Algorithm.Name
	}
	if set("gain") {
		cfg.Algorithm.Gain = flags.Algorithm.Gain
	}
	if set("gate") {
		cfg.Algorithm.GateThresh = flags.Algorithm.GateThresh
	}
	if set("window") {
		cfg.Algorithm.Window = flags.Algorithm.Window
	}
	if set("record") {
		cfg.Recording.Enabled = flags.Recording.Enabled
	}
	if set("log-level") {
		cfg.LogLevel = flags.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
