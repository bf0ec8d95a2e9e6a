// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"wearaudio/cmd"
	"wearaudio/internal/algo"
	"wearaudio/internal/config"
	"wearaudio/internal/device"
	applog "wearaudio/internal/log"
	"wearaudio/internal/pipeline"
	"wearaudio/internal/record"
	"wearaudio/internal/serial"
	"wearaudio/internal/transport"
	"wearaudio/internal/transport/udp"
	"wearaudio/pkg/build"
)

// main runs in three phases:
//
// 1. Startup (cold path): build info, runtime tuning, configuration,
//    one-off commands, device and resource acquisition.
// 2. Concurrent (hot path): the sample clock drives the tick handler,
//    the worker drains the bridge, the optional control and monitoring
//    goroutines run alongside.
// 3. Shutdown (cold path): ordered teardown on SIGINT/SIGTERM.
func main() {
	build.Initialize()

	// One thread for the sample clock, one for everything else.
	runtime.GOMAXPROCS(2)

	cfg, err := cmd.ParseArgs()
	if err != nil {
		applog.Fatalf("startup: %v", err)
	}

	if level, ok := applog.ParseLevel(cfg.LogLevel); ok {
		applog.SetLevel(level)
	}

	switch cfg.Command {
	case "list":
		if err := device.Initialize(); err != nil {
			applog.Fatalf("portaudio: %v", err)
		}
		defer device.Terminate()
		if err := device.ListDevices(); err != nil {
			applog.Fatalf("list devices: %v", err)
		}
		return
	case "version":
		info := build.GetBuildFlags()
		fmt.Printf("%s %s (%s, built %s)\n", info.Name, info.Version, info.Commit, info.Time)
		return
	}

	eng, err := newEngine(cfg)
	if err != nil {
		applog.Fatalf("startup: %v", err)
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	if err := eng.StartPipeline(); err != nil {
		applog.Fatalf("startup: %v", err)
	}
	applog.Infof("Running, '%s --help' for usage information", build.GetBuildFlags().Name)

	<-done

	eng.Close()
}

// engine owns every running component and is the control surface the
// serial link drives.
type engine struct {
	cfg *config.Config

	core   *pipeline.Core
	bridge *pipeline.Bridge
	worker *pipeline.Worker

	wst       *transport.WebSocketTransport
	publisher *udp.Publisher
	recorder  *record.Recorder
	duplex    *device.Duplex
	serialIn  *os.File

	cancelCtl context.CancelFunc
	ctlDone   sync.WaitGroup

	mu       sync.Mutex // guards algorithm swaps and parameter changes
	algoCfg  algo.Config
	active   *algo.Instance
	usingPA  bool
	closed   sync.Once
}

func newEngine(cfg *config.Config) (*engine, error) {
	e := &engine{cfg: cfg, algoCfg: cfg.AlgoConfig()}

	// Monitoring transports come up first so the algorithm and the
	// output gate can bind to them.
	var peer transport.Peer = transport.StaticPeer(true)
	if cfg.Transport.WSEnabled {
		e.wst = transport.NewWebSocketTransport(cfg.Transport.WSListenAddress)
		peer = e.wst
	}

	in, out, err := e.openDevices(peer)
	if err != nil {
		return nil, err
	}

	bridge, err := pipeline.NewBridge(cfg.Bridge.Capacity)
	if err != nil {
		e.releaseDevices()
		return nil, err
	}
	e.bridge = bridge

	clock, err := pipeline.NewTickerClock(cfg.Audio.SampleRate)
	if err != nil {
		e.releaseDevices()
		return nil, err
	}

	core, err := pipeline.New(pipeline.Config{
		SampleRateHz: cfg.Audio.SampleRate,
		BlockSize:    cfg.Audio.BlockSize,
		BufferLength: cfg.Audio.BufferLength,
	}, in, out, bridge, clock)
	if err != nil {
		clock.Release()
		e.releaseDevices()
		return nil, err
	}
	e.core = core

	inst, err := e.buildAlgorithm(cfg.Algorithm.Name)
	if err != nil {
		core.Close()
		e.releaseDevices()
		return nil, err
	}
	e.active = inst

	e.worker = pipeline.NewWorker(core, bridge, inst)

	if cfg.Recording.Enabled {
		e.recorder = record.NewRecorder(cfg.Audio.SampleRate, cfg.Recording.OutputDir)
		if err := e.recorder.Start(cfg.Recording.OutputFile); err != nil {
			core.Close()
			e.releaseDevices()
			return nil, err
		}
		e.worker.SetSink(e.recorder)
	}

	if cfg.Transport.UDPEnabled {
		if err := e.startPublisher(inst); err != nil {
			applog.Warnf("UDP publisher disabled: %v", err)
		}
	}

	if cfg.Serial.Enabled {
		if err := e.startSerial(); err != nil {
			applog.Warnf("Serial control disabled: %v", err)
		}
	}

	e.worker.Start()
	return e, nil
}

// openDevices brings up the configured backend. The output is gated on
// the peer so nothing plays until the far side is ready to receive.
func (e *engine) openDevices(peer transport.Peer) (device.Input, device.Output, error) {
	a := &e.cfg.Audio
	switch a.Backend {
	case config.BackendSynth:
		in := device.NewSineInput(a.SampleRate, a.SynthFreq, 0.8)
		return in, device.NewGatedOutput(device.DiscardOutput{}, peer.Ready), nil

	case config.BackendPortAudio:
		if err := device.Initialize(); err != nil {
			return nil, nil, err
		}
		e.usingPA = true
		duplex, err := device.OpenDuplex(device.DuplexParams{
			InputDevice:     a.InputDevice,
			OutputDevice:    a.OutputDevice,
			SampleRate:      a.SampleRate,
			FramesPerBuffer: a.BlockSize,
			LowLatency:      a.LowLatency,
		})
		if err != nil {
			device.Terminate()
			e.usingPA = false
			return nil, nil, err
		}
		e.duplex = duplex
		return duplex, device.NewGatedOutput(duplex, peer.Ready), nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", a.Backend)
}

func (e *engine) releaseDevices() {
	if e.duplex != nil {
		e.duplex.Close()
		e.duplex = nil
	}
	if e.usingPA {
		device.Terminate()
		e.usingPA = false
	}
	if e.wst != nil {
		e.wst.Close()
		e.wst = nil
	}
}

// buildAlgorithm constructs and initializes a named algorithm with the
// engine's current parameters, binding the spectral variant to the
// websocket transport when one is up.
func (e *engine) buildAlgorithm(name string) (*algo.Instance, error) {
	a, err := algo.New(name)
	if err != nil {
		return nil, err
	}
	if s, ok := a.(*algo.Spectral); ok {
		if e.wst != nil {
			s.SetTransport(e.wst)
		} else {
			s.SetTransport(transport.NewLoggingTransport())
		}
	}

	inst := algo.NewInstance(a)
	if err := inst.Init(e.algoCfg); err != nil {
		return nil, err
	}
	return inst, nil
}

func (e *engine) startPublisher(inst *algo.Instance) error {
	s, ok := inst.Unwrap().(*algo.Spectral)
	if !ok {
		return fmt.Errorf("spectral frames require the spectral algorithm, %q is active",
			inst.Name())
	}

	sender, err := udp.NewSender(e.cfg.Transport.UDPTargetAddress)
	if err != nil {
		return err
	}
	interval := time.Duration(e.cfg.Transport.UDPSendIntervalMs) * time.Millisecond
	pub, err := udp.NewPublisher(interval, sender, s)
	if err != nil {
		sender.Close()
		return err
	}
	pub.Start()
	e.publisher = pub
	return nil
}

func (e *engine) startSerial() error {
	f, err := os.Open(e.cfg.Serial.Device)
	if err != nil {
		return err
	}
	e.serialIn = f

	ctx, cancel := context.WithCancel(context.Background())
	e.cancelCtl = cancel
	ctl := serial.NewController(f, e)

	e.ctlDone.Add(1)
	go func() {
		defer e.ctlDone.Done()
		if err := ctl.Run(ctx); err != nil && ctx.Err() == nil {
			applog.Errorf("Serial: %v", err)
		}
	}()
	return nil
}

// StartPipeline enables tick generation. Part of the serial Controls
// surface as well as the bring-up path.
func (e *engine) StartPipeline() error {
	return e.core.Start()
}

// StopPipeline disables tick generation; the worker and all monitoring
// stay up so a later start resumes cleanly.
func (e *engine) StopPipeline() error {
	return e.core.Stop()
}

// SetAlgorithm swaps the active algorithm. The old instance is
// deinitialized after the swap point passes it by.
func (e *engine) SetAlgorithm(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.swapLocked(name)
}

// SetGain updates the gain and rebuilds the active algorithm with it.
func (e *engine) SetGain(gain float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gain < 0 || gain > algo.MaxGain {
		return fmt.Errorf("gain must be in 0..%g, got %g", algo.MaxGain, gain)
	}
	e.algoCfg.Gain = gain
	return e.swapLocked(e.active.Name())
}

// SetGateThreshold updates the gate threshold and rebuilds the active
// algorithm with it.
func (e *engine) SetGateThreshold(threshold float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if threshold < 0 || threshold > 1 {
		return fmt.Errorf("gate threshold must be in 0..1, got %g", threshold)
	}
	e.algoCfg.GateThresh = threshold
	return e.swapLocked(e.active.Name())
}

// ResetPeak clears the spectral variant's running maximum.
func (e *engine) ResetPeak() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.active.Unwrap().(*algo.Spectral)
	if !ok {
		return fmt.Errorf("peak reset requires the spectral algorithm, %q is active", e.active.Name())
	}
	s.ResetPeak()
	return nil
}

func (e *engine) swapLocked(name string) error {
	inst, err := e.buildAlgorithm(name)
	if err != nil {
		return err
	}
	old := e.worker.Swap(inst)
	e.active = inst

	// Move the publisher off the outgoing instance before it goes away.
	e.retargetPublisher(inst)

	if prev, ok := old.(*algo.Instance); ok {
		if err := prev.Deinit(); err != nil {
			applog.Warnf("Engine: deinit %s: %v", prev.Name(), err)
		}
	}
	return nil
}

// retargetPublisher rebinds the UDP publisher to the new instance when it
// is spectral, and pauses publishing while a non-spectral variant is
// active. A later swap back to spectral resumes it.
func (e *engine) retargetPublisher(inst *algo.Instance) {
	if e.publisher == nil {
		return
	}
	s, ok := inst.Unwrap().(*algo.Spectral)
	if !ok {
		e.publisher.Stop()
		return
	}
	if err := e.publisher.Rebind(s); err != nil {
		applog.Warnf("Engine: udp publisher: %v", err)
		e.publisher.Stop()
		return
	}
	if !e.publisher.Running() {
		e.publisher.Start()
	}
}

// Close tears the engine down in dependency order: clock first so no new
// events post, then the bridge and worker, then the taps and devices.
func (e *engine) Close() {
	e.closed.Do(func() {
		if e.cancelCtl != nil {
			e.cancelCtl()
			e.serialIn.Close()
			e.ctlDone.Wait()
		}

		if err := e.core.Close(); err != nil {
			applog.Errorf("Shutdown: pipeline: %v", err)
		}
		e.bridge.Close()
		e.worker.Stop()

		if e.publisher != nil {
			if err := e.publisher.Close(); err != nil {
				applog.Errorf("Shutdown: udp publisher: %v", err)
			}
		}
		if e.recorder != nil {
			if err := e.recorder.Stop(); err != nil {
				applog.Errorf("Shutdown: recorder: %v", err)
			}
		}

		e.mu.Lock()
		if err := e.active.Deinit(); err != nil {
			applog.Warnf("Shutdown: deinit %s: %v", e.active.Name(), err)
		}
		e.mu.Unlock()

		e.releaseDevices()
		applog.Infof("Shutdown complete")
	})
}
