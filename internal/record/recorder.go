// SPDX-License-Identifier: MIT
// Package record tees processed playback blocks into a WAV file. The
// recorder runs entirely on the worker side; the tick path never sees it.
package record

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	applog "wearaudio/internal/log"
)

// Recorder encodes 8-bit mono playback blocks to a WAV file. It satisfies
// the worker's block sink; WriteBlock while not recording is a cheap no-op
// so the sink can stay installed across start/stop cycles.
type Recorder struct {
	sampleRate int
	outputDir  string

	recording atomic.Bool

	mu        sync.Mutex
	file      *os.File
	enc       *wav.Encoder
	sampleBuf *audio.IntBuffer
}

func NewRecorder(sampleRate float64, outputDir string) *Recorder {
	return &Recorder{
		sampleRate: int(sampleRate),
		outputDir:  outputDir,
	}
}

// Start opens the output file and begins accepting blocks. filename may
// be empty for a timestamped name under the output directory.
func (r *Recorder) Start(filename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording.Load() {
		return fmt.Errorf("already recording")
	}

	if filename == "" {
		filename = "recording-" + time.Now().UTC().Format("02-01-2006-150405") + ".wav"
	}
	path := filepath.Join(r.outputDir, filename)
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}

	r.file = file
	r.enc = wav.NewEncoder(file, r.sampleRate, 8, 1, 1)
	r.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  r.sampleRate,
		},
		SourceBitDepth: 8,
	}

	r.recording.Store(true)
	applog.Infof("Recorder: writing %s", path)
	return nil
}

// WriteBlock appends one processed block. Drops silently while stopped.
func (r *Recorder) WriteBlock(block []uint8) error {
	if !r.recording.Load() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enc == nil {
		return nil
	}

	if cap(r.sampleBuf.Data) < len(block) {
		r.sampleBuf.Data = make([]int, len(block))
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:len(block)]
	for i, v := range block {
		r.sampleBuf.Data[i] = int(v)
	}

	if err := r.enc.Write(r.sampleBuf); err != nil {
		return fmt.Errorf("wav write: %w", err)
	}
	return nil
}

// Stop finalizes the WAV header and closes the file. Idempotent.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording.Load() {
		return nil
	}
	r.recording.Store(false)

	if r.enc != nil {
		if err := r.enc.Close(); err != nil {
			return err
		}
		r.enc = nil
	}
	if r.file != nil {
		if err := r.file.Close(); err != nil {
			return err
		}
		r.file = nil
	}
	applog.Infof("Recorder: stopped")
	return nil
}

// Recording reports whether a file is open.
func (r *Recorder) Recording() bool {
	return r.recording.Load()
}
