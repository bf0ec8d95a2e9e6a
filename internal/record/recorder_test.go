// SPDX-License-Identifier: MIT
package record

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
)

func TestRecorderWritesDecodableWav(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(8000, dir)

	if err := r.Start("capture.wav"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Start("again.wav"); err == nil {
		t.Error("second Start succeeded while recording")
	}

	block := make([]uint8, 256)
	for i := range block {
		block[i] = uint8(i)
	}
	for range 4 {
		if err := r.WriteBlock(block); err != nil {
			t.Fatalf("WriteBlock: %v", err)
		}
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "capture.wav"))
	if err != nil {
		t.Fatalf("open recording: %v", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode recording: %v", err)
	}
	if dec.SampleRate != 8000 {
		t.Errorf("sample rate %d, expected 8000", dec.SampleRate)
	}
	if got := len(buf.Data); got != 4*256 {
		t.Fatalf("decoded %d samples, expected %d", got, 4*256)
	}
	for i := 0; i < 256; i++ {
		if buf.Data[i] != i {
			t.Fatalf("sample %d = %d, expected %d", i, buf.Data[i], i)
		}
	}
}

func TestRecorderDropsBlocksWhileStopped(t *testing.T) {
	r := NewRecorder(8000, t.TempDir())

	if err := r.WriteBlock(make([]uint8, 16)); err != nil {
		t.Fatalf("WriteBlock while stopped: %v", err)
	}
	if r.Recording() {
		t.Error("Recording reported true before Start")
	}
}

func TestRecorderTimestampedName(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(8000, dir)

	if err := r.Start(""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("found %d files, expected 1", len(entries))
	}
	if name := entries[0].Name(); filepath.Ext(name) != ".wav" {
		t.Errorf("recording named %q, expected a .wav file", name)
	}
}
