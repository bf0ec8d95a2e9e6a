// SPDX-License-Identifier: MIT
package serial

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

func encodeFrame(t *testing.T, buf *bytes.Buffer, payload string) {
	t.Helper()
	if err := NewEncoder(buf).Encode([]byte(payload)); err != nil {
		t.Fatalf("Encode: %v", err)
	}
}

func TestEncodeFrameLayout(t *testing.T) {
	var buf bytes.Buffer
	encodeFrame(t, &buf, "gain 2.5")

	frame := buf.Bytes()
	if len(frame) != FrameSize {
		t.Fatalf("frame length %d, expected %d", len(frame), FrameSize)
	}
	if !bytes.Equal(frame[:5], []byte("DATA\x00")) {
		t.Errorf("header %q", frame[:5])
	}
	if got := string(frame[5:8]); got != "008" {
		t.Errorf("length field %q, expected \"008\"", got)
	}
	if got := string(frame[8:16]); got != "gain 2.5" {
		t.Errorf("payload prefix %q", got)
	}
	if !bytes.Equal(frame[FrameSize-8:], []byte("ENDSIG\x00\n")) {
		t.Errorf("footer %q", frame[FrameSize-8:])
	}
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	if err := NewEncoder(io.Discard).Encode(make([]byte, PayloadSize+1)); err == nil {
		t.Error("Encode accepted a payload larger than the field")
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payloads := []string{"start", "algo spectral", "gain 0.5"}
	for _, p := range payloads {
		encodeFrame(t, &buf, p)
	}

	dec := NewDecoder(&buf)
	for _, expected := range payloads {
		msg, err := dec.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if msg.Stop || string(msg.Payload) != expected {
			t.Fatalf("decoded %q (stop=%v), expected %q", msg.Payload, msg.Stop, expected)
		}
	}
	if _, err := dec.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("Next after last frame = %v, expected EOF", err)
	}
}

func TestDecodeResyncsAfterGarbage(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("noise DAT not-a-frame S\xff\x00")
	encodeFrame(t, &buf, "stop")
	buf.WriteString("trailing junk")

	msg, err := NewDecoder(&buf).Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if string(msg.Payload) != "stop" {
		t.Fatalf("decoded %q, expected the framed payload", msg.Payload)
	}
}

func TestDecodeStopMessage(t *testing.T) {
	var buf bytes.Buffer
	encodeFrame(t, &buf, "start")
	if err := NewEncoder(&buf).EncodeStop(); err != nil {
		t.Fatalf("EncodeStop: %v", err)
	}
	encodeFrame(t, &buf, "gain 1.0")

	dec := NewDecoder(&buf)
	first, _ := dec.Next()
	second, err := dec.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if first.Stop || !second.Stop {
		t.Fatalf("stop flags = (%v, %v), expected the second message to be the stop", first.Stop, second.Stop)
	}
	third, err := dec.Next()
	if err != nil || string(third.Payload) != "gain 1.0" {
		t.Fatalf("Next after stop = (%q, %v)", third.Payload, err)
	}
}

// chunkReader delivers one byte per Read to exercise reassembly across
// arbitrary delivery boundaries.
type chunkReader struct {
	data []byte
	pos  int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	p[0] = r.data[r.pos]
	r.pos++
	return 1, nil
}

func TestDecodeSplitDelivery(t *testing.T) {
	var buf bytes.Buffer
	encodeFrame(t, &buf, "algo passthrough")

	msg, err := NewDecoder(&chunkReader{data: buf.Bytes()}).Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if string(msg.Payload) != "algo passthrough" {
		t.Fatalf("decoded %q", msg.Payload)
	}
}

func TestDecodeRejectsCorruptFooter(t *testing.T) {
	var buf bytes.Buffer
	encodeFrame(t, &buf, "start")
	frame := buf.Bytes()
	frame[FrameSize-2] = 'X' // corrupt the footer
	encodeFrame(t, &buf, "gain 3.0")

	dec := NewDecoder(bytes.NewReader(buf.Bytes()))
	msg, err := dec.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if string(msg.Payload) != "gain 3.0" {
		t.Fatalf("decoded %q, expected the frame after the corrupt one", msg.Payload)
	}
}

func TestParseCommandTable(t *testing.T) {
	tests := []struct {
		payload string
		verb    string
		arg     string
		ok      bool
	}{
		{"start", "start", "", true},
		{"stop", "stop", "", true},
		{"algo spectral", "algo", "spectral", true},
		{"gain 2.5", "gain", "2.5", true},
		{"gate 0.05", "gate", "0.05", true},
		{"reset", "reset", "", true},
		{"START", "start", "", true},
		{"", "", "", false},
		{"reboot", "", "", false},
		{"gain loud", "", "", false},
		{"algo", "", "", false},
		{"start now", "", "", false},
	}

	for _, tt := range tests {
		cmd, err := ParseCommand([]byte(tt.payload))
		if tt.ok != (err == nil) {
			t.Errorf("ParseCommand(%q) error = %v, ok expected %v", tt.payload, err, tt.ok)
			continue
		}
		if tt.ok && (cmd.Verb != tt.verb || cmd.Arg != tt.arg) {
			t.Errorf("ParseCommand(%q) = %+v, expected verb %q arg %q", tt.payload, cmd, tt.verb, tt.arg)
		}
	}
}

type scriptedControls struct {
	calls []string
}

func (s *scriptedControls) StartPipeline() error          { s.calls = append(s.calls, "start"); return nil }
func (s *scriptedControls) StopPipeline() error           { s.calls = append(s.calls, "stop"); return nil }
func (s *scriptedControls) SetAlgorithm(name string) error {
	s.calls = append(s.calls, "algo:"+name)
	return nil
}
func (s *scriptedControls) SetGain(gain float64) error {
	s.calls = append(s.calls, "gain")
	return nil
}
func (s *scriptedControls) SetGateThreshold(threshold float64) error {
	s.calls = append(s.calls, "gate")
	return nil
}
func (s *scriptedControls) ResetPeak() error { s.calls = append(s.calls, "reset"); return nil }

func TestControllerAppliesCommands(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	enc.Encode([]byte("start"))
	enc.Encode([]byte("algo spectral"))
	enc.Encode([]byte("reboot")) // unknown, skipped
	enc.Encode([]byte("gain 2.0"))
	enc.EncodeStop()

	controls := &scriptedControls{}
	if err := NewController(&buf, controls).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	expected := []string{"start", "algo:spectral", "gain", "stop"}
	if len(controls.calls) != len(expected) {
		t.Fatalf("calls = %v, expected %v", controls.calls, expected)
	}
	for i, call := range expected {
		if controls.calls[i] != call {
			t.Fatalf("calls[%d] = %q, expected %q", i, controls.calls[i], call)
		}
	}
}
