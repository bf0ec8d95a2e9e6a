// SPDX-License-Identifier: MIT
/*
Package serial implements the fixed-size control packet framing spoken
over the device's UART link, and the command layer that maps decoded
payloads onto engine controls.

A frame is exactly 272 bytes: a 5-byte header ("DATA" plus NUL), a
3-byte ASCII decimal payload length, a 256-byte payload field (trailing
bytes beyond the declared length are padding), and an 8-byte footer
("ENDSIG", NUL, newline). Outside of frames the link may carry the
8-byte stop message "STOPSIG\n". Values are opaque here; interpretation
belongs to the command layer.
*/
package serial

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Frame geometry.
const (
	HeaderSize  = 5
	LengthSize  = 3
	PayloadSize = 256
	FooterSize  = 8
	FrameSize   = HeaderSize + LengthSize + PayloadSize + FooterSize
)

var (
	header  = []byte("DATA\x00")
	footer  = []byte("ENDSIG\x00\n")
	stopMsg = []byte("STOPSIG\n")
)

// ErrBadFrame reports a frame that resynced on a header but failed a
// later structural check.
var ErrBadFrame = errors.New("malformed control frame")

// Message is one decoded link-level unit.
type Message struct {
	Stop    bool   // the stop message, no payload
	Payload []byte // declared-length prefix of the payload field
}

// Encoder writes frames and the stop message to a byte stream.
type Encoder struct {
	w     io.Writer
	frame [FrameSize]byte
}

func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{w: w}
	copy(e.frame[:HeaderSize], header)
	copy(e.frame[FrameSize-FooterSize:], footer)
	return e
}

// Encode frames payload and writes one complete 272-byte frame.
func (e *Encoder) Encode(payload []byte) error {
	if len(payload) > PayloadSize {
		return fmt.Errorf("payload of %d bytes exceeds the %d-byte field", len(payload), PayloadSize)
	}

	length := e.frame[HeaderSize : HeaderSize+LengthSize]
	n := len(payload)
	length[0] = '0' + byte(n/100)
	length[1] = '0' + byte(n/10%10)
	length[2] = '0' + byte(n%10)

	data := e.frame[HeaderSize+LengthSize : FrameSize-FooterSize]
	copy(data, payload)
	for i := len(payload); i < PayloadSize; i++ {
		data[i] = 0
	}

	_, err := e.w.Write(e.frame[:])
	return err
}

// EncodeStop writes the stop message.
func (e *Encoder) EncodeStop() error {
	_, err := e.w.Write(stopMsg)
	return err
}

// Decoder reads messages from a byte stream, resynchronizing on the
// header marker after garbage or a partial frame. Delivery boundaries
// of the underlying reader are irrelevant; frames split across reads
// reassemble transparently.
type Decoder struct {
	r       *bufio.Reader
	payload [PayloadSize]byte
	rest    [FrameSize - HeaderSize]byte
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 2*FrameSize)}
}

// Next returns the next well-formed message, skipping anything that is
// neither a frame nor the stop message. io.EOF after the stream ends.
// The returned payload aliases the decoder's buffer; it is valid until
// the next call.
func (d *Decoder) Next() (Message, error) {
	for {
		err := d.sync()
		if errors.Is(err, errStopSeen) {
			return Message{Stop: true}, nil
		}
		if err != nil {
			return Message{}, err
		}

		payload, err := d.readFrame()
		if err == nil {
			return Message{Payload: payload}, nil
		}
		if !errors.Is(err, ErrBadFrame) {
			return Message{}, err
		}
		// Malformed frames are consumed up to the failing check; the
		// loop hunts for the next marker from there.
	}
}

// sync consumes bytes until the stream is positioned at a frame header,
// surfacing any stop message found along the way.
func (d *Decoder) sync() error {
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return err
		}
		switch b {
		case header[0]: // 'D'
			if err := d.r.UnreadByte(); err != nil {
				return err
			}
			window, err := d.r.Peek(HeaderSize - 1)
			if err != nil {
				return err
			}
			if bytes.Equal(window, header[:HeaderSize-1]) {
				return nil
			}
			d.r.Discard(1)
		case stopMsg[0]: // 'S'
			if err := d.r.UnreadByte(); err != nil {
				return err
			}
			window, err := d.r.Peek(len(stopMsg))
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			if bytes.Equal(window, stopMsg) {
				d.r.Discard(len(stopMsg))
				return errStopSeen
			}
			d.r.Discard(1)
		}
	}
}

var errStopSeen = errors.New("stop message")

// readFrame consumes one frame positioned at its header.
func (d *Decoder) readFrame() ([]byte, error) {
	hdr := make([]byte, HeaderSize)
	if _, err := io.ReadFull(d.r, hdr); err != nil {
		return nil, err
	}
	if !bytes.Equal(hdr, header) {
		return nil, fmt.Errorf("%w: header %q", ErrBadFrame, hdr)
	}
	if _, err := io.ReadFull(d.r, d.rest[:]); err != nil {
		return nil, err
	}

	length := 0
	for _, c := range d.rest[:LengthSize] {
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("%w: non-numeric length field", ErrBadFrame)
		}
		length = length*10 + int(c-'0')
	}
	if length > PayloadSize {
		return nil, fmt.Errorf("%w: declared length %d exceeds %d", ErrBadFrame, length, PayloadSize)
	}

	if !bytes.Equal(d.rest[len(d.rest)-FooterSize:], footer) {
		return nil, fmt.Errorf("%w: bad footer", ErrBadFrame)
	}

	copy(d.payload[:length], d.rest[LengthSize:LengthSize+length])
	return d.payload[:length], nil
}
