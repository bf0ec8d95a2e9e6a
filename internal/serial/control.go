// SPDX-License-Identifier: MIT
package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	applog "wearaudio/internal/log"
)

// Controls is the engine surface the link may drive. All methods are
// invoked from the controller's goroutine, never from the tick path.
type Controls interface {
	StartPipeline() error
	StopPipeline() error
	SetAlgorithm(name string) error
	SetGain(gain float64) error
	SetGateThreshold(threshold float64) error
	ResetPeak() error
}

// Command is one parsed control payload.
type Command struct {
	Verb string
	Arg  string
}

// ErrUnknownCommand reports a payload whose verb the command set does
// not include.
var ErrUnknownCommand = errors.New("unknown control command")

// ParseCommand interprets a frame payload as a textual command:
// "start", "stop", "reset", "algo <name>", "gain <value>",
// "gate <value>". Payload padding and surrounding whitespace are
// ignored.
func ParseCommand(payload []byte) (Command, error) {
	text := strings.TrimRight(string(payload), "\x00")
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("%w: empty payload", ErrUnknownCommand)
	}

	cmd := Command{Verb: strings.ToLower(fields[0])}
	if len(fields) > 1 {
		cmd.Arg = fields[1]
	}

	switch cmd.Verb {
	case "start", "stop", "reset":
		if cmd.Arg != "" {
			return Command{}, fmt.Errorf("%w: %q takes no argument", ErrUnknownCommand, cmd.Verb)
		}
	case "algo":
		if cmd.Arg == "" {
			return Command{}, fmt.Errorf("%w: algo requires a name", ErrUnknownCommand)
		}
	case "gain", "gate":
		if _, err := strconv.ParseFloat(cmd.Arg, 64); err != nil {
			return Command{}, fmt.Errorf("%w: %s requires a numeric argument, got %q",
				ErrUnknownCommand, cmd.Verb, cmd.Arg)
		}
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Verb)
	}
	return cmd, nil
}

// Controller decodes the link and applies commands to the engine.
type Controller struct {
	dec      *Decoder
	controls Controls
}

func NewController(r io.Reader, controls Controls) *Controller {
	return &Controller{dec: NewDecoder(r), controls: controls}
}

// Run decodes until the stream ends or ctx is cancelled. Unknown or
// failing commands are logged and skipped; the link stays up.
func (c *Controller) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := c.dec.Next()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("control link: %w", err)
		}

		if msg.Stop {
			if err := c.controls.StopPipeline(); err != nil {
				applog.Errorf("Serial: stop message: %v", err)
			}
			continue
		}

		cmd, err := ParseCommand(msg.Payload)
		if err != nil {
			applog.Warnf("Serial: %v", err)
			continue
		}
		if err := c.apply(cmd); err != nil {
			applog.Errorf("Serial: %s: %v", cmd.Verb, err)
		}
	}
}

func (c *Controller) apply(cmd Command) error {
	switch cmd.Verb {
	case "start":
		return c.controls.StartPipeline()
	case "stop":
		return c.controls.StopPipeline()
	case "reset":
		return c.controls.ResetPeak()
	case "algo":
		return c.controls.SetAlgorithm(cmd.Arg)
	case "gain":
		v, _ := strconv.ParseFloat(cmd.Arg, 64)
		return c.controls.SetGain(v)
	case "gate":
		v, _ := strconv.ParseFloat(cmd.Arg, 64)
		return c.controls.SetGateThreshold(v)
	}
	return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Verb)
}
