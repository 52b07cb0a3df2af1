package pad

import (
	"context"
	"errors"
	"fmt"
	"io"

	"remotepad/internal/protocol"
)

// Sender is the part of a control session the pad drives.
type Sender interface {
	Send(ev protocol.Event) error
	Deliver(ctx context.Context, ev protocol.Event) error
	Reconnect(ctx context.Context) error
}

// Options controls Run.
type Options struct {
	// AutoResend routes events through Deliver so a dropped connection is
	// restored once before giving up.
	AutoResend bool
	// Status receives one line per failure or local command result.
	Status io.Writer
}

// Run reads terminal input until ctx ends, in is exhausted, or a quit key is
// pressed. Send failures are reported on Status and do not stop the pad.
func Run(ctx context.Context, in io.Reader, k Keymap, s Sender, opts Options) error {
	status := opts.Status
	if status == nil {
		status = io.Discard
	}

	type chunk struct {
		b   []byte
		err error
	}
	reads := make(chan chunk)
	done := make(chan struct{})
	defer close(done)
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := in.Read(buf)
			c := chunk{b: append([]byte(nil), buf[:n]...), err: err}
			select {
			case reads <- c:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		var c chunk
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c = <-reads:
		}

		for _, act := range k.Decode(c.b) {
			switch act.Command {
			case Quit:
				return nil
			case Reconnect:
				if err := s.Reconnect(ctx); err != nil {
					fmt.Fprintf(status, "reconnect failed: %v\r\n", err)
				}
				continue
			}
			if act.Event == nil {
				continue
			}
			var err error
			if opts.AutoResend {
				err = s.Deliver(ctx, act.Event)
			} else {
				err = s.Send(act.Event)
			}
			if err != nil {
				fmt.Fprintf(status, "%s: %v\r\n", act.Event.Action(), err)
			}
		}

		if c.err != nil {
			if errors.Is(c.err, io.EOF) {
				return nil
			}
			return c.err
		}
	}
}
