// Package pad maps raw terminal key input to pointer and keyboard events.
package pad

import (
	"math"
	"unicode"
	"unicode/utf8"

	"remotepad/internal/config"
	"remotepad/internal/protocol"
)

// Command is a pad control key that is handled locally instead of being sent.
type Command int

const (
	None Command = iota
	Quit
	Reconnect
)

// Action is one decoded input: either an event to send or a local command.
type Action struct {
	Event   protocol.Event
	Command Command
}

// Special key names sent in KeyAction frames.
const (
	KeyEnter     = "enter"
	KeyBackspace = "backspace"
	KeyTab       = "tab"
	KeyEscape    = "escape"
)

const (
	ctrlC = 0x03
	ctrlD = 0x04
	ctrlR = 0x12
	esc   = 0x1b
	del   = 0x7f
	bs    = 0x08
)

// Keymap decodes raw-mode terminal bytes.
type Keymap struct {
	Sensitivity float64
	MoveStep    int
	ScrollStep  int
}

// NewKeymap builds a keymap from pad settings, filling zero values with defaults.
func NewKeymap(cfg config.PadConfig) Keymap {
	k := Keymap{Sensitivity: cfg.Sensitivity, MoveStep: cfg.MoveStep, ScrollStep: cfg.ScrollStep}
	if k.Sensitivity <= 0 {
		k.Sensitivity = config.DefaultSensitivity
	}
	if k.MoveStep <= 0 {
		k.MoveStep = config.DefaultMoveStep
	}
	if k.ScrollStep <= 0 {
		k.ScrollStep = config.DefaultScrollStep
	}
	return k
}

// Scale applies the pointer sensitivity to a raw delta.
func Scale(dx, dy int, sensitivity float64) (int, int) {
	return int(math.Round(float64(dx) * sensitivity)), int(math.Round(float64(dy) * sensitivity))
}

// Decode turns one read from the terminal into actions. Escape sequences are
// expected to arrive whole, which holds for a raw-mode tty read. Runs of
// printable characters become a single TextInput.
func (k Keymap) Decode(b []byte) []Action {
	var (
		out  []Action
		text []rune
	)
	flush := func() {
		if len(text) > 0 {
			out = append(out, Action{Event: protocol.TextInput{Text: string(text)}})
			text = text[:0]
		}
	}
	emit := func(acts ...Action) {
		flush()
		out = append(out, acts...)
	}

	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c == ctrlC || c == ctrlD:
			emit(Action{Command: Quit})
			return out
		case c == ctrlR:
			emit(Action{Command: Reconnect})
			i++
		case c == '\r' || c == '\n':
			emit(k.tap(KeyEnter)...)
			i++
			if c == '\r' && i < len(b) && b[i] == '\n' {
				i++
			}
		case c == '\t':
			emit(k.tap(KeyTab)...)
			i++
		case c == del || c == bs:
			emit(k.tap(KeyBackspace)...)
			i++
		case c == esc:
			n, acts := k.escape(b[i:])
			emit(acts...)
			i += n
		case c == '[':
			emit(click(protocol.ButtonLeft))
			i++
		case c == ']':
			emit(click(protocol.ButtonMiddle))
			i++
		case c == '\\':
			emit(click(protocol.ButtonRight))
			i++
		default:
			r, size := utf8.DecodeRune(b[i:])
			if r != utf8.RuneError && unicode.IsPrint(r) {
				text = append(text, r)
			}
			i += size
		}
	}
	flush()
	return out
}

// escape decodes an ESC-prefixed sequence and returns the bytes consumed.
func (k Keymap) escape(b []byte) (int, []Action) {
	if len(b) < 3 || (b[1] != '[' && b[1] != 'O') {
		return 1, k.tap(KeyEscape)
	}
	dx, dy := Scale(k.MoveStep, k.MoveStep, k.Sensitivity)
	switch b[2] {
	case 'A':
		return 3, []Action{{Event: protocol.PointerMove{DX: 0, DY: -dy}}}
	case 'B':
		return 3, []Action{{Event: protocol.PointerMove{DX: 0, DY: dy}}}
	case 'C':
		return 3, []Action{{Event: protocol.PointerMove{DX: dx, DY: 0}}}
	case 'D':
		return 3, []Action{{Event: protocol.PointerMove{DX: -dx, DY: 0}}}
	case '5', '6':
		if len(b) >= 4 && b[3] == '~' {
			dy := k.ScrollStep
			if b[2] == '6' {
				dy = -dy
			}
			return 4, []Action{{Event: protocol.PointerScroll{DX: 0, DY: dy}}}
		}
	}
	// Unknown sequence: swallow the introducer and any parameter bytes up to the final byte.
	n := 2
	for n < len(b) && (b[n] < 0x40 || b[n] > 0x7e) {
		n++
	}
	if n < len(b) {
		n++
	}
	return n, nil
}

func (k Keymap) tap(key string) []Action {
	return []Action{
		{Event: protocol.KeyAction{Key: key, Phase: protocol.PhasePress}},
		{Event: protocol.KeyAction{Key: key, Phase: protocol.PhaseRelease}},
	}
}

func click(b protocol.Button) Action {
	return Action{Event: protocol.PointerClick{Button: b, Phase: protocol.PhaseClick}}
}

// HelpText describes the key bindings.
const HelpText = `arrows   move pointer
[ ] \    left / middle / right click
pgup/dn  scroll
enter tab backspace esc   special keys
ctrl-r   reconnect
ctrl-c   quit
`
