// Package protocol defines the input events sent to a remote host and their
// newline-delimited JSON wire form.
package protocol

import "fmt"

// Action values carried in the "action" field of every frame.
const (
	ActionMouseMove   = "mouse_move"
	ActionMouseClick  = "mouse_click"
	ActionMouseScroll = "mouse_scroll"
	ActionKeyboard    = "keyboard"
)

// Button is a pointer button.
type Button string

const (
	ButtonLeft   Button = "left"
	ButtonMiddle Button = "middle"
	ButtonRight  Button = "right"
)

// Phase is the sub-action of a click or key event.
type Phase string

const (
	PhasePress   Phase = "press"
	PhaseRelease Phase = "release"
	// PhaseClick is a full press+release reported as one action. Pointer only.
	PhaseClick Phase = "click"
)

// Event is one unit of user input. The set of implementations is closed.
type Event interface {
	// Action returns the wire action name.
	Action() string
	event()
}

// PointerMove moves the cursor by a relative pixel delta.
type PointerMove struct {
	DX int
	DY int
}

// PointerClick presses, releases or clicks a button.
type PointerClick struct {
	Button Button
	Phase  Phase
}

// PointerScroll scrolls by a relative delta.
type PointerScroll struct {
	DX int
	DY int
}

// TextInput types a whole string.
type TextInput struct {
	Text string
}

// KeyAction presses or releases a named key.
type KeyAction struct {
	Key   string
	Phase Phase
}

func (PointerMove) Action() string   { return ActionMouseMove }
func (PointerClick) Action() string  { return ActionMouseClick }
func (PointerScroll) Action() string { return ActionMouseScroll }
func (TextInput) Action() string     { return ActionKeyboard }
func (KeyAction) Action() string     { return ActionKeyboard }

func (PointerMove) event()   {}
func (PointerClick) event()  {}
func (PointerScroll) event() {}
func (TextInput) event()     {}
func (KeyAction) event()     {}

// Idempotent reports whether resending ev after a partial delivery is harmless.
// Relative pointer motion is; clicks, text and keys would be duplicated on the host.
func Idempotent(ev Event) bool {
	switch ev.(type) {
	case PointerMove, PointerScroll:
		return true
	default:
		return false
	}
}

// Validate checks enumerated fields.
func Validate(ev Event) error {
	switch e := ev.(type) {
	case PointerMove, PointerScroll, TextInput:
		return nil
	case PointerClick:
		if !validButton(e.Button) {
			return fmt.Errorf("invalid button %q", e.Button)
		}
		if e.Phase != PhasePress && e.Phase != PhaseRelease && e.Phase != PhaseClick {
			return fmt.Errorf("invalid click phase %q", e.Phase)
		}
		return nil
	case KeyAction:
		if e.Key == "" {
			return fmt.Errorf("empty key")
		}
		if e.Phase != PhasePress && e.Phase != PhaseRelease {
			return fmt.Errorf("invalid key phase %q", e.Phase)
		}
		return nil
	case nil:
		return fmt.Errorf("nil event")
	default:
		return fmt.Errorf("unsupported event %T", ev)
	}
}

// ParseButton maps a button name to a Button.
func ParseButton(value string) (Button, error) {
	b := Button(value)
	if !validButton(b) {
		return "", fmt.Errorf("invalid button %q", value)
	}
	return b, nil
}

// ParsePhase maps a phase name to a Phase.
func ParsePhase(value string) (Phase, error) {
	switch p := Phase(value); p {
	case PhasePress, PhaseRelease, PhaseClick:
		return p, nil
	}
	return "", fmt.Errorf("invalid phase %q", value)
}

func validButton(b Button) bool {
	return b == ButtonLeft || b == ButtonMiddle || b == ButtonRight
}
