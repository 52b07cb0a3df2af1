package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Delimiter terminates every frame.
const Delimiter = '\n'

// ErrUnknownAction is returned by Decode for an action outside the wire table.
var ErrUnknownAction = errors.New("unknown action")

// frame is the union of all wire fields. The event kind lives only in Action;
// click and key sub-actions always go in Phase.
type frame struct {
	Action string  `json:"action"`
	DX     *int    `json:"dx,omitempty"`
	DY     *int    `json:"dy,omitempty"`
	Button string  `json:"button,omitempty"`
	Phase  string  `json:"phase,omitempty"`
	Text   *string `json:"text,omitempty"`
	Key    string  `json:"key,omitempty"`
}

type moveFrame struct {
	Action string `json:"action"`
	DX     int    `json:"dx"`
	DY     int    `json:"dy"`
}

type clickFrame struct {
	Action string `json:"action"`
	Button Button `json:"button"`
	Phase  Phase  `json:"phase"`
}

type textFrame struct {
	Action string `json:"action"`
	Text   string `json:"text"`
}

type keyFrame struct {
	Action string `json:"action"`
	Key    string `json:"key"`
	Phase  Phase  `json:"phase"`
}

// Encode serializes ev to one newline-terminated frame.
func Encode(ev Event) ([]byte, error) {
	if err := Validate(ev); err != nil {
		return nil, err
	}

	var v any
	switch e := ev.(type) {
	case PointerMove:
		v = moveFrame{Action: ActionMouseMove, DX: e.DX, DY: e.DY}
	case PointerScroll:
		v = moveFrame{Action: ActionMouseScroll, DX: e.DX, DY: e.DY}
	case PointerClick:
		v = clickFrame{Action: ActionMouseClick, Button: e.Button, Phase: e.Phase}
	case TextInput:
		v = textFrame{Action: ActionKeyboard, Text: e.Text}
	case KeyAction:
		v = keyFrame{Action: ActionKeyboard, Key: e.Key, Phase: e.Phase}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoder.Encode appends the newline delimiter.
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Action(), err)
	}
	return buf.Bytes(), nil
}

// Decode parses one frame (with or without its trailing delimiter) back into an Event.
func Decode(data []byte) (Event, error) {
	data = bytes.TrimRight(data, "\r\n")
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	var ev Event
	switch f.Action {
	case ActionMouseMove, ActionMouseScroll:
		if f.DX == nil || f.DY == nil {
			return nil, fmt.Errorf("%s: dx and dy are required", f.Action)
		}
		if f.Action == ActionMouseMove {
			ev = PointerMove{DX: *f.DX, DY: *f.DY}
		} else {
			ev = PointerScroll{DX: *f.DX, DY: *f.DY}
		}
	case ActionMouseClick:
		ev = PointerClick{Button: Button(f.Button), Phase: Phase(f.Phase)}
	case ActionKeyboard:
		switch {
		case f.Key != "":
			ev = KeyAction{Key: f.Key, Phase: Phase(f.Phase)}
		case f.Text != nil:
			ev = TextInput{Text: *f.Text}
		default:
			return nil, fmt.Errorf("keyboard: text or key is required")
		}
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownAction, f.Action)
	}

	if err := Validate(ev); err != nil {
		return nil, err
	}
	return ev, nil
}
