package pad

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"remotepad/internal/config"
	"remotepad/internal/protocol"
)

func events(acts []Action) []protocol.Event {
	var out []protocol.Event
	for _, a := range acts {
		if a.Event != nil {
			out = append(out, a.Event)
		}
	}
	return out
}

func TestScale(t *testing.T) {
	t.Parallel()

	if dx, dy := Scale(10, -4, 1.5); dx != 15 || dy != -6 {
		t.Fatalf("dx=%d dy=%d", dx, dy)
	}
	if dx, dy := Scale(3, 1, 1.5); dx != 5 || dy != 2 {
		t.Fatalf("dx=%d dy=%d", dx, dy)
	}
}

func TestDecode_ArrowsUseSensitivity(t *testing.T) {
	t.Parallel()

	k := NewKeymap(config.PadConfig{})
	got := events(k.Decode([]byte("\x1b[A\x1b[C\x1bOD\x1b[B")))
	want := []protocol.Event{
		protocol.PointerMove{DX: 0, DY: -15},
		protocol.PointerMove{DX: 15, DY: 0},
		protocol.PointerMove{DX: -15, DY: 0},
		protocol.PointerMove{DX: 0, DY: 15},
	}
	if len(got) != len(want) {
		t.Fatalf("got=%v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d=%v want %v", i, got[i], want[i])
		}
	}
}

func TestDecode_TextAndSpecialKeys(t *testing.T) {
	t.Parallel()

	k := NewKeymap(config.PadConfig{})
	got := events(k.Decode([]byte("hé\r\nx\t\x7f\x1b")))
	want := []protocol.Event{
		protocol.TextInput{Text: "hé"},
		protocol.KeyAction{Key: KeyEnter, Phase: protocol.PhasePress},
		protocol.KeyAction{Key: KeyEnter, Phase: protocol.PhaseRelease},
		protocol.TextInput{Text: "x"},
		protocol.KeyAction{Key: KeyTab, Phase: protocol.PhasePress},
		protocol.KeyAction{Key: KeyTab, Phase: protocol.PhaseRelease},
		protocol.KeyAction{Key: KeyBackspace, Phase: protocol.PhasePress},
		protocol.KeyAction{Key: KeyBackspace, Phase: protocol.PhaseRelease},
		protocol.KeyAction{Key: KeyEscape, Phase: protocol.PhasePress},
		protocol.KeyAction{Key: KeyEscape, Phase: protocol.PhaseRelease},
	}
	if len(got) != len(want) {
		t.Fatalf("got=%v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d=%v want %v", i, got[i], want[i])
		}
	}
}

func TestDecode_ClicksScrollAndCommands(t *testing.T) {
	t.Parallel()

	k := Keymap{Sensitivity: 1, MoveStep: 1, ScrollStep: 3}
	acts := k.Decode([]byte("[]\\\x1b[5~\x1b[6~\x1b[1;5P\x12\x03ignored"))
	want := []Action{
		{Event: protocol.PointerClick{Button: protocol.ButtonLeft, Phase: protocol.PhaseClick}},
		{Event: protocol.PointerClick{Button: protocol.ButtonMiddle, Phase: protocol.PhaseClick}},
		{Event: protocol.PointerClick{Button: protocol.ButtonRight, Phase: protocol.PhaseClick}},
		{Event: protocol.PointerScroll{DX: 0, DY: 3}},
		{Event: protocol.PointerScroll{DX: 0, DY: -3}},
		{Command: Reconnect},
		{Command: Quit},
	}
	if len(acts) != len(want) {
		t.Fatalf("acts=%v", acts)
	}
	for i := range want {
		if acts[i] != want[i] {
			t.Fatalf("action %d=%v want %v", i, acts[i], want[i])
		}
	}
}

type fakeSender struct {
	mu         sync.Mutex
	sent       []protocol.Event
	delivered  []protocol.Event
	reconnects int
	failWith   error
}

func (f *fakeSender) Send(ev protocol.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, ev)
	return f.failWith
}

func (f *fakeSender) Deliver(_ context.Context, ev protocol.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, ev)
	return f.failWith
}

func (f *fakeSender) Reconnect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnects++
	return nil
}

func TestRun_RoutesEventsAndStopsOnQuit(t *testing.T) {
	t.Parallel()

	f := &fakeSender{}
	in := strings.NewReader("ab\x1b[A\x12\x03zz")
	err := Run(context.Background(), in, NewKeymap(config.PadConfig{}), f, Options{AutoResend: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(f.delivered) != 2 || len(f.sent) != 0 || f.reconnects != 1 {
		t.Fatalf("delivered=%v sent=%v reconnects=%d", f.delivered, f.sent, f.reconnects)
	}
}

func TestRun_ReportsFailuresAndEndsOnEOF(t *testing.T) {
	t.Parallel()

	f := &fakeSender{failWith: errors.New("not connected")}
	var status bytes.Buffer
	err := Run(context.Background(), strings.NewReader("["), NewKeymap(config.PadConfig{}), f, Options{Status: &status})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(f.sent) != 1 || !strings.Contains(status.String(), "mouse_click: not connected") {
		t.Fatalf("sent=%v status=%q", f.sent, status.String())
	}
}
