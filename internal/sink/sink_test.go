package sink

import (
	"net"
	"testing"
	"time"

	"remotepad/internal/protocol"
)

func TestListener_DecodesFrames(t *testing.T) {
	t.Parallel()

	frames := make(chan Frame, 4)
	l, err := Start("127.0.0.1:0", func(f Frame) { frames <- f })
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer l.Close()

	conn, err := net.Dial("tcp", l.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("{\"action\":\"mouse_move\",\"dx\":1,\"dy\":2}\n{\"action\":\"bogus\"}\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	first := recv(t, frames)
	if first.Err != nil || first.Event != (protocol.PointerMove{DX: 1, DY: 2}) {
		t.Fatalf("first=%+v", first)
	}
	second := recv(t, frames)
	if second.Err == nil {
		t.Fatalf("expected decode error, got %+v", second)
	}
}

func TestListener_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	l, err := Start("127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if l.Port() == 0 {
		t.Fatal("port not set")
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	var nilListener *Listener
	if nilListener.Addr() != "" || nilListener.Close() != nil {
		t.Fatal("nil listener should be inert")
	}
}

func recv(t *testing.T, ch <-chan Frame) Frame {
	t.Helper()
	select {
	case f := <-ch:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return Frame{}
	}
}
