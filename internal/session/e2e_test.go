package session

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"remotepad/internal/config"
	"remotepad/internal/discovery"
	"remotepad/internal/store"
)

// TestEndToEnd_DiscoveredHostReceivesMove discovers a host at 192.168.1.5:9999
// and routes that address to a loopback listener standing in for it.
func TestEndToEnd_DiscoveredHostReceivesMove(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	const want = "{\"action\":\"mouse_move\",\"dx\":10,\"dy\":-4}\n"
	got := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		buf := make([]byte, len(want))
		n, _ := io.ReadFull(conn, buf)
		got <- string(buf[:n])
	}()

	mb := discovery.NewMockBrowser()
	changes := make(chan store.Snapshot, 8)
	svc := discovery.New(config.Default(), mb)
	if err := svc.Start(func(s store.Snapshot) { changes <- s }); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer svc.Stop()

	mb.Announce("A", "192.168.1.5", 9999, "hostname=desktop-1", "system=Linux", "version=1.0")
	var snap store.Snapshot
	select {
	case snap = <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("host not discovered")
	}
	if snap.Len() != 1 {
		t.Fatalf("len=%d", snap.Len())
	}
	host, ok := snap.FindByHostname("desktop-1")
	if !ok {
		t.Fatalf("desktop-1 missing")
	}

	s := New(fastPolicy())
	var d net.Dialer
	s.dial = func(ctx context.Context, network, address string) (net.Conn, error) {
		if address != "192.168.1.5:9999" {
			t.Errorf("dialed %s", address)
		}
		return d.DialContext(ctx, network, ln.Addr().String())
	}
	if err := s.Connect(context.Background(), host.Address.String(), host.Port); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Disconnect()

	if err := s.MoveCursor(10, -4); err != nil {
		t.Fatalf("MoveCursor: %v", err)
	}
	select {
	case b := <-got:
		if b != want {
			t.Fatalf("bytes=%q", b)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out")
	}
}
