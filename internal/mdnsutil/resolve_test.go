package mdnsutil

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	got, err := normalize(" Desk.LOCAL. ")
	if err != nil || got != "desk.local" {
		t.Fatalf("got=%q err=%v", got, err)
	}
	for _, bad := range []string{"desk", "example.com", ".local", ""} {
		if _, err := normalize(bad); !errors.Is(err, ErrNotLocal) {
			t.Fatalf("%q: err=%v", bad, err)
		}
	}
}

func TestResolve_RejectsNonLocalWithoutNetwork(t *testing.T) {
	t.Parallel()

	if _, err := Resolve(context.Background(), "example.com", 0); !errors.Is(err, ErrNotLocal) {
		t.Fatalf("err=%v", err)
	}
	var r *Resolver
	if err := r.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
}

func TestAddrOf(t *testing.T) {
	t.Parallel()

	a, ok := addrOf(&net.UDPAddr{IP: net.ParseIP("192.168.1.5"), Port: 5353})
	if !ok || a != netip.MustParseAddr("192.168.1.5") {
		t.Fatalf("addr=%s ok=%v", a, ok)
	}
	if _, ok := addrOf(&net.TCPAddr{}); ok {
		t.Fatalf("tcp addr accepted")
	}
}
