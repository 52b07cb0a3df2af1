// Package mdnsutil resolves ".local" host names with a one-shot multicast DNS query.
package mdnsutil

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/pion/logging"
	"github.com/pion/mdns"
	"golang.org/x/net/ipv4"
)

// DefaultTimeout bounds a lookup when the caller passes none.
const DefaultTimeout = 3 * time.Second

var ErrNotLocal = errors.New("not a .local name")

// Resolver owns one multicast socket. Close it when done.
type Resolver struct {
	conn *mdns.Conn
}

// Open joins the mDNS multicast group on all IPv4 interfaces.
func Open() (*Resolver, error) {
	addr, err := net.ResolveUDPAddr("udp", mdns.DefaultAddress)
	if err != nil {
		return nil, err
	}
	l, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("mdns listen: %w", err)
	}

	logs := logging.NewDefaultLoggerFactory()
	logs.DefaultLogLevel = logging.LogLevelError
	logs.Writer = log.Writer()

	conn, err := mdns.Server(ipv4.NewPacketConn(l), &mdns.Config{LoggerFactory: logs})
	if err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("mdns server: %w", err)
	}
	return &Resolver{conn: conn}, nil
}

// Lookup queries name and returns the address of the first responder.
func (r *Resolver) Lookup(ctx context.Context, name string) (netip.Addr, error) {
	q, err := normalize(name)
	if err != nil {
		return netip.Addr{}, err
	}
	if r == nil || r.conn == nil {
		return netip.Addr{}, errors.New("mdns resolver closed")
	}

	_, src, err := r.conn.Query(ctx, q)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("mdns query %s: %w", q, err)
	}
	addr, ok := addrOf(src)
	if !ok {
		return netip.Addr{}, fmt.Errorf("mdns query %s: unexpected answer source %v", q, src)
	}
	return addr, nil
}

// Close releases the socket. Safe on nil.
func (r *Resolver) Close() error {
	if r == nil || r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

// Resolve opens a resolver, performs one lookup bounded by timeout and closes it.
func Resolve(ctx context.Context, name string, timeout time.Duration) (netip.Addr, error) {
	if _, err := normalize(name); err != nil {
		return netip.Addr{}, err
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r, err := Open()
	if err != nil {
		return netip.Addr{}, err
	}
	defer r.Close()
	return r.Lookup(ctx, name)
}

// normalize lowercases name and strips the trailing dot; the query adds it back.
func normalize(name string) (string, error) {
	n := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".")
	if !strings.HasSuffix(n, ".local") || n == ".local" {
		return "", fmt.Errorf("%w: %q", ErrNotLocal, name)
	}
	return n, nil
}

func addrOf(a net.Addr) (netip.Addr, bool) {
	var ip net.IP
	switch v := a.(type) {
	case *net.UDPAddr:
		ip = v.IP
	case *net.IPAddr:
		ip = v.IP
	default:
		return netip.Addr{}, false
	}
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
