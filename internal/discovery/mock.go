package discovery

import (
	"context"
	"net"
	"sync"
)

// MockBrowser is an in-memory Browser for tests and demos. Advertisements
// pushed with Announce or Withdraw are delivered to the active Browse call.
type MockBrowser struct {
	// InitErr, when set, is returned by Browse immediately.
	InitErr error

	once sync.Once
	ch   chan Advertisement
	mu   sync.Mutex
	runs int
}

// NewMockBrowser returns a browser with a buffered feed.
func NewMockBrowser() *MockBrowser {
	m := &MockBrowser{}
	m.init()
	return m
}

func (m *MockBrowser) init() {
	m.once.Do(func() { m.ch = make(chan Advertisement, 64) })
}

// Announce queues a seen advertisement for host at ip:port with TXT text.
func (m *MockBrowser) Announce(instance, ip string, port int, text ...string) {
	ad := Advertisement{Instance: instance, HostName: instance + ".local.", Port: port, Text: text}
	if parsed := net.ParseIP(ip); parsed != nil {
		if v4 := parsed.To4(); v4 != nil {
			ad.AddrIPv4 = []net.IP{v4}
		} else {
			ad.AddrIPv6 = []net.IP{parsed}
		}
	}
	m.Push(ad)
}

// Withdraw queues a removal of instance.
func (m *MockBrowser) Withdraw(instance string) {
	m.Push(Advertisement{Instance: instance, Withdrawn: true})
}

// Push queues a raw advertisement.
func (m *MockBrowser) Push(ad Advertisement) {
	m.init()
	m.ch <- ad
}

// Runs returns how many times Browse was called.
func (m *MockBrowser) Runs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs
}

// Browse implements Browser.
func (m *MockBrowser) Browse(ctx context.Context, service, domain string, out chan<- Advertisement) error {
	m.init()
	m.mu.Lock()
	m.runs++
	m.mu.Unlock()
	if m.InitErr != nil {
		return m.InitErr
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ad := <-m.ch:
			select {
			case out <- ad:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
