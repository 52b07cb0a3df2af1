// Package sink is a minimal remote-control host: it accepts TCP connections
// and decodes the frames it receives. It backs the `remotepad sink` command
// and the session tests.
package sink

import (
	"bufio"
	"errors"
	"log"
	"net"
	"sync"

	"remotepad/internal/protocol"
)

// MaxFrameSize bounds a single frame line.
const MaxFrameSize = 64 * 1024

// Frame is one received line and its decoded event (nil when Err is set).
type Frame struct {
	Remote string
	Raw    []byte
	Event  protocol.Event
	Err    error
}

// Handler receives frames in arrival order per connection.
type Handler func(Frame)

// Listener accepts connections and feeds decoded frames to a handler.
type Listener struct {
	ln      net.Listener
	handler Handler

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// Start listens on addr (e.g. "127.0.0.1:0") and serves in the background.
func Start(addr string, handler Handler) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if handler == nil {
		handler = func(Frame) {}
	}

	l := &Listener{ln: ln, handler: handler, conns: map[net.Conn]struct{}{}}
	l.wg.Add(1)
	go l.serve()
	return l, nil
}

// Addr returns the listening address.
func (l *Listener) Addr() string {
	if l == nil || l.ln == nil {
		return ""
	}
	return l.ln.Addr().String()
}

// Port returns the listening TCP port.
func (l *Listener) Port() uint16 {
	if l == nil || l.ln == nil {
		return 0
	}
	return uint16(l.ln.Addr().(*net.TCPAddr).Port)
}

// Conns returns the number of open client connections.
func (l *Listener) Conns() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.conns)
}

// DropConnections closes every open client connection but keeps listening.
func (l *Listener) DropConnections() {
	l.mu.Lock()
	conns := make([]net.Conn, 0, len(l.conns))
	for c := range l.conns {
		conns = append(conns, c)
	}
	l.mu.Unlock()

	for _, c := range conns {
		if tcp, ok := c.(*net.TCPConn); ok {
			// Linger 0 turns the close into a reset, like a crashed host.
			_ = tcp.SetLinger(0)
		}
		_ = c.Close()
	}
}

// Close stops listening, drops clients and waits for the serving goroutines.
func (l *Listener) Close() error {
	if l == nil || l.ln == nil {
		return nil
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	err := l.ln.Close()
	l.DropConnections()
	l.wg.Wait()
	return err
}

func (l *Listener) serve() {
	defer l.wg.Done()
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Printf("sink accept: %v", err)
			}
			return
		}

		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			_ = conn.Close()
			return
		}
		l.conns[conn] = struct{}{}
		l.wg.Add(1)
		l.mu.Unlock()

		go l.handle(conn)
	}
}

func (l *Listener) handle(conn net.Conn) {
	defer l.wg.Done()
	defer func() {
		l.mu.Lock()
		delete(l.conns, conn)
		l.mu.Unlock()
		_ = conn.Close()
	}()

	remote := conn.RemoteAddr().String()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), MaxFrameSize)
	for scanner.Scan() {
		raw := append([]byte(nil), scanner.Bytes()...)
		ev, err := protocol.Decode(raw)
		l.handler(Frame{Remote: remote, Raw: raw, Event: ev, Err: err})
	}
}
