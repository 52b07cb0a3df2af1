// Package session owns the single TCP connection to a remote host and turns
// input events into wire frames on it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"remotepad/internal/addrutil"
	"remotepad/internal/metrics"
	"remotepad/internal/model"
	"remotepad/internal/protocol"
)

// Stats is a point-in-time view of the session.
type Stats struct {
	State        State
	Remote       string
	ConnectionID string
	ConnectedAt  time.Time
	RetryCount   int
	LastAttempts int
	FramesSent   uint64
	BytesSent    uint64
	SendFailures uint64
	LastError    string
}

// Session is the control session: at most one open connection, bounded-retry
// connect, explicit reconnect, and unqueued in-order sends.
type Session struct {
	policy Policy
	dial   func(ctx context.Context, network, address string) (net.Conn, error)

	// connectMu serializes Connect/Reconnect calls.
	connectMu sync.Mutex

	mu            sync.Mutex
	state         State
	host          string
	port          uint16
	hasRemote     bool
	retryCount    int
	lastAttempts  int
	lastErr       error
	current       *connection
	cancelConnect context.CancelFunc
	listeners     []func(State)
	recorder      *metrics.Recorder

	// connectGen changes on every Connect and Disconnect so a dial that
	// completes after Disconnect is discarded.
	connectGen uint64

	// writeMu keeps frames from interleaving on the socket.
	writeMu sync.Mutex

	framesSent   atomic.Uint64
	bytesSent    atomic.Uint64
	sendFailures atomic.Uint64
}

// connection is one dialed socket. It is discarded on disconnect.
type connection struct {
	id       string
	conn     net.Conn
	remote   string
	openedAt time.Time

	closeOnce sync.Once
}

// New creates a disconnected session.
func New(policy Policy) *Session {
	policy = policy.normalized()
	dialer := &net.Dialer{Timeout: policy.AttemptTimeout, KeepAlive: policy.KeepAlive}
	return &Session{policy: policy, dial: dialer.DialContext, state: Disconnected}
}

// SetRecorder attaches a recorder that receives one sample per frame write.
func (s *Session) SetRecorder(r *metrics.Recorder) {
	s.mu.Lock()
	s.recorder = r
	s.mu.Unlock()
}

// OnStateChange registers fn to be called after every state transition.
// fn runs on the goroutine that caused the transition and must not block.
func (s *Session) OnStateChange(fn func(State)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Policy returns the effective policy.
func (s *Session) Policy() Policy {
	return s.policy
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsConnected reports whether the session is Connected.
func (s *Session) IsConnected() bool {
	return s.State() == Connected
}

// Remote returns the last attempted host and port, kept across disconnects.
func (s *Session) Remote() (string, uint16, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.host, s.port, s.hasRemote
}

// Stats returns current session statistics.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	st := Stats{
		State:        s.state,
		RetryCount:   s.retryCount,
		LastAttempts: s.lastAttempts,
	}
	if s.hasRemote {
		st.Remote = addrutil.Target(s.host, s.port)
	}
	if s.current != nil {
		st.ConnectionID = s.current.id
		st.ConnectedAt = s.current.openedAt
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	s.mu.Unlock()

	st.FramesSent = s.framesSent.Load()
	st.BytesSent = s.bytesSent.Load()
	st.SendFailures = s.sendFailures.Load()
	return st
}

// Connect opens a connection to host:port, closing any existing one first.
// Each attempt is bounded by the policy's AttemptTimeout; failed attempts are
// retried after Backoff until MaxAttempts is reached, at which point the
// session is Failed. The call blocks for the whole retry loop. Cancelling ctx
// or calling Disconnect aborts it.
func (s *Session) Connect(ctx context.Context, host string, port uint16) error {
	s.connectMu.Lock()
	defer s.connectMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	old := s.current
	s.current = nil
	s.host, s.port, s.hasRemote = host, port, true
	s.retryCount = 0
	s.lastAttempts = 0
	s.cancelConnect = cancel
	s.connectGen++
	gen := s.connectGen
	notify := s.setLocked(Connecting, nil)
	s.mu.Unlock()
	if old != nil {
		old.close()
	}
	notify()

	target := addrutil.Target(host, port)

	var lastErr error
	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		s.mu.Lock()
		s.lastAttempts = attempt
		s.mu.Unlock()

		attemptCtx, attemptCancel := context.WithTimeout(ctx, s.policy.AttemptTimeout)
		conn, err := s.dial(attemptCtx, "tcp", target)
		attemptCancel()
		if err == nil {
			return s.established(gen, conn, target)
		}
		lastErr = err
		if ctx.Err() != nil {
			return s.abortConnect(gen, target, lastErr)
		}
		log.Printf("connect attempt %d/%d to %s failed: %v", attempt, s.policy.MaxAttempts, target, err)

		if attempt == s.policy.MaxAttempts {
			break
		}
		s.mu.Lock()
		s.retryCount = attempt
		s.mu.Unlock()

		timer := time.NewTimer(s.policy.Backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return s.abortConnect(gen, target, lastErr)
		case <-timer.C:
		}
	}

	err := fmt.Errorf("%w: %s after %d attempts: %v", ErrConnectFailed, target, s.policy.MaxAttempts, lastErr)
	s.mu.Lock()
	notify = func() {}
	if s.connectGen == gen {
		s.cancelConnect = nil
		notify = s.setLocked(Failed, err)
	}
	s.mu.Unlock()
	notify()
	return err
}

func (s *Session) established(gen uint64, conn net.Conn, target string) error {
	cx := &connection{
		id:       uuid.NewString(),
		conn:     conn,
		remote:   target,
		openedAt: time.Now(),
	}

	s.mu.Lock()
	if s.connectGen != gen {
		s.mu.Unlock()
		_ = conn.Close()
		return fmt.Errorf("%w: %s", ErrConnectAborted, target)
	}
	s.cancelConnect = nil
	s.retryCount = 0
	s.current = cx
	notify := s.setLocked(Connected, nil)
	s.mu.Unlock()
	notify()

	log.Printf("connected to %s id=%s", target, cx.id)
	go s.readLoop(cx)
	return nil
}

// abortConnect ends a cancelled connect. After Disconnect the session is
// already Disconnected; a cancelled ctx leaves it Failed.
func (s *Session) abortConnect(gen uint64, target string, cause error) error {
	err := fmt.Errorf("%w: %s: %v", ErrConnectAborted, target, cause)
	s.mu.Lock()
	notify := func() {}
	if s.connectGen == gen {
		s.cancelConnect = nil
		notify = s.setLocked(Failed, err)
	}
	s.mu.Unlock()
	notify()
	return err
}

// Reconnect repeats Connect against the last recorded host.
func (s *Session) Reconnect(ctx context.Context) error {
	host, port, ok := s.Remote()
	if !ok {
		return ErrNoPriorAddress
	}
	log.Printf("reconnecting to %s", addrutil.Target(host, port))
	return s.Connect(ctx, host, port)
}

// Disconnect closes the connection if open and aborts a connect in progress.
// It always leaves the session Disconnected and is safe to call repeatedly.
func (s *Session) Disconnect() {
	s.mu.Lock()
	cx := s.current
	s.current = nil
	cancel := s.cancelConnect
	s.cancelConnect = nil
	s.connectGen++
	notify := s.setLocked(Disconnected, nil)
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if cx != nil {
		cx.close()
		log.Printf("disconnected from %s id=%s", cx.remote, cx.id)
	}
	notify()
}

// Send writes ev as one frame. It fails with ErrNotConnected without touching
// the network unless the session is Connected. Any write error drops the
// connection and returns ErrSendFailed. Send never retries.
func (s *Session) Send(ev protocol.Event) error {
	data, err := protocol.Encode(ev)
	if err != nil {
		return err
	}

	s.mu.Lock()
	cx := s.current
	connected := s.state == Connected
	recorder := s.recorder
	s.mu.Unlock()
	if !connected || cx == nil {
		return ErrNotConnected
	}

	s.writeMu.Lock()
	start := time.Now()
	_ = cx.conn.SetWriteDeadline(start.Add(s.policy.WriteTimeout))
	n, werr := cx.conn.Write(data)
	_ = cx.conn.SetWriteDeadline(time.Time{})
	elapsed := time.Since(start)
	s.writeMu.Unlock()

	sample := model.SendSample{
		Timestamp:    start.UTC(),
		ConnectionID: cx.id,
		Remote:       cx.remote,
		Action:       ev.Action(),
		Bytes:        n,
		WriteMs:      float64(elapsed.Microseconds()) / 1000.0,
		OK:           werr == nil,
	}

	if werr != nil {
		sample.Error = werr.Error()
		recorder.Record(sample)
		s.sendFailures.Add(1)
		log.Printf("send %s to %s failed: %v", ev.Action(), cx.remote, werr)
		err := fmt.Errorf("%w: %v", ErrSendFailed, werr)
		s.drop(cx, err)
		return err
	}

	recorder.Record(sample)
	s.framesSent.Add(1)
	s.bytesSent.Add(uint64(n))
	return nil
}

// Deliver sends ev and, on a transport failure, reconnects once. The event is
// sent again only when that cannot duplicate input on the host: either nothing
// was written (ErrNotConnected) or the event is idempotent pointer motion.
// Otherwise ErrNotResent reports that the caller must decide.
func (s *Session) Deliver(ctx context.Context, ev protocol.Event) error {
	err := s.Send(ev)
	if err == nil {
		return nil
	}
	nothingWritten := errors.Is(err, ErrNotConnected)
	if !nothingWritten && !errors.Is(err, ErrSendFailed) {
		return err
	}

	if rerr := s.Reconnect(ctx); rerr != nil {
		return fmt.Errorf("%v; reconnect: %w", err, rerr)
	}
	if nothingWritten || protocol.Idempotent(ev) {
		return s.Send(ev)
	}
	return fmt.Errorf("%w: %s", ErrNotResent, ev.Action())
}

// MoveCursor sends a relative pointer move.
func (s *Session) MoveCursor(dx, dy int) error {
	return s.Send(protocol.PointerMove{DX: dx, DY: dy})
}

// Click sends a pointer button action.
func (s *Session) Click(button protocol.Button, phase protocol.Phase) error {
	return s.Send(protocol.PointerClick{Button: button, Phase: phase})
}

// Scroll sends a scroll delta.
func (s *Session) Scroll(dx, dy int) error {
	return s.Send(protocol.PointerScroll{DX: dx, DY: dy})
}

// TypeText sends a whole string to be typed.
func (s *Session) TypeText(text string) error {
	return s.Send(protocol.TextInput{Text: text})
}

// PressKey sends a key press or release.
func (s *Session) PressKey(key string, phase protocol.Phase) error {
	return s.Send(protocol.KeyAction{Key: key, Phase: phase})
}

// readLoop drains the socket so a peer close or reset is noticed without
// waiting for the next write.
func (s *Session) readLoop(cx *connection) {
	buf := make([]byte, 512)
	for {
		if _, err := cx.conn.Read(buf); err != nil {
			s.drop(cx, err)
			return
		}
	}
}

// drop moves the session to Disconnected if cx is still the active connection.
func (s *Session) drop(cx *connection, cause error) {
	s.mu.Lock()
	notify := func() {}
	isCurrent := s.current == cx
	if isCurrent {
		s.current = nil
		notify = s.setLocked(Disconnected, cause)
	}
	s.mu.Unlock()

	cx.close()
	if isCurrent {
		log.Printf("connection to %s lost id=%s: %v", cx.remote, cx.id, cause)
	}
	notify()
}

// setLocked records the new state and returns a func that notifies listeners.
// Callers hold s.mu and invoke the returned func after unlocking.
func (s *Session) setLocked(next State, cause error) func() {
	if cause != nil {
		s.lastErr = cause
	}
	if s.state == next {
		return func() {}
	}
	s.state = next
	listeners := append([]func(State){}, s.listeners...)
	return func() {
		for _, fn := range listeners {
			fn(next)
		}
	}
}

func (cx *connection) close() {
	cx.closeOnce.Do(func() {
		_ = cx.conn.Close()
	})
}
