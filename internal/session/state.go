package session

import (
	"errors"
	"time"

	"remotepad/internal/config"
)

// State is the connection state of a Session.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	// ErrNotConnected is returned by Send when no connection is open. Nothing was written.
	ErrNotConnected = errors.New("not connected")
	// ErrNoPriorAddress is returned by Reconnect before any Connect.
	ErrNoPriorAddress = errors.New("no previous host to reconnect to")
	// ErrConnectFailed wraps the last dial error once every attempt failed.
	ErrConnectFailed = errors.New("connect failed")
	// ErrConnectAborted is returned when Disconnect or ctx cancels a connect in progress.
	ErrConnectAborted = errors.New("connect aborted")
	// ErrSendFailed wraps a write error; the session has moved to Disconnected.
	ErrSendFailed = errors.New("send failed")
	// ErrNotResent is returned by Deliver when the session was restored but the
	// event is unsafe to repeat and was therefore not sent again.
	ErrNotResent = errors.New("reconnected; event not resent")
)

// Policy holds the connect and write timing of a Session.
type Policy struct {
	AttemptTimeout time.Duration
	Backoff        time.Duration
	MaxAttempts    int
	WriteTimeout   time.Duration
	KeepAlive      time.Duration
}

// DefaultPolicy returns the stock policy: 3 attempts of 5s, 1s apart.
func DefaultPolicy() Policy {
	return PolicyFromConfig(config.Default().Session)
}

// PolicyFromConfig converts the YAML session section.
func PolicyFromConfig(cfg config.SessionConfig) Policy {
	backoff := config.DefaultBackoffMs
	if cfg.BackoffMs != nil {
		backoff = *cfg.BackoffMs
	}
	return Policy{
		AttemptTimeout: config.Seconds(cfg.AttemptTimeoutSec),
		Backoff:        config.Millis(backoff),
		MaxAttempts:    cfg.MaxAttempts,
		WriteTimeout:   config.Millis(cfg.WriteTimeoutMs),
		KeepAlive:      config.Seconds(cfg.KeepaliveSec),
	}
}

// WorstCaseConnect is the longest a Connect call can block.
func (p Policy) WorstCaseConnect() time.Duration {
	if p.MaxAttempts < 1 {
		return 0
	}
	return p.AttemptTimeout*time.Duration(p.MaxAttempts) + p.Backoff*time.Duration(p.MaxAttempts-1)
}

func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.AttemptTimeout <= 0 {
		p.AttemptTimeout = def.AttemptTimeout
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.WriteTimeout <= 0 {
		p.WriteTimeout = def.WriteTimeout
	}
	return p
}
