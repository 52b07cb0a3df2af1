// Package discovery keeps a live registry of remote-control hosts found on
// the local network and reports every change as an immutable snapshot.
package discovery

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"remotepad/internal/config"
	"remotepad/internal/model"
	"remotepad/internal/store"
)

// Status is the browsing state of a Service.
type Status int

const (
	Idle Status = iota
	Browsing
	Unavailable
	Stopped
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Browsing:
		return "browsing"
	case Unavailable:
		return "unavailable"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var (
	ErrAlreadyStarted = errors.New("discovery already started")
	ErrStopped        = errors.New("discovery stopped")
)

// Service browses for hosts and owns the registry.
type Service struct {
	cfg     config.Config
	browser Browser
	reg     *store.Registry

	staleAfter time.Duration
	cleanup    time.Duration

	// notify is set by Start before any producer runs and never changes.
	notify chan struct{}

	mu         sync.Mutex
	status     Status
	started    bool
	stopped    bool
	inCallback bool
	cancel     context.CancelFunc
	delivered  chan struct{}
	lastSeen   map[string]time.Time

	wg sync.WaitGroup
}

// New creates a service. A nil browser, or discovery disabled in cfg, limits
// the registry to the configured static hosts.
func New(cfg config.Config, browser Browser) *Service {
	config.ApplyDefaults(&cfg)
	return &Service{
		cfg:        cfg,
		browser:    browser,
		reg:        store.NewRegistry(),
		staleAfter: config.Seconds(cfg.Discovery.StaleAfterSec),
		cleanup:    config.Seconds(cfg.Discovery.CleanupSec),
		lastSeen:   map[string]time.Time{},
	}
}

// SetExpiry overrides the stale timeout and the cleanup interval.
func (s *Service) SetExpiry(staleAfter, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if staleAfter > 0 {
		s.staleAfter = staleAfter
	}
	if interval > 0 {
		s.cleanup = interval
	}
}

// Start begins browsing in the background and returns immediately.
//
// onChange runs on a single delivery goroutine, so calls never overlap. Each
// call receives the latest snapshot; changes that land while a call is running
// are folded into the next one. onChange may call Stop.
//
// A browser that cannot initialize leaves the service Unavailable; Start
// still returns nil.
func (s *Service) Start(onChange func(store.Snapshot)) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	if onChange != nil {
		s.notify = make(chan struct{}, 1)
		s.delivered = make(chan struct{})
		go s.deliverLoop(ctx, onChange, s.notify, s.delivered)
	}
	browse := s.browser != nil && s.cfg.Discovery.Enabled != nil && *s.cfg.Discovery.Enabled
	if browse {
		s.status = Browsing
		s.wg.Add(2)
	}
	s.mu.Unlock()

	recs, errs := staticRecords(s.cfg.Hosts, time.Now())
	for _, err := range errs {
		log.Printf("skip %v", err)
	}
	changed := false
	for _, rec := range recs {
		if _, ok := s.reg.Upsert(rec); ok {
			changed = true
		}
	}
	if changed {
		s.emit()
	}

	if browse {
		go s.browseLoop(ctx)
		go s.cleanupLoop(ctx)
	}
	return nil
}

// Stop cancels browsing and waits for the background goroutines. No callback
// starts after Stop returns. It is safe to call repeatedly, before Start, and
// from inside onChange; in the last case it does not wait for the running
// callback.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.status = Stopped
	cancel := s.cancel
	delivered := s.delivered
	inCallback := s.inCallback
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	if delivered != nil && !inCallback {
		<-delivered
	}
}

// Snapshot returns the current registry view.
func (s *Service) Snapshot() store.Snapshot {
	return s.reg.Snapshot()
}

// Status returns the browsing state.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Available reports whether multicast browsing could be used.
func (s *Service) Available() bool {
	return s.Status() != Unavailable
}

func (s *Service) browseLoop(ctx context.Context) {
	defer s.wg.Done()

	ads := make(chan Advertisement, 32)
	errCh := make(chan error, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		errCh <- s.browser.Browse(ctx, s.cfg.Discovery.ServiceType, s.cfg.Discovery.Domain, ads)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ad := <-ads:
			s.handle(ad)
		case err := <-errCh:
			s.drain(ads)
			if err != nil && ctx.Err() == nil {
				log.Printf("discovery unavailable: %v", err)
				s.setStatus(Unavailable)
			} else if ctx.Err() == nil {
				s.setStatus(Idle)
			}
			return
		}
	}
}

func (s *Service) drain(ads <-chan Advertisement) {
	for {
		select {
		case ad := <-ads:
			s.handle(ad)
		default:
			return
		}
	}
}

func (s *Service) handle(ad Advertisement) {
	if ad.Withdrawn {
		s.mu.Lock()
		delete(s.lastSeen, ad.Instance)
		s.mu.Unlock()
		if _, ok := s.reg.Remove(ad.Instance); ok {
			log.Printf("host removed instance=%q", ad.Instance)
			s.emit()
		}
		return
	}

	now := time.Now()
	rec, err := resolveAdvertisement(ad, now)
	if err != nil {
		log.Printf("skip advertisement instance=%q: %v", ad.Instance, err)
		return
	}

	s.mu.Lock()
	s.lastSeen[rec.ID] = now
	s.mu.Unlock()
	if _, ok := s.reg.Upsert(rec); ok {
		log.Printf("host updated instance=%q addr=%s port=%d", rec.Instance, rec.Address, rec.Port)
		s.emit()
	}
}

func (s *Service) cleanupLoop(ctx context.Context) {
	defer s.wg.Done()

	s.mu.Lock()
	interval := s.cleanup
	s.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.purgeStale(time.Now())
		}
	}
}

// purgeStale removes discovered hosts not seen within staleAfter. Static hosts never expire.
func (s *Service) purgeStale(now time.Time) {
	s.mu.Lock()
	cutoff := now.Add(-s.staleAfter)
	// The predicate runs under s.mu, so a sighting recorded by handle either
	// lands before the check and keeps the host, or after it and re-adds it.
	_, removed := s.reg.RemoveIf(func(rec model.HostRecord) bool {
		if rec.Source != model.SourceMDNS {
			return false
		}
		seen, ok := s.lastSeen[rec.ID]
		return !ok || seen.Before(cutoff)
	})
	for _, id := range removed {
		delete(s.lastSeen, id)
	}
	s.mu.Unlock()

	if len(removed) > 0 {
		log.Printf("expired hosts count=%d", len(removed))
		s.emit()
	}
}

// emit wakes the delivery goroutine. It never blocks; a pending wakeup
// already covers this change.
func (s *Service) emit() {
	if s.notify == nil {
		return
	}
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Service) deliverLoop(ctx context.Context, fn func(store.Snapshot), notify <-chan struct{}, delivered chan<- struct{}) {
	defer close(delivered)
	for {
		select {
		case <-ctx.Done():
			return
		case <-notify:
		}

		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		s.inCallback = true
		s.mu.Unlock()

		fn(s.reg.Snapshot())

		s.mu.Lock()
		s.inCallback = false
		s.mu.Unlock()
	}
}

func (s *Service) setStatus(st Status) {
	s.mu.Lock()
	if s.status != Stopped {
		s.status = st
	}
	s.mu.Unlock()
}
