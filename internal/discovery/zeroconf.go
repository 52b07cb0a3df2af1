package discovery

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/grandcat/zeroconf"
)

// DefaultBrowseWindow is the length of one browse round.
const DefaultBrowseWindow = 5 * time.Second

// ZeroconfBrowser browses DNS-SD over multicast using grandcat/zeroconf.
//
// A zeroconf resolver reports each instance once per browse and never reports
// removals; goodbye packets are dropped inside the library. Browsing therefore
// runs in rounds of Window with a fresh resolver each time, and every round
// re-reports the hosts still answering. A host that stops answering is removed
// by the service's stale expiry, which defaults to two windows.
type ZeroconfBrowser struct {
	Window time.Duration
}

// Browse implements Browser. It fails only when the first resolver cannot be
// created, e.g. no multicast-capable interface.
func (b *ZeroconfBrowser) Browse(ctx context.Context, service, domain string, out chan<- Advertisement) error {
	window := b.Window
	if window <= 0 {
		window = DefaultBrowseWindow
	}

	resolver, err := zeroconf.NewResolver()
	if err != nil {
		return fmt.Errorf("zeroconf resolver: %w", err)
	}

	for {
		if err := browseRound(ctx, resolver, service, domain, window, out); err != nil {
			log.Printf("browse round failed: %v", err)
			if !sleepCtx(ctx, window) {
				return nil
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		// The resolver shuts down with its browse context.
		if resolver = nextResolver(ctx, window); resolver == nil {
			return nil
		}
	}
}

// nextResolver retries resolver creation once per window until ctx ends.
func nextResolver(ctx context.Context, window time.Duration) *zeroconf.Resolver {
	for {
		resolver, err := zeroconf.NewResolver()
		if err == nil {
			return resolver
		}
		log.Printf("zeroconf resolver: %v", err)
		if !sleepCtx(ctx, window) {
			return nil
		}
	}
}

func browseRound(ctx context.Context, resolver *zeroconf.Resolver, service, domain string, window time.Duration, out chan<- Advertisement) error {
	roundCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 16)
	if err := resolver.Browse(roundCtx, service, domain, entries); err != nil {
		return err
	}

	for {
		select {
		case <-roundCtx.Done():
			return nil
		case e, ok := <-entries:
			if !ok {
				return nil
			}
			if e == nil {
				continue
			}
			select {
			case out <- fromEntry(e):
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func fromEntry(e *zeroconf.ServiceEntry) Advertisement {
	return Advertisement{
		Instance: e.Instance,
		HostName: e.HostName,
		Port:     e.Port,
		Text:     append([]string(nil), e.Text...),
		AddrIPv4: e.AddrIPv4,
		AddrIPv6: e.AddrIPv6,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
