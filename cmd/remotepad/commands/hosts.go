package commands

import (
	"context"
	"fmt"
	"log"
	"net/netip"
	"os"
	"strings"
	"time"

	"remotepad/internal/addrutil"
	"remotepad/internal/config"
	"remotepad/internal/discovery"
	"remotepad/internal/mdnsutil"
	"remotepad/internal/store"
)

func newDiscovery(cfg config.Config, window time.Duration) *discovery.Service {
	if window <= 0 {
		window = config.Seconds(cfg.Discovery.BrowseWindowSec)
	}
	return discovery.New(cfg, &discovery.ZeroconfBrowser{Window: window})
}

// browseFor collects advertisements for d and returns the resulting snapshot.
// Static hosts are always included.
func browseFor(ctx context.Context, cfg config.Config, d time.Duration) (store.Snapshot, discovery.Status) {
	svc := newDiscovery(cfg, d)
	if err := svc.Start(nil); err != nil {
		log.Printf("discovery start: %v", err)
	}
	if svc.Status() == discovery.Browsing {
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
		timer.Stop()
	}
	status := svc.Status()
	snap := svc.Snapshot()
	svc.Stop()
	if status == discovery.Unavailable {
		fmt.Fprintln(os.Stderr, "warning: multicast discovery unavailable; showing configured hosts only")
	}
	return snap, status
}

// resolveTarget turns a host argument into a dialable address. It accepts an
// IP literal, a ".local" name, or the hostname/instance of a discovered or
// configured host, each with an optional port.
func resolveTarget(ctx context.Context, cfg config.Config, arg string, timeout time.Duration) (string, uint16, error) {
	host, port, err := addrutil.SplitTarget(arg, 0)
	if err != nil {
		return "", 0, err
	}
	withPort := func(p uint16) uint16 {
		if port != 0 {
			return port
		}
		if p != 0 {
			return p
		}
		return uint16(cfg.Session.DefaultPort)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.String(), withPort(0), nil
	}

	name := host
	if addrutil.IsLocalName(host) {
		addr, err := mdnsutil.Resolve(ctx, host, timeout)
		if err == nil {
			return addr.String(), withPort(0), nil
		}
		log.Printf("mdns lookup %s: %v", host, err)
		name = strings.TrimSuffix(strings.TrimSuffix(host, "."), ".local")
	}

	snap, _ := browseFor(ctx, cfg, timeout)
	rec, ok := snap.FindByHostname(name)
	if !ok {
		return "", 0, fmt.Errorf("host %q not found (%d hosts known)", arg, snap.Len())
	}
	return rec.Address.String(), withPort(rec.Port), nil
}
