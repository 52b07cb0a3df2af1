package discovery

import (
	"context"
	"net"
)

// Advertisement is one DNS-SD observation. A withdrawn advertisement only
// carries Instance; browsers that cannot observe removals never send one.
type Advertisement struct {
	Instance  string
	HostName  string
	Port      int
	Text      []string
	AddrIPv4  []net.IP
	AddrIPv6  []net.IP
	Withdrawn bool
}

// Browser streams advertisements for service in domain until ctx ends.
// Browse must return promptly once ctx is done and must not send on out
// after that. A non-nil error that is not caused by ctx means browsing could
// not run at all.
type Browser interface {
	Browse(ctx context.Context, service, domain string, out chan<- Advertisement) error
}
