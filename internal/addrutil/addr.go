package addrutil

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Target joins host and port into a dialable "host:port" string, bracketing IPv6 literals.
func Target(host string, port uint16) string {
	return net.JoinHostPort(strings.Trim(host, "[]"), strconv.Itoa(int(port)))
}

// SplitTarget parses "host", "host:port", "[v6]:port" or an unbracketed "v6:port".
// When no port is present defaultPort is used.
func SplitTarget(value string, defaultPort uint16) (string, uint16, error) {
	a := strings.TrimSpace(value)
	if a == "" {
		return "", 0, fmt.Errorf("empty address")
	}

	// Fast path: "host:port" (IPv4, name or bracketed IPv6).
	if h, p, err := net.SplitHostPort(a); err == nil {
		port, err := parsePort(p)
		if err != nil {
			return "", 0, err
		}
		return h, port, nil
	}

	// Unbracketed IPv6 "addr:port": peel off the last ":port" only when the rest still parses
	// as an IP, otherwise the whole value is a bare IPv6 address.
	if strings.Count(a, ":") > 1 && !strings.HasPrefix(a, "[") {
		if last := strings.LastIndexByte(a, ':'); last > 0 && last < len(a)-1 {
			host := a[:last]
			if net.ParseIP(host) != nil && net.ParseIP(a) == nil {
				port, err := parsePort(a[last+1:])
				if err == nil {
					return host, port, nil
				}
			}
		}
		return strings.Trim(a, "[]"), defaultPort, nil
	}

	if strings.HasPrefix(a, "[") && strings.HasSuffix(a, "]") {
		return strings.Trim(a, "[]"), defaultPort, nil
	}
	return a, defaultPort, nil
}

// IsLocalName reports whether host is an mDNS ".local" name rather than an IP literal.
func IsLocalName(host string) bool {
	h := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	return strings.HasSuffix(h, ".local") && net.ParseIP(h) == nil
}

func parsePort(value string) (uint16, error) {
	n, err := strconv.ParseUint(value, 10, 16)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid port %q", value)
	}
	return uint16(n), nil
}
