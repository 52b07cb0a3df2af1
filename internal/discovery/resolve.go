package discovery

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"
	"unicode/utf8"

	"remotepad/internal/config"
	"remotepad/internal/model"
)

var (
	ErrNoAddress = errors.New("advertisement has no usable address")
	ErrBadPort   = errors.New("advertisement has invalid port")
	ErrBadTXT    = errors.New("advertisement has malformed txt record")
)

// TXT keys published by remote-control hosts.
const (
	txtHostname = "hostname"
	txtSystem   = "system"
	txtVersion  = "version"
)

// resolveAdvertisement turns a seen advertisement into a registry record.
func resolveAdvertisement(ad Advertisement, now time.Time) (model.HostRecord, error) {
	if ad.Instance == "" {
		return model.HostRecord{}, fmt.Errorf("empty instance name")
	}
	if ad.Port <= 0 || ad.Port > 65535 {
		return model.HostRecord{}, fmt.Errorf("%w: %d", ErrBadPort, ad.Port)
	}
	addr, ok := pickAddress(ad.AddrIPv4, ad.AddrIPv6)
	if !ok {
		return model.HostRecord{}, ErrNoAddress
	}
	txt, err := parseTXT(ad.Text)
	if err != nil {
		return model.HostRecord{}, err
	}

	rec := model.HostRecord{
		ID:              ad.Instance,
		Instance:        ad.Instance,
		Address:         addr,
		Port:            uint16(ad.Port),
		Hostname:        txtOr(txt, txtHostname, model.UnknownHostname),
		System:          txtOr(txt, txtSystem, model.UnknownSystem),
		ProtocolVersion: txtOr(txt, txtVersion, model.DefaultVersion),
		Source:          model.SourceMDNS,
		SeenAt:          now.UTC(),
	}
	return rec, nil
}

// pickAddress prefers IPv4, then a routable IPv6, then link-local IPv6.
func pickAddress(v4, v6 []net.IP) (netip.Addr, bool) {
	for _, ip := range v4 {
		if a, ok := netip.AddrFromSlice(ip.To4()); ok && a.IsValid() && !a.IsUnspecified() {
			return a, true
		}
	}
	var linkLocal netip.Addr
	for _, ip := range v6 {
		a, ok := netip.AddrFromSlice(ip.To16())
		if !ok || a.IsUnspecified() {
			continue
		}
		if a.Is4In6() {
			return a.Unmap(), true
		}
		if a.IsLinkLocalUnicast() {
			if !linkLocal.IsValid() {
				linkLocal = a
			}
			continue
		}
		return a, true
	}
	return linkLocal, linkLocal.IsValid()
}

// parseTXT reads key=value strings. Keys are case-insensitive; the first
// occurrence wins. Bare keys are boolean attributes and carry no value.
func parseTXT(records []string) (map[string]string, error) {
	out := make(map[string]string, len(records))
	for _, r := range records {
		if !utf8.ValidString(r) {
			return nil, fmt.Errorf("%w: %q", ErrBadTXT, r)
		}
		key, value, found := strings.Cut(r, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			if found {
				return nil, fmt.Errorf("%w: %q", ErrBadTXT, r)
			}
			continue
		}
		if _, dup := out[key]; dup || !found {
			continue
		}
		out[key] = value
	}
	return out, nil
}

func txtOr(txt map[string]string, key, fallback string) string {
	if v := strings.TrimSpace(txt[key]); v != "" {
		return v
	}
	return fallback
}

// staticRecords converts configured hosts. Entries that fail to parse are logged by the caller.
func staticRecords(hosts []config.StaticHost, now time.Time) ([]model.HostRecord, []error) {
	var (
		out  []model.HostRecord
		errs []error
	)
	for _, h := range hosts {
		addr, err := netip.ParseAddr(h.Address)
		if err != nil {
			errs = append(errs, fmt.Errorf("static host %q: %w", h.Name, err))
			continue
		}
		port := h.Port
		if port == 0 {
			port = config.DefaultPort
		}
		if port < 0 || port > 65535 {
			errs = append(errs, fmt.Errorf("static host %q: %w: %d", h.Name, ErrBadPort, port))
			continue
		}
		hostname := h.Hostname
		if hostname == "" {
			hostname = h.Name
		}
		system := h.System
		if system == "" {
			system = model.UnknownSystem
		}
		out = append(out, model.HostRecord{
			ID:              "static/" + h.Name,
			Instance:        h.Name,
			Address:         addr.Unmap(),
			Port:            uint16(port),
			Hostname:        hostname,
			System:          system,
			ProtocolVersion: model.DefaultVersion,
			Source:          model.SourceStatic,
			SeenAt:          now.UTC(),
		})
	}
	return out, errs
}
