package model

import (
	"net/netip"
	"time"
)

const (
	SourceMDNS   = "mdns"
	SourceStatic = "static"
)

// Defaults used when an advertisement omits a TXT key.
const (
	UnknownHostname = "Unknown"
	UnknownSystem   = "Unknown"
	DefaultVersion  = "1.0"
)

// HostRecord identifies one advertised remote-control host.
// Records are replaced wholesale on update; never mutate one held in a snapshot.
type HostRecord struct {
	ID              string     `yaml:"id" json:"id"`
	Instance        string     `yaml:"instance" json:"instance"`
	Address         netip.Addr `yaml:"address" json:"address"`
	Port            uint16     `yaml:"port" json:"port"`
	Hostname        string     `yaml:"hostname" json:"hostname"`
	System          string     `yaml:"system" json:"system"`
	ProtocolVersion string     `yaml:"version" json:"version"`
	Source          string     `yaml:"source" json:"source"`
	SeenAt          time.Time  `yaml:"seen_at" json:"seen_at"`
}

// Label is the one-line display form used by listings.
func (h HostRecord) Label() string {
	return h.Hostname + " (" + h.System + ") v" + h.ProtocolVersion
}

// SendSample is one frame write attempt recorded by a session.
type SendSample struct {
	Timestamp    time.Time
	ConnectionID string
	Remote       string
	Action       string
	Bytes        int
	WriteMs      float64
	OK           bool
	Error        string
}
