package discovery

import (
	"net"

	"github.com/grandcat/zeroconf"
)

func zeroconfEntry(instance string, ttl uint32) *zeroconf.ServiceEntry {
	e := zeroconf.NewServiceEntry(instance, "_remotecontrol._tcp", "local.")
	e.HostName = instance + ".local."
	e.Port = 9999
	e.Text = []string{"hostname=" + instance}
	e.TTL = ttl
	e.AddrIPv4 = []net.IP{net.ParseIP("192.168.1.5")}
	return e
}
