package store

import (
	"bytes"
	"net/netip"
	"strings"
	"sync"
	"testing"

	"gopkg.in/yaml.v3"

	"remotepad/internal/model"
)

func host(id, addr, hostname string) model.HostRecord {
	return model.HostRecord{
		ID:              id,
		Address:         netip.MustParseAddr(addr),
		Port:            9999,
		Hostname:        hostname,
		System:          "Linux",
		ProtocolVersion: "1.2",
		Source:          model.SourceMDNS,
	}
}

func TestRegistry_UpsertReplacesSameID(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	if _, changed := reg.Upsert(host("a", "192.168.1.5", "desktop-1")); !changed {
		t.Fatal("first upsert should change registry")
	}
	snap, changed := reg.Upsert(host("a", "192.168.1.6", "desktop-1"))
	if !changed {
		t.Fatal("address change should change registry")
	}
	if snap.Len() != 1 {
		t.Fatalf("len=%d", snap.Len())
	}
	got, ok := snap.Get("a")
	if !ok || got.Address.String() != "192.168.1.6" {
		t.Fatalf("record=%+v ok=%v", got, ok)
	}
}

func TestRegistry_UpsertUnchangedIsNoop(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Upsert(host("a", "192.168.1.5", "desktop-1"))
	if _, changed := reg.Upsert(host("a", "192.168.1.5", "desktop-1")); changed {
		t.Fatal("identical upsert reported a change")
	}
}

func TestRegistry_RemoveDropsID(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Upsert(host("a", "192.168.1.5", "desktop-1"))
	reg.Upsert(host("b", "192.168.1.7", "laptop"))

	snap, removed := reg.Remove("a")
	if !removed {
		t.Fatal("expected removal")
	}
	if _, ok := snap.Get("a"); ok {
		t.Fatal("removed id still present")
	}
	if snap.Len() != 1 {
		t.Fatalf("len=%d", snap.Len())
	}
	if _, removed := reg.Remove("a"); removed {
		t.Fatal("second removal should be a no-op")
	}
}

func TestRegistry_SnapshotsAreImmutable(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Upsert(host("a", "192.168.1.5", "desktop-1"))
	before := reg.Snapshot()
	reg.Upsert(host("b", "192.168.1.7", "laptop"))
	reg.Remove("a")

	if before.Len() != 1 {
		t.Fatalf("old snapshot len=%d", before.Len())
	}
	if _, ok := before.Get("a"); !ok {
		t.Fatal("old snapshot lost record")
	}
	hosts := before.Hosts()
	hosts[0].Hostname = "mutated"
	if got, _ := before.Get("a"); got.Hostname != "desktop-1" {
		t.Fatalf("Hosts() leaked internal state: %+v", got)
	}
}

func TestRegistry_RemoveIf(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Upsert(host("a", "192.168.1.5", "desktop-1"))
	static := host("static/lab", "10.0.0.2", "lab")
	static.Source = model.SourceStatic
	reg.Upsert(static)

	snap, removed := reg.RemoveIf(func(rec model.HostRecord) bool { return rec.Source == model.SourceMDNS })
	if len(removed) != 1 || removed[0] != "a" {
		t.Fatalf("removed=%v", removed)
	}
	if snap.Len() != 1 {
		t.Fatalf("len=%d", snap.Len())
	}
}

func TestRegistry_ConcurrentWriters(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			reg.Upsert(host(id, "192.168.1.5", id))
			_ = reg.Snapshot().Hosts()
		}(i)
	}
	wg.Wait()
	if n := reg.Snapshot().Len(); n != 16 {
		t.Fatalf("len=%d", n)
	}
}

func TestSnapshot_FindAndOrder(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Upsert(host("z", "192.168.1.9", "zeta"))
	reg.Upsert(host("a", "192.168.1.5", "Desktop-1"))
	snap := reg.Snapshot()

	hosts := snap.Hosts()
	if hosts[0].ID != "a" || hosts[1].ID != "z" {
		t.Fatalf("order=%v,%v", hosts[0].ID, hosts[1].ID)
	}
	rec, ok := snap.FindByHostname("desktop-1")
	if !ok || rec.ID != "a" {
		t.Fatalf("find=%+v ok=%v", rec, ok)
	}
	if _, ok := snap.FindByHostname("missing"); ok {
		t.Fatal("unexpected match")
	}
}

func TestSnapshot_WriteYAML(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Upsert(host("a", "192.168.1.5", "desktop-1"))

	var buf bytes.Buffer
	if err := reg.Snapshot().WriteYAML(&buf); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	if !strings.Contains(buf.String(), "address: 192.168.1.5") {
		t.Fatalf("yaml=%s", buf.String())
	}

	var out struct {
		Hosts []struct {
			ID       string `yaml:"id"`
			Hostname string `yaml:"hostname"`
			Port     int    `yaml:"port"`
		} `yaml:"hosts"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(out.Hosts) != 1 || out.Hosts[0].Hostname != "desktop-1" || out.Hosts[0].Port != 9999 {
		t.Fatalf("hosts=%+v", out.Hosts)
	}
}
