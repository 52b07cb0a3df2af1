package store

import (
	"encoding/json"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"remotepad/internal/model"
)

// Registry holds the known hosts. Writers serialize on mu and publish a fresh
// immutable Snapshot; readers load the current snapshot without locking.
type Registry struct {
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
}

// Snapshot is a read-only view of the registry at one point in time.
type Snapshot struct {
	UpdatedAt time.Time
	hosts     map[string]model.HostRecord
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.current.Store(&Snapshot{hosts: map[string]model.HostRecord{}})
	return r
}

// Snapshot returns the current view.
func (r *Registry) Snapshot() Snapshot {
	return *r.current.Load()
}

// Upsert inserts rec or replaces the record with the same ID wholesale.
// It reports whether the registry changed.
func (r *Registry) Upsert(rec model.HostRecord) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.current.Load()
	if old, ok := prev.hosts[rec.ID]; ok && sameRecord(old, rec) {
		return *prev, false
	}
	next := prev.clone()
	next.hosts[rec.ID] = rec
	r.current.Store(next)
	return *next, true
}

// Remove deletes the record with id. It reports whether anything was removed.
func (r *Registry) Remove(id string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.current.Load()
	if _, ok := prev.hosts[id]; !ok {
		return *prev, false
	}
	next := prev.clone()
	delete(next.hosts, id)
	r.current.Store(next)
	return *next, true
}

// RemoveIf deletes every record matching fn and returns the removed IDs.
func (r *Registry) RemoveIf(fn func(model.HostRecord) bool) (Snapshot, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.current.Load()
	var removed []string
	for id, rec := range prev.hosts {
		if fn(rec) {
			removed = append(removed, id)
		}
	}
	if len(removed) == 0 {
		return *prev, nil
	}
	next := prev.clone()
	for _, id := range removed {
		delete(next.hosts, id)
	}
	r.current.Store(next)
	sort.Strings(removed)
	return *next, removed
}

func (s *Snapshot) clone() *Snapshot {
	hosts := make(map[string]model.HostRecord, len(s.hosts)+1)
	for id, rec := range s.hosts {
		hosts[id] = rec
	}
	return &Snapshot{UpdatedAt: time.Now().UTC(), hosts: hosts}
}

// Len returns the number of hosts.
func (s Snapshot) Len() int {
	return len(s.hosts)
}

// Get returns the host with id.
func (s Snapshot) Get(id string) (model.HostRecord, bool) {
	rec, ok := s.hosts[id]
	return rec, ok
}

// Hosts returns a copy of all records ordered by hostname, then ID.
func (s Snapshot) Hosts() []model.HostRecord {
	out := make([]model.HostRecord, 0, len(s.hosts))
	for _, rec := range s.hosts {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Hostname != out[j].Hostname {
			return out[i].Hostname < out[j].Hostname
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// FindByHostname returns the first host whose hostname or instance matches name (case-insensitive).
func (s Snapshot) FindByHostname(name string) (model.HostRecord, bool) {
	for _, rec := range s.Hosts() {
		if strings.EqualFold(rec.Hostname, name) || strings.EqualFold(rec.Instance, name) {
			return rec, true
		}
	}
	return model.HostRecord{}, false
}

type listing struct {
	UpdatedAt time.Time          `yaml:"updated_at" json:"updated_at"`
	Hosts     []model.HostRecord `yaml:"hosts" json:"hosts"`
}

// WriteYAML writes the snapshot as a YAML document.
func (s Snapshot) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(listing{UpdatedAt: s.UpdatedAt, Hosts: s.Hosts()}); err != nil {
		return err
	}
	return enc.Close()
}

// WriteJSON writes the snapshot as indented JSON.
func (s Snapshot) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(listing{UpdatedAt: s.UpdatedAt, Hosts: s.Hosts()})
}

// sameRecord ignores SeenAt so refreshes of an unchanged advertisement do not churn callbacks.
func sameRecord(a, b model.HostRecord) bool {
	a.SeenAt = time.Time{}
	b.SeenAt = time.Time{}
	return a == b
}
