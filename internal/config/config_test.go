package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{}
	ApplyDefaults(&cfg)

	if cfg.Discovery.ServiceType != DefaultServiceType || cfg.Discovery.Domain != DefaultDomain {
		t.Fatalf("discovery defaults not set: %+v", cfg.Discovery)
	}
	if cfg.Discovery.Enabled == nil || !*cfg.Discovery.Enabled {
		t.Fatalf("discovery.enabled default not true")
	}
	if cfg.Session.AttemptTimeoutSec != 5 || *cfg.Session.BackoffMs != 1000 || cfg.Session.MaxAttempts != 3 {
		t.Fatalf("session=%+v", cfg.Session)
	}
	if cfg.Discovery.StaleAfterSec != StaleAfterRounds*cfg.Discovery.BrowseWindowSec {
		t.Fatalf("stale_after_sec=%d window=%d", cfg.Discovery.StaleAfterSec, cfg.Discovery.BrowseWindowSec)
	}
	if cfg.Pad.Sensitivity != 1.5 {
		t.Fatalf("sensitivity=%v", cfg.Pad.Sensitivity)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
}

func TestValidate_StaticHosts(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Hosts = []StaticHost{{Name: "lab", Address: "not-an-ip", Port: 9999}}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for bad address")
	}

	cfg.Hosts = []StaticHost{{Name: "lab", Address: "10.0.0.2"}, {Name: "lab", Address: "10.0.0.3"}}
	ApplyDefaults(&cfg)
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for duplicate name")
	}

	cfg.Hosts = cfg.Hosts[:1]
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if cfg.Hosts[0].Port != DefaultPort {
		t.Fatalf("port=%d", cfg.Hosts[0].Port)
	}
}

func TestValidate_Session(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Session.MaxAttempts = -1
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.MaxAttempts != DefaultMaxAttempts {
		t.Fatalf("max_attempts=%d", cfg.Session.MaxAttempts)
	}
}

func TestLoad_PartialFileKeepsOverrides(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("session:\n  max_attempts: 5\n  backoff_ms: 250\nhosts:\n  - name: lab\n    address: 10.0.0.2\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.MaxAttempts != 5 || Millis(*cfg.Session.BackoffMs) != 250*time.Millisecond {
		t.Fatalf("session=%+v", cfg.Session)
	}
	if cfg.Session.AttemptTimeoutSec != DefaultAttemptTimeoutSec {
		t.Fatalf("attempt_timeout_sec=%d", cfg.Session.AttemptTimeoutSec)
	}
	if len(cfg.Hosts) != 1 || cfg.Hosts[0].Port != DefaultPort {
		t.Fatalf("hosts=%+v", cfg.Hosts)
	}
}

func TestSave_Writes0600(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	path := filepath.Join(tmp, "nested", "config.yaml")
	if err := Save(path, Config{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode=%o", info.Mode().Perm())
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Discovery.ServiceType != DefaultServiceType {
		t.Fatalf("service_type=%q", cfg.Discovery.ServiceType)
	}
}

func TestLoad_ExplicitZeroBackoffIsKept(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("session:\n  backoff_ms: 0\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.BackoffMs == nil || *cfg.Session.BackoffMs != 0 {
		t.Fatalf("backoff_ms=%v", cfg.Session.BackoffMs)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	again, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if again.Session.BackoffMs == nil || *again.Session.BackoffMs != 0 {
		t.Fatalf("backoff_ms after save=%v", again.Session.BackoffMs)
	}
}

func TestValidate_StaleShorterThanWindow(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Discovery.BrowseWindowSec = 10
	cfg.Discovery.StaleAfterSec = 5
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error")
	}
}
