package config

import (
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultServiceType     = "_remotecontrol._tcp"
	DefaultDomain          = "local."
	DefaultBrowseWindowSec = 5
	DefaultCleanupSec      = 1
	// StaleAfterRounds is the default stale timeout in browse windows. A live
	// host is re-reported every window, so a withdrawn one expires after two.
	StaleAfterRounds = 2

	DefaultAttemptTimeoutSec = 5
	DefaultBackoffMs         = 1000
	DefaultMaxAttempts       = 3
	DefaultWriteTimeoutMs    = 2000
	DefaultKeepaliveSec      = 30

	DefaultPort        = 9999
	DefaultSensitivity = 1.5
	DefaultMoveStep    = 10
	DefaultScrollStep  = 3
)

// Config holds discovery, session and pad settings.
type Config struct {
	Discovery DiscoveryConfig `yaml:"discovery"`
	Session   SessionConfig   `yaml:"session"`
	Pad       PadConfig       `yaml:"pad"`
	Hosts     []StaticHost    `yaml:"hosts,omitempty"`
}

// DiscoveryConfig controls LAN browsing.
type DiscoveryConfig struct {
	Enabled         *bool  `yaml:"enabled,omitempty"`
	ServiceType     string `yaml:"service_type"`
	Domain          string `yaml:"domain"`
	BrowseWindowSec int    `yaml:"browse_window_sec"`
	StaleAfterSec   int    `yaml:"stale_after_sec"`
	CleanupSec      int    `yaml:"cleanup_sec"`
}

// SessionConfig holds the connect/retry policy of the control session.
type SessionConfig struct {
	AttemptTimeoutSec int  `yaml:"attempt_timeout_sec"`
	// BackoffMs is the pause between connect attempts; an explicit 0 disables it.
	BackoffMs         *int `yaml:"backoff_ms,omitempty"`
	MaxAttempts       int  `yaml:"max_attempts"`
	WriteTimeoutMs    int  `yaml:"write_timeout_ms"`
	KeepaliveSec      int  `yaml:"keepalive_sec"`
	DefaultPort       int  `yaml:"default_port"`
}

// PadConfig tunes the interactive terminal pad.
type PadConfig struct {
	Sensitivity float64 `yaml:"sensitivity"`
	MoveStep    int     `yaml:"move_step"`
	ScrollStep  int     `yaml:"scroll_step"`
	// AutoResend reconnects and resends pointer motion after a dropped connection.
	AutoResend *bool `yaml:"auto_resend,omitempty"`
}

// StaticHost is a host that is always listed, independent of multicast discovery.
type StaticHost struct {
	Name     string `yaml:"name"`
	Address  string `yaml:"address"`
	Port     int    `yaml:"port"`
	Hostname string `yaml:"hostname,omitempty"`
	System   string `yaml:"system,omitempty"`
}

// Dir returns the remotepad configuration directory.
// Respects XDG_CONFIG_HOME on Unix, APPDATA on Windows.
func Dir() string {
	var base string

	if runtime.GOOS == "windows" {
		base = os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	} else {
		base = os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, _ := os.UserHomeDir()
			base = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(base, "remotepad")
}

// DefaultPath returns the path of config.yaml inside Dir.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns a config with every default applied.
func Default() Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return cfg
}

// Load reads and parses a YAML config file. A missing file yields defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}

	ApplyDefaults(&cfg)
	return cfg, nil
}

// Save writes a YAML config file to disk.
func Save(path string, cfg Config) error {
	ApplyDefaults(&cfg)
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate performs minimal validation of ranges and static hosts.
func Validate(cfg Config) error {
	if cfg.Discovery.ServiceType == "" {
		return fmt.Errorf("discovery.service_type is required")
	}
	if cfg.Discovery.BrowseWindowSec < 1 {
		return fmt.Errorf("discovery.browse_window_sec must be >= 1")
	}
	if cfg.Discovery.StaleAfterSec < cfg.Discovery.BrowseWindowSec {
		return fmt.Errorf("discovery.stale_after_sec must be >= browse_window_sec (%d)", cfg.Discovery.BrowseWindowSec)
	}
	if cfg.Session.MaxAttempts < 1 {
		return fmt.Errorf("session.max_attempts must be >= 1")
	}
	if cfg.Session.AttemptTimeoutSec < 1 {
		return fmt.Errorf("session.attempt_timeout_sec must be >= 1")
	}
	if cfg.Session.BackoffMs != nil && *cfg.Session.BackoffMs < 0 {
		return fmt.Errorf("session.backoff_ms must be >= 0")
	}
	if cfg.Session.DefaultPort < 1 || cfg.Session.DefaultPort > 65535 {
		return fmt.Errorf("session.default_port out of range: %d", cfg.Session.DefaultPort)
	}
	if cfg.Pad.Sensitivity <= 0 {
		return fmt.Errorf("pad.sensitivity must be > 0")
	}
	seen := map[string]bool{}
	for i, h := range cfg.Hosts {
		if h.Name == "" {
			return fmt.Errorf("hosts[%d].name is required", i)
		}
		if seen[h.Name] {
			return fmt.Errorf("hosts[%d].name %q is duplicated", i, h.Name)
		}
		seen[h.Name] = true
		if _, err := netip.ParseAddr(h.Address); err != nil {
			return fmt.Errorf("hosts[%d].address: %w", i, err)
		}
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("hosts[%d].port out of range: %d", i, h.Port)
		}
	}
	return nil
}

// ApplyDefaults fills in default values when empty.
func ApplyDefaults(cfg *Config) {
	d := &cfg.Discovery
	if d.Enabled == nil {
		enabled := true
		d.Enabled = &enabled
	}
	if d.ServiceType == "" {
		d.ServiceType = DefaultServiceType
	}
	if d.Domain == "" {
		d.Domain = DefaultDomain
	}
	if d.BrowseWindowSec == 0 {
		d.BrowseWindowSec = DefaultBrowseWindowSec
	}
	if d.StaleAfterSec == 0 {
		d.StaleAfterSec = StaleAfterRounds * d.BrowseWindowSec
	}
	if d.CleanupSec == 0 {
		d.CleanupSec = DefaultCleanupSec
	}

	s := &cfg.Session
	if s.AttemptTimeoutSec == 0 {
		s.AttemptTimeoutSec = DefaultAttemptTimeoutSec
	}
	if s.BackoffMs == nil {
		backoff := DefaultBackoffMs
		s.BackoffMs = &backoff
	}
	if s.MaxAttempts == 0 {
		s.MaxAttempts = DefaultMaxAttempts
	}
	if s.WriteTimeoutMs == 0 {
		s.WriteTimeoutMs = DefaultWriteTimeoutMs
	}
	if s.KeepaliveSec == 0 {
		s.KeepaliveSec = DefaultKeepaliveSec
	}
	if s.DefaultPort == 0 {
		s.DefaultPort = DefaultPort
	}

	p := &cfg.Pad
	if p.Sensitivity == 0 {
		p.Sensitivity = DefaultSensitivity
	}
	if p.MoveStep == 0 {
		p.MoveStep = DefaultMoveStep
	}
	if p.ScrollStep == 0 {
		p.ScrollStep = DefaultScrollStep
	}
	if p.AutoResend == nil {
		resend := true
		p.AutoResend = &resend
	}

	for i := range cfg.Hosts {
		if cfg.Hosts[i].Port == 0 {
			cfg.Hosts[i].Port = s.DefaultPort
		}
	}
}

// Seconds converts a *_sec field to a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Millis converts a *_ms field to a duration.
func Millis(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
