package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the full application configuration written to config.yml.
type Config struct {
	DataDir string        `yaml:"data_dir"`
	Service ServiceConfig `yaml:"service"`
	Auth    AuthConfig    `yaml:"auth"`
	LXD     LXDConfig     `yaml:"lxd"`
	Events  EventsConfig  `yaml:"events"`
	Cache   CacheConfig   `yaml:"cache"`
}

type ServiceConfig struct {
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`
	// WebDir is the front end's build directory; empty serves the API only.
	WebDir string `yaml:"web_dir,omitempty"`
}

type AuthConfig struct {
	Mode         string `yaml:"mode"`
	PasswordHash string `yaml:"password_hash,omitempty"`
}

type LXDConfig struct {
	URL           string `yaml:"url"`
	Project       string `yaml:"project"`
	ClientCert    string `yaml:"client_cert,omitempty"`
	ClientKey     string `yaml:"client_key,omitempty"`
	TLSCACertPath string `yaml:"tls_ca_cert,omitempty"`
	TLSSkipVerify bool   `yaml:"tls_skip_verify"`
}

type EventsConfig struct {
	Mode         string   `yaml:"mode"`
	PollInterval Duration `yaml:"poll_interval"`
}

type CacheConfig struct {
	TTL Duration `yaml:"ttl"`
}

// Duration is a time.Duration written as "30s" in YAML.
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Load reads and parses a config file from the given path. Missing
// fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required fields are present and values are in range.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	// Service
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("service.port must be between 1 and 65535")
	}
	if c.Service.BindAddress == "" {
		return fmt.Errorf("service.bind_address is required")
	}

	// Auth mode
	switch c.Auth.Mode {
	case AuthModeNone:
	case AuthModePassword:
		if c.Auth.PasswordHash == "" {
			return fmt.Errorf("auth.password_hash is required when auth.mode is %q", AuthModePassword)
		}
	default:
		return fmt.Errorf("auth.mode must be %q or %q", AuthModeNone, AuthModePassword)
	}

	// Daemon endpoint
	if c.LXD.URL == "" {
		return fmt.Errorf("lxd.url is required")
	}
	u, err := url.Parse(c.LXD.URL)
	if err != nil {
		return fmt.Errorf("lxd.url: %w", err)
	}
	switch u.Scheme {
	case "unix":
		if u.Path == "" {
			return fmt.Errorf("lxd.url must name the socket path")
		}
	case "https":
		if (c.LXD.ClientCert == "") != (c.LXD.ClientKey == "") {
			return fmt.Errorf("lxd.client_cert and lxd.client_key must be set together")
		}
	default:
		return fmt.Errorf("lxd.url must use the unix or https scheme")
	}
	if c.LXD.Project == "" {
		return fmt.Errorf("lxd.project is required")
	}

	// Events
	switch c.Events.Mode {
	case EventsModeEvents, EventsModePoll:
	default:
		return fmt.Errorf("events.mode must be %q or %q", EventsModeEvents, EventsModePoll)
	}
	if time.Duration(c.Events.PollInterval) < 100*time.Millisecond {
		return fmt.Errorf("events.poll_interval must be at least 100ms")
	}

	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}

	return nil
}

// HistoryPath returns the location of the operation history database.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.DataDir, HistoryDBName)
}

// Save writes the config to the given path, creating parent directories as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0640); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}
