package installer

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/battlewithbytes/lxd-console/internal/config"
)

// customEndpoint is the endpoint choice for a URL typed by hand.
const customEndpoint = "__custom__"

// InstallerAnswers holds raw string values from the TUI form.
// Numeric fields are strings because huh.Input binds to *string.
type InstallerAnswers struct {
	// Daemon
	EndpointChoice string // discovered URL or customEndpoint
	CustomURL      string
	Project        string
	ClientCert     string
	ClientKey      string
	TLSCACert      string
	TLSSkipVerify  bool

	// Service
	BindAddress string
	PortStr     string
	WebDir      string
	DataDir     string

	// Auth
	AuthMode        string
	Password        string
	PasswordConfirm string

	// Events
	EventsMode      string
	PollIntervalStr string
	CacheTTLStr     string

	// Confirmation
	Confirmed bool
}

// DefaultAnswers pre-fills the form from config defaults and discovery.
func DefaultAnswers(res *DiscoveredResources) *InstallerAnswers {
	a := &InstallerAnswers{
		EndpointChoice:  customEndpoint,
		CustomURL:       config.DefaultLXDURL,
		Project:         config.DefaultLXDProject,
		BindAddress:     config.DefaultBindAddress,
		PortStr:         strconv.Itoa(config.DefaultPort),
		DataDir:         config.DefaultDataDir,
		AuthMode:        config.AuthModePassword,
		EventsMode:      config.EventsModeEvents,
		PollIntervalStr: config.DefaultPollInterval.String(),
		CacheTTLStr:     config.DefaultCacheTTL.String(),
	}
	if res != nil && len(res.Daemons) > 0 {
		a.EndpointChoice = res.Daemons[0].URL
	}
	return a
}

// EffectiveURL returns the daemon URL from the answers.
func (a *InstallerAnswers) EffectiveURL() string {
	if a.EndpointChoice == customEndpoint {
		return strings.TrimSpace(a.CustomURL)
	}
	return a.EndpointChoice
}

// IsRemote reports whether the chosen endpoint needs TLS settings.
func (a *InstallerAnswers) IsRemote() bool {
	return strings.HasPrefix(a.EffectiveURL(), "https://")
}

// ToConfig converts the answers into a validated config. The password is
// stored as a bcrypt hash.
func (a *InstallerAnswers) ToConfig() (*config.Config, error) {
	port, err := strconv.Atoi(strings.TrimSpace(a.PortStr))
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("port must be 1-65535, got %q", a.PortStr)
	}
	poll, err := time.ParseDuration(strings.TrimSpace(a.PollIntervalStr))
	if err != nil {
		return nil, fmt.Errorf("poll interval: %w", err)
	}
	ttl, err := time.ParseDuration(strings.TrimSpace(a.CacheTTLStr))
	if err != nil {
		return nil, fmt.Errorf("cache ttl: %w", err)
	}

	cfg := config.Default()
	cfg.DataDir = strings.TrimSpace(a.DataDir)
	cfg.Service.BindAddress = strings.TrimSpace(a.BindAddress)
	cfg.Service.Port = port
	cfg.Service.WebDir = strings.TrimSpace(a.WebDir)
	cfg.LXD.URL = a.EffectiveURL()
	cfg.LXD.Project = strings.TrimSpace(a.Project)
	if a.IsRemote() {
		cfg.LXD.ClientCert = strings.TrimSpace(a.ClientCert)
		cfg.LXD.ClientKey = strings.TrimSpace(a.ClientKey)
		cfg.LXD.TLSCACertPath = strings.TrimSpace(a.TLSCACert)
		cfg.LXD.TLSSkipVerify = a.TLSSkipVerify
	}
	cfg.Events.Mode = a.EventsMode
	cfg.Events.PollInterval = config.Duration(poll)
	cfg.Cache.TTL = config.Duration(ttl)

	cfg.Auth.Mode = a.AuthMode
	if a.AuthMode == config.AuthModePassword {
		if a.Password != a.PasswordConfirm {
			return nil, fmt.Errorf("passwords do not match")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(a.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hashing password: %w", err)
		}
		cfg.Auth.PasswordHash = string(hash)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidatePort returns nil if s is a valid port number.
func ValidatePort(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if n < 1 || n > 65535 {
		return fmt.Errorf("must be 1-65535")
	}
	return nil
}

// ValidateDuration returns nil if s parses as a Go duration such as "2s".
func ValidateDuration(s string) error {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a duration like 2s or 1m")
	}
	if d < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

// ValidateDaemonURL returns nil for unix:// and https:// URLs.
func ValidateDaemonURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid URL")
	}
	switch u.Scheme {
	case "unix":
		if u.Path == "" {
			return fmt.Errorf("unix URL must include the socket path")
		}
	case "https":
		if u.Host == "" {
			return fmt.Errorf("https URL must include a host")
		}
	default:
		return fmt.Errorf("use unix:///path/to/unix.socket or https://host:8443")
	}
	return nil
}

// ValidateNotEmpty rejects blank input.
func ValidateNotEmpty(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s cannot be empty", what)
		}
		return nil
	}
}
