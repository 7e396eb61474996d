package config

import "time"

const (
	// Filesystem paths
	DefaultConfigPath = "/etc/lxd-console/config.yml"
	DefaultDataDir    = "/var/lib/lxd-console"

	// Service defaults
	DefaultBindAddress = "0.0.0.0"
	DefaultPort        = 8099

	// Daemon defaults
	DefaultLXDURL     = "unix:///var/snap/lxd/common/lxd/unix.socket"
	DefaultLXDProject = "default"

	// Auth modes
	AuthModeNone     = "none"
	AuthModePassword = "password"

	// Operation completion sources
	EventsModeEvents = "events"
	EventsModePoll   = "poll"

	DefaultPollInterval = 2 * time.Second
	DefaultCacheTTL     = 30 * time.Second

	// HistoryDBName is the SQLite file inside the data directory.
	HistoryDBName = "history.db"
)

// Default returns a configuration with every field at its default.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir,
		Service: ServiceConfig{
			BindAddress: DefaultBindAddress,
			Port:        DefaultPort,
		},
		Auth: AuthConfig{Mode: AuthModeNone},
		LXD: LXDConfig{
			URL:     DefaultLXDURL,
			Project: DefaultLXDProject,
		},
		Events: EventsConfig{
			Mode:         EventsModeEvents,
			PollInterval: Duration(DefaultPollInterval),
		},
		Cache: CacheConfig{TTL: Duration(DefaultCacheTTL)},
	}
}
