// Package am manages vigil configuration ("I am").
//
// Configuration is read from vigil.toml (walked up from the working
// directory), then ~/.config/vigil/config.toml, with VIGIL_* environment
// variables taking precedence over both.
package am

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the root vigil configuration
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Daemon  DaemonConfig  `mapstructure:"daemon"`
	Watch   WatchConfig   `mapstructure:"watch"`
	Exec    ExecConfig    `mapstructure:"exec"`
}

// StorageConfig locates the on-disk layout. All subdirectories live under Root.
type StorageConfig struct {
	Root     string `mapstructure:"root"`     // base directory (default: ~/.vigil)
	Database string `mapstructure:"database"` // database filename under Root
}

// DaemonConfig tunes the polling scheduler
type DaemonConfig struct {
	TickIntervalSeconds int     `mapstructure:"tick_interval_seconds"` // minimum sleep between watch passes (default: 5)
	ExpirySweepSeconds  int     `mapstructure:"expiry_sweep_seconds"`  // cadence of the TTL sweep (default: 60)
	Workers             int     `mapstructure:"workers"`               // concurrent watch pipelines (default: 1 = sequential)
	SpawnsPerSecond     float64 `mapstructure:"spawns_per_second"`     // subprocess spawn rate limit (default: 4)
}

// WatchConfig holds per-watch defaults applied at registration
type WatchConfig struct {
	DefaultTTLHours        int `mapstructure:"default_ttl_hours"`        // default: 48
	DefaultIntervalSeconds int `mapstructure:"default_interval_seconds"` // default: 30
}

// ExecConfig governs trigger/action subprocess execution
type ExecConfig struct {
	TimeoutSeconds int      `mapstructure:"timeout_seconds"` // upper bound per subprocess (default: 30)
	ActionCommand  string   `mapstructure:"action_command"`  // action binary (default: "claude")
	ActionArgs     []string `mapstructure:"action_args"`     // fixed args before the prompt (default: ["-p"])
}

// DatabasePath returns the absolute path of the sqlite database file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Storage.Root, c.Storage.Database)
}

// TriggersDir returns the directory scanned for trigger executables.
func (c *Config) TriggersDir() string {
	return filepath.Join(c.Storage.Root, "triggers")
}

// ResultsDir returns the directory holding one JSON result per fired watch.
func (c *Config) ResultsDir() string {
	return filepath.Join(c.Storage.Root, "results")
}

// ArchiveDir returns the subdirectory external consumers move processed
// results into. Created for them, never written by vigil.
func (c *Config) ArchiveDir() string {
	return filepath.Join(c.Storage.Root, "results", "archive")
}

// LogsDir returns the directory of per-watch transcript logs.
func (c *Config) LogsDir() string {
	return filepath.Join(c.Storage.Root, "logs")
}

// ExecTimeout returns the subprocess timeout as a duration.
func (c *Config) ExecTimeout() time.Duration {
	return time.Duration(c.Exec.TimeoutSeconds) * time.Second
}

// DefaultTTL returns the default watch time-to-live.
func (c *Config) DefaultTTL() time.Duration {
	return time.Duration(c.Watch.DefaultTTLHours) * time.Hour
}

// DefaultInterval returns the default per-watch polling interval.
func (c *Config) DefaultInterval() time.Duration {
	return time.Duration(c.Watch.DefaultIntervalSeconds) * time.Second
}

// EnsureDirs creates the storage layout if missing.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{
		c.Storage.Root,
		c.TriggersDir(),
		c.ResultsDir(),
		c.ArchiveDir(),
		c.LogsDir(),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
