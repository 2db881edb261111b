package am

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Storage defaults
	v.SetDefault("storage.root", defaultRoot())
	v.SetDefault("storage.database", "vigil.db")

	// Daemon defaults
	v.SetDefault("daemon.tick_interval_seconds", 5) // minimum sleep between watch passes
	v.SetDefault("daemon.expiry_sweep_seconds", 60) // TTL sweep cadence
	v.SetDefault("daemon.workers", 1)               // sequential polling unless raised
	v.SetDefault("daemon.spawns_per_second", 4.0)   // subprocess spawn rate limit

	// Watch registration defaults
	v.SetDefault("watch.default_ttl_hours", 48)
	v.SetDefault("watch.default_interval_seconds", 30)

	// Subprocess execution defaults
	v.SetDefault("exec.timeout_seconds", 30)
	v.SetDefault("exec.action_command", "claude")
	v.SetDefault("exec.action_args", []string{"-p"})
}

// defaultRoot returns ~/.vigil, falling back to a relative directory when the
// home directory cannot be resolved.
func defaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vigil"
	}
	return filepath.Join(home, ".vigil")
}
