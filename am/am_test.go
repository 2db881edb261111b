package am

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))

	assert.Equal(t, "vigil.db", cfg.Storage.Database)
	assert.Equal(t, 5, cfg.Daemon.TickIntervalSeconds)
	assert.Equal(t, 60, cfg.Daemon.ExpirySweepSeconds)
	assert.Equal(t, 1, cfg.Daemon.Workers)
	assert.Equal(t, 48, cfg.Watch.DefaultTTLHours)
	assert.Equal(t, 30, cfg.Watch.DefaultIntervalSeconds)
	assert.Equal(t, 30, cfg.Exec.TimeoutSeconds)
	assert.Equal(t, "claude", cfg.Exec.ActionCommand)
	assert.Equal(t, []string{"-p"}, cfg.Exec.ActionArgs)
}

func TestPathHelpers(t *testing.T) {
	cfg := &Config{Storage: StorageConfig{Root: "/data/vigil", Database: "vigil.db"}}

	assert.Equal(t, filepath.Join("/data/vigil", "vigil.db"), cfg.DatabasePath())
	assert.Equal(t, filepath.Join("/data/vigil", "triggers"), cfg.TriggersDir())
	assert.Equal(t, filepath.Join("/data/vigil", "results"), cfg.ResultsDir())
	assert.Equal(t, filepath.Join("/data/vigil", "results", "archive"), cfg.ArchiveDir())
	assert.Equal(t, filepath.Join("/data/vigil", "logs"), cfg.LogsDir())
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "vigil.toml")

	content := `
[storage]
root = "/tmp/vigil-test"

[daemon]
tick_interval_seconds = 2
workers = 3

[exec]
action_command = "echo"
action_args = []
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/vigil-test", cfg.Storage.Root)
	assert.Equal(t, 2, cfg.Daemon.TickIntervalSeconds)
	assert.Equal(t, 3, cfg.Daemon.Workers)
	assert.Equal(t, "echo", cfg.Exec.ActionCommand)
	// Unset keys fall back to defaults
	assert.Equal(t, 48, cfg.Watch.DefaultTTLHours)
}

func TestEnsureDirs(t *testing.T) {
	cfg := &Config{Storage: StorageConfig{Root: filepath.Join(t.TempDir(), "vigil"), Database: "vigil.db"}}
	require.NoError(t, cfg.EnsureDirs())

	for _, dir := range []string{cfg.TriggersDir(), cfg.ResultsDir(), cfg.ArchiveDir(), cfg.LogsDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
