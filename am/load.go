package am

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var globalConfig *Config
var viperInstance *viper.Viper

// Load reads the vigil configuration using Viper
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	v := initViper()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	globalConfig = &config
	return globalConfig, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config from %s: %w", configPath, err)
	}

	return &config, nil
}

// Reset clears the cached configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viperInstance = nil
}

// initViper initializes Viper with configuration sources and defaults
func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()

	// Set up environment variable binding
	v.SetEnvPrefix("VIGIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults first
	SetDefaults(v)

	// Merge configs in precedence order: user -> project -> env vars
	mergeConfigFiles(v)

	viperInstance = v
	return v
}

// mergeConfigFiles merges the user config and then any project config found
// by walking up from the working directory. Later merges win.
func mergeConfigFiles(v *viper.Viper) {
	if userPath := userConfigPath(); userPath != "" {
		if _, err := os.Stat(userPath); err == nil {
			v.SetConfigFile(userPath)
			v.SetConfigType("toml")
			v.MergeInConfig()
		}
	}

	if projectPath := findProjectConfig(); projectPath != "" {
		v.SetConfigFile(projectPath)
		v.SetConfigType("toml")
		v.MergeInConfig()
	}
}

// userConfigPath returns ~/.config/vigil/config.toml, or empty string if the
// home directory cannot be resolved.
func userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "vigil", "config.toml")
}

// findProjectConfig searches for vigil.toml by walking up the directory tree.
// Returns the path to the first config file found, or empty string if none.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, "vigil.toml")
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
