package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath is the environment variable for explicit config path
	EnvConfigPath = "TUBESIM_CONFIG"
	// ConfigFileName is the default config file name
	ConfigFileName = "tubesim.yaml"
	// ConfigDirName is the config directory name under ~/.config
	ConfigDirName = "tubesim"
)

// FindConfigPath returns the first existing config file in priority order,
// or "" when there is none.
func FindConfigPath() string {
	if path := os.Getenv(EnvConfigPath); path != "" {
		if fileExists(path) {
			return path
		}
	}

	if fileExists(ConfigFileName) {
		if abs, err := filepath.Abs(ConfigFileName); err == nil {
			return abs
		}
		return ConfigFileName
	}

	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".config", ConfigDirName, "config.yaml")
		if fileExists(path) {
			return path
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
