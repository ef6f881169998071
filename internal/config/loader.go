package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// configDir is the directory name under ~/.config.
	configDir = "quill"
	// configFile is the config file name.
	configFile = "config.json"
)

// FileSystem abstracts the reads the loader performs, for testability.
type FileSystem interface {
	UserHomeDir() (string, error)
	ReadFile(path string) ([]byte, error)
}

type osFileSystem struct{}

func (osFileSystem) UserHomeDir() (string, error)      { return os.UserHomeDir() }
func (osFileSystem) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

// Loader reads the user configuration.
type Loader struct {
	fs FileSystem
}

// NewLoader creates a production Loader using the real filesystem.
func NewLoader() *Loader {
	return &Loader{fs: osFileSystem{}}
}

// NewLoaderWithFS creates a Loader with a custom filesystem (for testing).
func NewLoaderWithFS(fs FileSystem) *Loader {
	return &Loader{fs: fs}
}

// Load reads ~/.config/quill/config.json and merges it over the defaults:
// keys present in the file overwrite defaults, even with zero values, while
// missing keys leave the defaults untouched. A missing file yields the
// defaults; parse and validation failures are errors.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	homeDir, err := l.fs.UserHomeDir()
	if err != nil {
		return cfg, nil
	}

	path := filepath.Join(homeDir, ".config", configDir, configFile)
	data, err := l.fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}
