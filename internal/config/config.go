package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/ohamelijnck/watchpdf/pkg/naming"
)

// DefaultConfigFilename is the name of the config file inside the config dir.
const DefaultConfigFilename = "config.yaml"

const appDirName = "watchpdf"

// Config holds the persisted YAML configuration.
type Config struct {
	WatchFolderList []string      `yaml:"watch_folder_list"`      // Absolute folders to watch, no duplicates
	Format          string        `yaml:"format"`                 // Filename template, see pkg/naming
	Exclude         []string      `yaml:"exclude,omitempty"`      // Glob patterns to exclude
	Delay           time.Duration `yaml:"delay,omitempty"`        // Time before processing a created file
	Recursive       bool          `yaml:"recursive"`              // Watch sub folders too
	Notifications   bool          `yaml:"notifications"`          // Send desktop notifications on rename
	HeuristicSearch bool          `yaml:"heuristic_search"`       // Enable the heuristic title search
	LogLevel        string        `yaml:"log_level,omitempty"`    // debug, info, warn, error
	Mailto          string        `yaml:"mailto,omitempty"`       // Contact sent to CrossRef/arXiv
	HTTPTimeout     time.Duration `yaml:"http_timeout,omitempty"` // Per request timeout for lookups
}

// Default returns the configuration used when no file exists yet.
func Default() *Config {
	return &Config{
		WatchFolderList: []string{},
		Format:          naming.DefaultFormat,
		Recursive:       true,
		LogLevel:        "info",
		HTTPTimeout:     30 * time.Second,
	}
}

// DefaultPath returns the fixed config location, e.g. ~/.config/watchpdf/config.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config dir: %w", err)
	}
	return filepath.Join(dir, appDirName, DefaultConfigFilename), nil
}

// Load reads the config at path. A missing file yields Default().
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if cfg.WatchFolderList == nil {
		cfg.WatchFolderList = []string{}
	}
	if cfg.Format == "" {
		cfg.Format = naming.DefaultFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Write atomically replaces the config at path, creating parent directories.
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing config: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing config: %w", err)
	}
	return nil
}

// Update loads the config, applies fn and writes the result back while
// holding an advisory lock next to the config file.
func Update(path string, fn func(*Config) error) (*Config, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating config dir: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("acquire config lock: %w", err)
	}
	defer lock.Unlock()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := fn(cfg); err != nil {
		return nil, err
	}
	if err := Write(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the filename format.
func (c *Config) Validate() error {
	if _, err := naming.Validate(c.Format); err != nil {
		return fmt.Errorf("config format: %w", err)
	}
	return nil
}

// AddFolder appends an already normalized folder unless present.
// It reports whether the list changed.
func (c *Config) AddFolder(folder string) bool {
	if slices.Contains(c.WatchFolderList, folder) {
		return false
	}
	c.WatchFolderList = append(c.WatchFolderList, folder)
	return true
}

// RemoveFolder drops folder from the list and reports whether it was present.
func (c *Config) RemoveFolder(folder string) bool {
	i := slices.Index(c.WatchFolderList, folder)
	if i < 0 {
		return false
	}
	c.WatchFolderList = slices.Delete(c.WatchFolderList, i, i+1)
	return true
}

// ClearFolders empties the watch list.
func (c *Config) ClearFolders() {
	c.WatchFolderList = []string{}
}
