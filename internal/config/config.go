// Package config handles configuration loading and validation for mmrd.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds the daemon configuration.
type Config struct {
	// DataDir is the directory holding the node store, socket and logs.
	DataDir string `toml:"data_dir"`

	// StoreBackend selects the node store: "file", "sqlite", "bolt" or
	// "memory".
	StoreBackend string `toml:"store_backend"`

	// StorePath is the path to the node store. Defaults to a file named
	// after the backend inside DataDir.
	StorePath string `toml:"store_path"`

	// HashAlgorithm names the digest algorithm: "blake2b-256",
	// "sha3-256" or "blake3". Changing it on an existing store makes
	// the recomputed root disagree with every issued proof.
	HashAlgorithm string `toml:"hash_algorithm"`

	// SocketPath is the path of the control socket. Connections on it
	// hold append authority; the socket file is created mode 0600 so
	// only the daemon's owner can reach it.
	SocketPath string `toml:"socket_path"`

	// ReadOnlySocketPath, when set, exposes a second control socket
	// whose connections may query status, roots, peaks and proofs but
	// never append. Empty disables it.
	ReadOnlySocketPath string `toml:"read_only_socket_path"`

	// WatchPaths is a list of spool directories whose files are
	// appended as leaves.
	WatchPaths []string `toml:"watch_paths"`

	// Interval is the debounce interval in seconds. Spool files must be
	// stable for this duration before they are ingested.
	Interval int `toml:"interval"`

	// MetricsAddr is the listen address of the metrics endpoint.
	// Empty disables it.
	MetricsAddr string `toml:"metrics_addr"`

	// LogPath is the path to the daemon log file. Empty logs to stderr.
	LogPath string `toml:"log_path"`

	// LogLevel is the minimum log level: "debug", "info", "warn",
	// "error".
	LogLevel string `toml:"log_level"`

	// LogFormat is "text" or "json".
	LogFormat string `toml:"log_format"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".mmrd")

	return &Config{
		DataDir:       dataDir,
		StoreBackend:  "file",
		HashAlgorithm: "blake2b-256",
		SocketPath:    filepath.Join(dataDir, "mmrd.sock"),
		WatchPaths:    []string{},
		Interval:      5,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".mmrd", "config.toml")
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyDerived()
			return cfg, nil
		}
		return nil, err
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, err
	}

	cfg.applyDerived()
	return cfg, nil
}

// applyDerived fills in paths that default relative to DataDir.
func (c *Config) applyDerived() {
	if c.SocketPath == "" {
		c.SocketPath = filepath.Join(c.DataDir, "mmrd.sock")
	}
	if c.StorePath == "" {
		switch c.StoreBackend {
		case "sqlite":
			c.StorePath = filepath.Join(c.DataDir, "nodes.sqlite")
		case "bolt":
			c.StorePath = filepath.Join(c.DataDir, "nodes.bolt")
		default:
			c.StorePath = filepath.Join(c.DataDir, "nodes.mmr")
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("config: data_dir is required")
	}

	switch c.StoreBackend {
	case "memory", "file", "sqlite", "bolt":
	default:
		return fmt.Errorf("config: unknown store_backend %q", c.StoreBackend)
	}

	switch c.HashAlgorithm {
	case "", "blake2b-256", "sha3-256", "blake3":
	default:
		return fmt.Errorf("config: unknown hash_algorithm %q", c.HashAlgorithm)
	}

	if c.ReadOnlySocketPath != "" && c.ReadOnlySocketPath == c.SocketPath {
		return errors.New("config: read_only_socket_path must differ from socket_path")
	}

	if c.Interval < 1 {
		return errors.New("config: interval must be at least 1 second")
	}

	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: unknown log_format %q", c.LogFormat)
	}

	return nil
}

// EnsureDirectories creates all necessary directories for the daemon.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir}
	if c.LogPath != "" {
		dirs = append(dirs, filepath.Dir(c.LogPath))
	}
	if c.StorePath != "" {
		dirs = append(dirs, filepath.Dir(c.StorePath))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
