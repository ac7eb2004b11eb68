package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "file", cfg.StoreBackend)
	assert.Equal(t, "blake2b-256", cfg.HashAlgorithm)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().StoreBackend, cfg.StoreBackend)
}

func TestLoadOverridesAndDerivedPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
data_dir = "` + dir + `"
store_backend = "sqlite"
hash_algorithm = "sha3-256"
interval = 9
watch_paths = ["/var/spool/mmrd"]
log_format = "json"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "sqlite", cfg.StoreBackend)
	assert.Equal(t, "sha3-256", cfg.HashAlgorithm)
	assert.Equal(t, 9, cfg.Interval)
	assert.Equal(t, []string{"/var/spool/mmrd"}, cfg.WatchPaths)
	assert.Equal(t, filepath.Join(dir, "nodes.sqlite"), cfg.StorePath)
	assert.Equal(t, filepath.Join(dir, "mmrd.sock"), cfg.SocketPath)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"bad backend", func(c *Config) { c.StoreBackend = "redis" }},
		{"bad algorithm", func(c *Config) { c.HashAlgorithm = "md5" }},
		{"zero interval", func(c *Config) { c.Interval = 0 }},
		{"read-only socket shadows write socket", func(c *Config) { c.ReadOnlySocketPath = c.SocketPath }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := DefaultConfig()
			c.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.DataDir = filepath.Join(dir, "deep", "data")
	cfg.LogPath = filepath.Join(dir, "logs", "mmrd.log")
	cfg.StorePath = filepath.Join(cfg.DataDir, "nodes.mmr")

	require.NoError(t, cfg.EnsureDirectories())
	assert.DirExists(t, cfg.DataDir)
	assert.DirExists(t, filepath.Join(dir, "logs"))
}
