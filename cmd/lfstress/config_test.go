package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lfstress.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()
	require.NoError(t, cfg.validate())
	assert.Equal(t, "all", cfg.Structure)
	assert.Equal(t, 4, cfg.Producers)
	assert.Equal(t, 100_000, cfg.Items)
	assert.Equal(t, 30*time.Second, cfg.Duration)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestConfig_Validate(t *testing.T) {
	for name, mut := range map[string]func(*Config){
		"structure": func(c *Config) { c.Structure = "stack" },
		"producers": func(c *Config) { c.Producers = -1 },
		"items":     func(c *Config) { c.Items = -5 },
		"hop limit": func(c *Config) { c.HopLimit = -1 },
	} {
		t.Run(name, func(t *testing.T) {
			var cfg Config
			mut(&cfg)
			cfg.applyDefaults()
			assert.Error(t, cfg.validate())
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
structure = "ring"
producers = 2
consumers = 3
items = 500
capacity = 7
hop_limit = 4
duration = "5s"
log_level = "debug"
`)
	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, Config{
		Structure: "ring",
		Producers: 2,
		Consumers: 3,
		Items:     500,
		Capacity:  7,
		HopLimit:  4,
		Duration:  5 * time.Second,
		LogLevel:  "debug",
	}, cfg)

	_, err = loadConfig(writeConfig(t, "structur = \"ring\"\n"))
	assert.ErrorContains(t, err, "unknown keys")

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestParseArgs_FlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "structure = \"cell\"\nitems = 10\nproducers = 9\n")
	cfg, err := parseArgs([]string{"-config", path, "-items", "20", "-json"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "cell", cfg.Structure)
	assert.Equal(t, 20, cfg.Items)
	assert.Equal(t, 9, cfg.Producers)
	assert.True(t, cfg.JSON)
	assert.Equal(t, 4, cfg.Consumers, "unset values fall back to defaults")

	_, err = parseArgs([]string{"-structure", "heap"}, io.Discard)
	assert.Error(t, err)
}
