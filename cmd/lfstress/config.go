package main

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

var structures = []string{"ring", "cell", "option", "array", "pool", "list", "mpmc", "spsc", "pubsub"}

// Config configures a stress run. Zero values mean "use the default".
type Config struct {
	Structure string        `toml:"structure"`
	Producers int           `toml:"producers"`
	Consumers int           `toml:"consumers"`
	Items     int           `toml:"items"`
	Capacity  int           `toml:"capacity"`
	HopLimit  int           `toml:"hop_limit"`
	Duration  time.Duration `toml:"duration"`
	JSON      bool          `toml:"json"`
	LogLevel  string        `toml:"log_level"`
}

func (c *Config) applyDefaults() {
	if c.Structure == "" {
		c.Structure = "all"
	}
	if c.Producers == 0 {
		c.Producers = 4
	}
	if c.Consumers == 0 {
		c.Consumers = 4
	}
	if c.Items == 0 {
		c.Items = 100_000
	}
	if c.Capacity == 0 {
		c.Capacity = 1024
	}
	if c.Duration == 0 {
		c.Duration = 30 * time.Second
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) validate() error {
	if c.Structure != "all" && !slices.Contains(structures, c.Structure) {
		return fmt.Errorf("unknown structure %q (want all, %s)", c.Structure, strings.Join(structures, ", "))
	}
	if c.Producers < 1 || c.Consumers < 1 {
		return fmt.Errorf("producers and consumers must be > 0")
	}
	if c.Items < 1 || c.Capacity < 1 {
		return fmt.Errorf("items and capacity must be > 0")
	}
	if c.HopLimit < 0 {
		return fmt.Errorf("hop limit must be >= 0")
	}
	return nil
}

// loadConfig reads a TOML file. Unknown keys are rejected.
func loadConfig(path string) (Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("decode %s: unknown keys %v", path, undecoded)
	}
	return cfg, nil
}
