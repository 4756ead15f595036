package batch

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// BulkConfig represents one scheduled bulk build
type BulkConfig struct {
	Name       string `toml:"name"`
	Cron       string `toml:"cron"`
	Packages   string `toml:"packages"` // glob, defaults to "*"
	ShardCount int    `toml:"shard_count"`
	TestOnly   bool   `toml:"test_only"`
}

// ScheduleConfig holds all bulk build configurations
type ScheduleConfig struct {
	Bulks []BulkConfig `toml:"bulk"`
}

// Validate checks if the config is valid
func (c *BulkConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("bulk name is required")
	}
	if c.Cron == "" {
		return fmt.Errorf("cron expression is required")
	}
	if _, err := ParseCron(c.Cron); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	if c.Packages == "" {
		c.Packages = "*"
	}
	if c.ShardCount <= 0 {
		c.ShardCount = 1
	}
	return nil
}

// LoadScheduleConfig loads bulk build configuration from a TOML file
func LoadScheduleConfig(path string) (*ScheduleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ScheduleConfig{}, nil
		}
		return nil, err
	}

	var cfg ScheduleConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	for i := range cfg.Bulks {
		if err := cfg.Bulks[i].Validate(); err != nil {
			return nil, fmt.Errorf("bulk %d: %w", i, err)
		}
	}

	return &cfg, nil
}
