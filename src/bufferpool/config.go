package bufferpool

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config describes how to open a heap file backed pool.
type Config struct {
	Path          string `mapstructure:"path"`
	Frames        int    `mapstructure:"frames"`
	BlocksPerPage int    `mapstructure:"blocks_per_page"`
	Workers       int    `mapstructure:"workers"`
}

// LoadConfig reads a YAML/JSON/TOML config file (format inferred from
// its extension) into a Config.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("blocks_per_page", 8)
	v.SetDefault("workers", defaultDispatcherWorkers)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("bufferpool: read config %q: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("bufferpool: unmarshal config %q: %w", path, err)
	}
	return &cfg, nil
}
