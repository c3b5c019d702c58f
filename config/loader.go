package config

import (
	"fmt"
	"runtime"

	"github.com/spf13/pflag"
)

// LoadConfig loads configuration with priority: flags > config file > defaults.
// fs may be nil, in which case only the config file and defaults apply.
func LoadConfig(fs *pflag.FlagSet) (*Config, error) {
	// 1. Start with defaults
	cfg := DefaultConfig()

	// 2. Explicit --config wins over the standard locations
	configPath := ""
	explicit := false
	if fs != nil {
		if f := fs.Lookup("config"); f != nil && f.Changed {
			configPath = f.Value.String()
			explicit = true
		}
	}
	if configPath == "" && !explicit {
		configPath = FindConfigFile()
	}

	// Load config file if found
	if configPath != "" {
		fileCfg, err := LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		// Merge file config (overwrites defaults)
		cfg = fileCfg
	}

	// 3. Merge flags (highest priority, overwrites everything)
	if fs != nil {
		if err := cfg.MergeFromFlags(fs); err != nil {
			return nil, err
		}
	}

	// Auto-detect workers if set to 0
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}

	// Validate final configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
