package config

import (
	"fmt"
	"os"

	"github.com/Brownie44l1/id-validator/internal/validator"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Runtime struct {
		LibraryPath    string `yaml:"library_path"`
		IntraOpThreads int    `yaml:"intra_op_threads"`
	} `yaml:"runtime"`
	Validation struct {
		MaxImageBytes int64 `yaml:"max_image_bytes"`
		MaxPixels     int64 `yaml:"max_pixels"`
	} `yaml:"validation"`
	Log struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`
}

func Default() *Config {
	cfg := &Config{}
	cfg.Validation.MaxImageBytes = validator.DefaultMaxImageBytes
	cfg.Validation.MaxPixels = validator.DefaultMaxPixels
	cfg.Log.Level = "info"
	cfg.Log.Format = "console"
	cfg.Log.MaxSizeMB = 100
	cfg.Log.MaxBackups = 3
	cfg.Log.MaxAgeDays = 28
	return cfg
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Runtime.IntraOpThreads < 0 {
		return fmt.Errorf("runtime.intra_op_threads must not be negative, got %d", c.Runtime.IntraOpThreads)
	}
	if c.Validation.MaxImageBytes <= 0 {
		return fmt.Errorf("validation.max_image_bytes must be positive, got %d", c.Validation.MaxImageBytes)
	}
	if c.Validation.MaxPixels <= 0 {
		return fmt.Errorf("validation.max_pixels must be positive, got %d", c.Validation.MaxPixels)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unsupported log format %q", c.Log.Format)
	}
	return nil
}
