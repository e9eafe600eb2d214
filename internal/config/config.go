// Package config handles loading and parsing of wrangle CLI configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the wrangle CLI.
type Config struct {
	S3          S3Config          `yaml:"s3"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
}

// S3Config holds connection settings for the object store.
type S3Config struct {
	Region string `yaml:"region"`
	// Endpoint overrides the service endpoint for S3-compatible stores
	// such as MinIO or LocalStack.
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
	// AccessKeyID and SecretAccessKey select static credentials. When
	// empty the default AWS credential chain is used.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// LoggingConfig holds slog settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds Pushgateway settings. Metrics are pushed once when a
// command finishes.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

// ConcurrencyConfig controls the batch executor.
type ConcurrencyConfig struct {
	// Enabled is a pointer so an explicit false in YAML survives defaults.
	Enabled *bool `yaml:"enabled"`
}

// UseConcurrency reports whether batches run concurrently.
func (c ConcurrencyConfig) UseConcurrency() bool {
	return c.Enabled == nil || *c.Enabled
}

// Load reads a YAML configuration file and applies WRANGLE_* environment
// overrides. An empty path, or a path that does not exist, yields the
// defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	// Apply defaults for empty fields that YAML didn't set
	applyDefaults(cfg)

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Job: "wrangle",
		},
	}
}

// applyDefaults fills in any fields that are still at their zero value
// after YAML unmarshaling.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Metrics.Job == "" {
		cfg.Metrics.Job = "wrangle"
	}
}

// applyEnv overrides fields from WRANGLE_* variables. AWS_REGION is honored
// when no region is configured.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("WRANGLE_S3_REGION", &cfg.S3.Region)
	str("WRANGLE_S3_ENDPOINT", &cfg.S3.Endpoint)
	str("WRANGLE_S3_ACCESS_KEY_ID", &cfg.S3.AccessKeyID)
	str("WRANGLE_S3_SECRET_ACCESS_KEY", &cfg.S3.SecretAccessKey)
	str("WRANGLE_LOG_LEVEL", &cfg.Logging.Level)
	str("WRANGLE_LOG_FORMAT", &cfg.Logging.Format)
	str("WRANGLE_PUSHGATEWAY_URL", &cfg.Metrics.PushgatewayURL)
	if cfg.S3.Region == "" {
		str("AWS_REGION", &cfg.S3.Region)
	}

	if v, ok := lookup("WRANGLE_S3_PATH_STYLE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing WRANGLE_S3_PATH_STYLE: %w", err)
		}
		cfg.S3.PathStyle = b
	}
	if v, ok := lookup("WRANGLE_CONCURRENCY"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing WRANGLE_CONCURRENCY: %w", err)
		}
		cfg.Concurrency.Enabled = &b
	}
	return nil
}
