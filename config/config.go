// Package config loads pipeline configuration from a YAML file with
// environment overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Env variables overriding file values. Secrets never live in the file.
const (
	EnvProviders        = "MEDIAPIPE_STORAGE_PROVIDERS"
	EnvEncryptionSecret = "MEDIAPIPE_ENCRYPTION_SECRET"
	EnvListenAddr       = "MEDIAPIPE_LISTEN_ADDR"
)

// StorageConfig configures the storage manager and its adapters.
type StorageConfig struct {
	// Providers are adapter location URIs in failover preference order,
	// e.g. file:///var/data, s3://KEY:SECRET@bucket/prefix?region=eu-west-1.
	Providers []string `yaml:"providers"`

	KeyPrefix      string        `yaml:"key_prefix"`
	MaxFileSize    int64         `yaml:"max_file_size"`
	RetryAttempts  int           `yaml:"retry_attempts"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	HealthInterval time.Duration `yaml:"health_interval"`

	// Compression enables transparent zstd of stored payloads.
	Compression bool `yaml:"compression"`

	// EncryptionSecret enables transparent encryption at rest when set.
	// Hex- or raw-encoded, at least 32 bytes of entropy. Prefer the
	// MEDIAPIPE_ENCRYPTION_SECRET env variable over the file.
	EncryptionSecret string `yaml:"encryption_secret"`
}

// ProcessingConfig configures the orchestrator.
type ProcessingConfig struct {
	MaxConcurrent int           `yaml:"max_concurrent"`
	Parallel      *bool         `yaml:"parallel"`
	Timeout       time.Duration `yaml:"timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	Retention     time.Duration `yaml:"retention"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	ListenAddr    string        `yaml:"listen_addr"`
	MetricsAddr   string        `yaml:"metrics_addr"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	DrainDuration time.Duration `yaml:"drain_duration"`
	EnablePprof   bool          `yaml:"pprof"`
}

// Config is the full pipeline configuration.
type Config struct {
	Storage    StorageConfig    `yaml:"storage"`
	Processing ProcessingConfig `yaml:"processing"`
	Server     ServerConfig     `yaml:"server"`
}

// Default returns the configuration used when no file is given: a single
// local file adapter under ./data and conservative concurrency.
func Default() *Config {
	parallel := true
	return &Config{
		Storage: StorageConfig{
			Providers:      []string{"file://./data"},
			KeyPrefix:      "uploads",
			MaxFileSize:    1 << 30,
			RetryAttempts:  3,
			RetryDelay:     500 * time.Millisecond,
			HealthInterval: 30 * time.Second,
		},
		Processing: ProcessingConfig{
			MaxConcurrent: 4,
			Parallel:      &parallel,
			Timeout:       5 * time.Minute,
			RetryAttempts: 3,
			RetryDelay:    time.Second,
			Retention:     time.Minute,
		},
		Server: ServerConfig{
			ListenAddr:    "127.0.0.1:8080",
			MetricsAddr:   "127.0.0.1:8090",
			ReadTimeout:   60 * time.Second,
			WriteTimeout:  30 * time.Second,
			DrainDuration: 45 * time.Second,
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. path may be empty.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if providers := os.Getenv(EnvProviders); providers != "" {
		cfg.Storage.Providers = cfg.Storage.Providers[:0]
		for _, uri := range strings.Split(providers, ",") {
			if uri = strings.TrimSpace(uri); uri != "" {
				cfg.Storage.Providers = append(cfg.Storage.Providers, uri)
			}
		}
	}
	if secret := os.Getenv(EnvEncryptionSecret); secret != "" {
		cfg.Storage.EncryptionSecret = secret
	}
	if addr := os.Getenv(EnvListenAddr); addr != "" {
		cfg.Server.ListenAddr = addr
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if len(c.Storage.Providers) == 0 {
		return fmt.Errorf("config: at least one storage provider is required")
	}
	if c.Storage.MaxFileSize <= 0 {
		return fmt.Errorf("config: storage.max_file_size must be positive")
	}
	if c.Storage.EncryptionSecret != "" && len(c.Storage.EncryptionSecret) < 32 {
		return fmt.Errorf("config: storage.encryption_secret must be at least 32 bytes")
	}
	if c.Processing.MaxConcurrent < 1 {
		return fmt.Errorf("config: processing.max_concurrent must be at least 1")
	}
	return nil
}

// ParallelEnabled reports the effective batch parallelism setting.
func (c *Config) ParallelEnabled() bool {
	return c.Processing.Parallel == nil || *c.Processing.Parallel
}
