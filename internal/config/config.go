// Package config provides unified configuration loading: built-in defaults,
// an optional YAML file, then environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all settings for the extraction service.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Vision        VisionConfig        `yaml:"vision"`
	Limits        LimitsConfig        `yaml:"limits"`
	Retry         RetryConfig         `yaml:"retry"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	UploadDir        string        `yaml:"upload_dir"`
}

// VisionConfig holds settings for the external vision-extraction service.
type VisionConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKeyEnv      string        `yaml:"api_key_env"`
	Model          string        `yaml:"model"`
	PerCallTimeout time.Duration `yaml:"per_call_timeout"`
}

// LimitsConfig bounds batch size and external call rate.
type LimitsConfig struct {
	CallsPerMinute      int   `yaml:"calls_per_minute"`
	MaxConcurrentUnits  int   `yaml:"max_concurrent_units"`
	MaxPagesPerDocument int   `yaml:"max_pages_per_document"`
	MaxTotalPages       int   `yaml:"max_total_pages"`
	MaxFileSizeMB       int64 `yaml:"max_file_size_mb"`
	MaxFilesPerBatch    int   `yaml:"max_files_per_batch"`
}

// RetryConfig tunes the retry policy for external calls.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Jitter      float64       `yaml:"jitter"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      10 * time.Minute,
			WriteTimeout:     10 * time.Minute,
			IdleTimeout:      2 * time.Minute,
			GracefulShutdown: 30 * time.Second,
			UploadDir:        os.TempDir(),
		},
		Vision: VisionConfig{
			BaseURL:        "https://api.openai.com/v1",
			APIKeyEnv:      "OPENAI_API_KEY",
			Model:          "gpt-4o",
			PerCallTimeout: 90 * time.Second,
		},
		Limits: LimitsConfig{
			CallsPerMinute:      30,
			MaxConcurrentUnits:  5,
			MaxPagesPerDocument: 50,
			MaxTotalPages:       200,
			MaxFileSizeMB:       100,
			MaxFilesPerBatch:    10,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    60 * time.Second,
			Jitter:      0.2,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Load builds the config from defaults, the optional YAML file at path, and
// environment overrides, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations that would make the worker pool or limiter
// unusable. Invalid configuration is the one batch-fatal error class.
func (c Config) Validate() error {
	if c.Limits.CallsPerMinute <= 0 {
		return fmt.Errorf("limits.calls_per_minute must be positive, got %d", c.Limits.CallsPerMinute)
	}
	if c.Limits.MaxConcurrentUnits <= 0 {
		return fmt.Errorf("limits.max_concurrent_units must be positive, got %d", c.Limits.MaxConcurrentUnits)
	}
	if c.Limits.MaxPagesPerDocument <= 0 || c.Limits.MaxTotalPages <= 0 {
		return fmt.Errorf("page limits must be positive")
	}
	if c.Limits.MaxPagesPerDocument > c.Limits.MaxTotalPages {
		return fmt.Errorf("limits.max_pages_per_document (%d) exceeds limits.max_total_pages (%d)",
			c.Limits.MaxPagesPerDocument, c.Limits.MaxTotalPages)
	}
	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry.max_attempts must be non-negative, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		return fmt.Errorf("retry.jitter must be in [0,1], got %v", c.Retry.Jitter)
	}
	if c.Vision.PerCallTimeout <= 0 {
		return fmt.Errorf("vision.per_call_timeout must be positive")
	}
	return nil
}

// APIKey resolves the vision API key from the configured environment
// variable.
func (c VisionConfig) APIKey() string {
	return os.Getenv(c.APIKeyEnv)
}

func applyEnv(cfg *Config) {
	setStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setDur := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}

	setStr("CLASSIFIER_HOST", &cfg.Server.Host)
	setInt("CLASSIFIER_PORT", &cfg.Server.Port)
	setStr("CLASSIFIER_UPLOAD_DIR", &cfg.Server.UploadDir)

	setStr("CLASSIFIER_VISION_BASE_URL", &cfg.Vision.BaseURL)
	setStr("CLASSIFIER_VISION_API_KEY_ENV", &cfg.Vision.APIKeyEnv)
	setStr("CLASSIFIER_VISION_MODEL", &cfg.Vision.Model)
	setDur("CLASSIFIER_PER_CALL_TIMEOUT", &cfg.Vision.PerCallTimeout)

	setInt("CLASSIFIER_CALLS_PER_MINUTE", &cfg.Limits.CallsPerMinute)
	setInt("CLASSIFIER_MAX_CONCURRENT_UNITS", &cfg.Limits.MaxConcurrentUnits)
	setInt("CLASSIFIER_MAX_PAGES_PER_DOCUMENT", &cfg.Limits.MaxPagesPerDocument)
	setInt("CLASSIFIER_MAX_TOTAL_PAGES", &cfg.Limits.MaxTotalPages)

	setInt("CLASSIFIER_MAX_RETRY_ATTEMPTS", &cfg.Retry.MaxAttempts)

	setStr("CLASSIFIER_LOG_LEVEL", &cfg.Observability.LogLevel)
	setStr("CLASSIFIER_LOG_FORMAT", &cfg.Observability.LogFormat)
}
