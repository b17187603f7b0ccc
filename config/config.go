// Package config loads the chatbot configuration from defaults, an optional
// YAML file, and environment overrides, in that precedence order.
package config

import (
	"time"
)

// Config is the full runtime configuration.
type Config struct {
	LLM         LLMConfig     `yaml:"llm" env:"LLM"`
	Session     SessionConfig `yaml:"session" env:"SESSION"`
	Log         LogConfig     `yaml:"log" env:"LOG"`
	Metrics     MetricsConfig `yaml:"metrics" env:"METRICS"`
	CurrentDate string        `yaml:"current_date" env:"CURRENT_DATE"` // "YYYY-MM-DD" business date anchor
	Language    string        `yaml:"language" env:"LANGUAGE"`
}

// LLMConfig configures the model gateway and its provider.
type LLMConfig struct {
	Provider    string        `yaml:"provider" env:"PROVIDER"`
	APIKey      string        `yaml:"api_key" env:"API_KEY"`
	BaseURL     string        `yaml:"base_url" env:"BASE_URL"`
	Model       string        `yaml:"model" env:"MODEL"`
	Temperature float64       `yaml:"temperature" env:"TEMPERATURE"`
	MaxTokens   int           `yaml:"max_tokens" env:"MAX_TOKENS"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxRetries  int           `yaml:"max_retries" env:"MAX_RETRIES"`
	RetryDelay  time.Duration `yaml:"retry_delay" env:"RETRY_DELAY"`
	RateLimit   float64       `yaml:"rate_limit" env:"RATE_LIMIT"` // requests/second, 0 = off
}

// SessionConfig selects and configures the session store.
type SessionConfig struct {
	Backend string        `yaml:"backend" env:"BACKEND"` // "memory" or "redis"
	TTL     time.Duration `yaml:"ttl" env:"TTL"`
	Redis   RedisConfig   `yaml:"redis" env:"REDIS"`
}

// RedisConfig is the Redis connection for the redis session backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string   `yaml:"level" env:"LEVEL"`  // debug, info, warn, error
	Format      string   `yaml:"format" env:"FORMAT"` // json or console
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
}

// MetricsConfig configures the Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Addr    string `yaml:"addr" env:"ADDR"`
}

// DefaultConfig returns the baseline every load starts from.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Temperature: 0.3,
			MaxTokens:   1024,
			Timeout:     60 * time.Second,
			MaxRetries:  3,
			RetryDelay:  time.Second,
		},
		Session: SessionConfig{
			Backend: "memory",
			TTL:     24 * time.Hour,
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			OutputPaths: []string{"stdout"},
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
		CurrentDate: "2025-08-22",
		Language:    "ko",
	}
}

// Today parses the configured business date.
func (c *Config) Today() (time.Time, error) {
	return time.Parse("2006-01-02", c.CurrentDate)
}
