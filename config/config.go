package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

type Config struct {
	// Server
	Port string `env:"PORT" envDefault:"8080"`

	// Rulebook
	RulebookPath string `env:"RULEBOOK_PATH" envDefault:"config/rulebook.json"`

	// Upstream AI API, 0 means no client timeout
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"0s"`

	// Documents
	DocumentStore string `env:"DOCUMENT_STORE" envDefault:"memory"` // "memory", "redis" or "postgres"
	PostgresDSN   string `env:"POSTGRES_DSN"`
	RedisAddr     string `env:"REDIS_ADDR"`
	SeedDocument  bool   `env:"SEED_DOCUMENT" envDefault:"false"`

	// Observability
	OTELExporterType     string `env:"OTEL_EXPORTER_TYPE" envDefault:"stdout"` // "stdout", "otlp" or "none"
	OTELExporterEndpoint string `env:"OTEL_EXPORTER_ENDPOINT" envDefault:"localhost:4317"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "text" or "json"
	LogFile   string `env:"LOG_FILE"`
}

func Load() (*Config, error) {
	// Load .env file if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.DocumentStore {
	case StoreMemory:
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when DOCUMENT_STORE=redis")
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required when DOCUMENT_STORE=postgres")
		}
	default:
		return fmt.Errorf("invalid DOCUMENT_STORE %q", c.DocumentStore)
	}

	if c.UpstreamTimeout < 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must not be negative")
	}

	return nil
}
