package application

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/meghal86/smart-stake-hunter/internal/infrastructure/cache"
	"github.com/meghal86/smart-stake-hunter/internal/persistence/postgres"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// FeedConfig tunes the feed pipeline's cache behavior.
type FeedConfig struct {
	PageTTLSeconds        int `yaml:"page_ttl_seconds"`
	EligibilityTTLSeconds int `yaml:"eligibility_ttl_seconds"`
}

// PageTTL is the response-cache lifetime for feed pages.
func (c FeedConfig) PageTTL() time.Duration {
	return time.Duration(c.PageTTLSeconds) * time.Second
}

// EligibilityTTL is the verdict-cache lifetime.
func (c FeedConfig) EligibilityTTL() time.Duration {
	return time.Duration(c.EligibilityTTLSeconds) * time.Second
}

// ProviderConfig points at one whale-data provider.
type ProviderConfig struct {
	WSEndpoint   string `yaml:"ws_endpoint"`
	RESTEndpoint string `yaml:"rest_endpoint"`
	APIKey       string `yaml:"api_key"`
}

// IngestConfig tunes the whale ingestion worker.
type IngestConfig struct {
	Chains              []string       `yaml:"chains"`
	PrimaryProvider     string         `yaml:"primary_provider"`
	Alchemy             ProviderConfig `yaml:"alchemy"`
	Moralis             ProviderConfig `yaml:"moralis"`
	RateLimitPerSec     int            `yaml:"rate_limit_per_sec"`
	RetryBaseSeconds    float64        `yaml:"retry_base_seconds"`
	RetryMaxSeconds     float64        `yaml:"retry_max_seconds"`
	RetryMaxAttempts    int            `yaml:"retry_max_attempts"`
	StreamLagSeconds    int            `yaml:"stream_lag_seconds"`
	BackfillWindowHours int            `yaml:"backfill_window_hours"`
}

// BackfillWindow is how far back a cold backfill reaches.
func (c IngestConfig) BackfillWindow() time.Duration {
	return time.Duration(c.BackfillWindowHours) * time.Hour
}

// StreamLag is the horizon backfill stops short of, left to streaming.
func (c IngestConfig) StreamLag() time.Duration {
	return time.Duration(c.StreamLagSeconds) * time.Second
}

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Database postgres.Config `yaml:"database"`
	Redis    cache.Config    `yaml:"redis"`
	Feed     FeedConfig      `yaml:"feed"`
	Ingest   IngestConfig    `yaml:"ingest"`
}

// LoadConfig reads YAML configuration with environment overrides and
// defaults. A missing file is not an error; env and defaults still apply.
func LoadConfig(path string) (*Config, error) {
	var config Config

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
			if err := yaml.Unmarshal(data, &config); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(&config)
	applyDefaults(&config)
	return &config, nil
}

func applyEnvOverrides(config *Config) {
	if dsn := os.Getenv("PG_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		config.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		config.Redis.Password = password
	}
	if port := os.Getenv("HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if key := os.Getenv("ALCHEMY_API_KEY"); key != "" {
		config.Ingest.Alchemy.APIKey = key
	}
	if key := os.Getenv("MORALIS_API_KEY"); key != "" {
		config.Ingest.Moralis.APIKey = key
	}
}

func applyDefaults(config *Config) {
	if config.Server.Host == "" {
		config.Server.Host = "127.0.0.1"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 10 * time.Second
	}
	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = 10 * time.Second
	}
	if config.Server.IdleTimeout == 0 {
		config.Server.IdleTimeout = 60 * time.Second
	}

	if config.Database.MaxOpenConns == 0 {
		config.Database.MaxOpenConns = 10
	}
	if config.Database.MaxIdleConns == 0 {
		config.Database.MaxIdleConns = 5
	}
	if config.Database.ConnMaxLifetime == 0 {
		config.Database.ConnMaxLifetime = 30 * time.Minute
	}
	if config.Database.ConnMaxIdleTime == 0 {
		config.Database.ConnMaxIdleTime = 5 * time.Minute
	}
	if config.Database.QueryTimeout == 0 {
		config.Database.QueryTimeout = 10 * time.Second
	}

	if config.Redis.Addr == "" {
		config.Redis.Addr = "localhost:6379"
	}
	if config.Redis.KeyPrefix == "" {
		config.Redis.KeyPrefix = "hunter:"
	}
	if config.Redis.DefaultTTL == 0 {
		config.Redis.DefaultTTL = 60 * time.Second
	}

	if config.Feed.PageTTLSeconds == 0 {
		config.Feed.PageTTLSeconds = 60
	}
	if config.Feed.EligibilityTTLSeconds == 0 {
		config.Feed.EligibilityTTLSeconds = 300
	}

	if len(config.Ingest.Chains) == 0 {
		config.Ingest.Chains = []string{"ethereum"}
	}
	if config.Ingest.PrimaryProvider == "" {
		config.Ingest.PrimaryProvider = "alchemy"
	}
	if config.Ingest.RateLimitPerSec == 0 {
		config.Ingest.RateLimitPerSec = 10
	}
	if config.Ingest.RetryBaseSeconds == 0 {
		config.Ingest.RetryBaseSeconds = 1.0
	}
	if config.Ingest.RetryMaxSeconds == 0 {
		config.Ingest.RetryMaxSeconds = 30.0
	}
	if config.Ingest.RetryMaxAttempts == 0 {
		config.Ingest.RetryMaxAttempts = 5
	}
	if config.Ingest.StreamLagSeconds == 0 {
		config.Ingest.StreamLagSeconds = 30
	}
	if config.Ingest.BackfillWindowHours == 0 {
		config.Ingest.BackfillWindowHours = 24
	}
}
