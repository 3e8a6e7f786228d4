// Package config loads and validates spider CLI configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultContentType is the response format requested when none is configured.
const DefaultContentType = "application/json"

// MaxRetryAttempts is the ceiling on attempts per request, first try included.
const MaxRetryAttempts = 5

// Config captures all CLI configuration knobs loaded via Viper.
type Config struct {
	APIKey      string        `mapstructure:"api_key"`
	APIURL      string        `mapstructure:"api_url"`
	ContentType string        `mapstructure:"content_type"`
	HTTP        HTTPConfig    `mapstructure:"http"`
	Retry       RetryConfig   `mapstructure:"retry"`
	Logging     LoggingConfig `mapstructure:"logging"`
	Keyring     KeyringConfig `mapstructure:"keyring"`
	Output      OutputConfig  `mapstructure:"output"`
	PubSub      PubSubConfig  `mapstructure:"pubsub"`
	Metrics     MetricsConfig `mapstructure:"metrics"`
}

// HTTPConfig configures the transport.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// RetryConfig shapes the exponential backoff.
type RetryConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
	BaseDelayMs int `mapstructure:"base_delay_ms"`
	MaxDelayMs  int `mapstructure:"max_delay_ms"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// KeyringConfig names the OS secret store entry holding the API key.
type KeyringConfig struct {
	Service string `mapstructure:"service"`
	User    string `mapstructure:"user"`
}

// OutputConfig selects where streamed records and downloads are stored.
type OutputConfig struct {
	URI    string `mapstructure:"uri"`
	Prefix string `mapstructure:"prefix"`
}

// PubSubConfig holds the topic streamed records are published to.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MetricsConfig toggles Prometheus collection.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SPIDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// AutomaticEnv only resolves keys viper already knows about.
	v.SetDefault("api_key", "")
	v.SetDefault("api_url", "")
	v.SetDefault("content_type", DefaultContentType)
	v.SetDefault("http.timeout_seconds", 120)
	v.SetDefault("retry.max_attempts", MaxRetryAttempts)
	v.SetDefault("retry.base_delay_ms", 250)
	v.SetDefault("retry.max_delay_ms", 5000)
	v.SetDefault("logging.development", false)
	v.SetDefault("keyring.service", "spider_client")
	v.SetDefault("keyring.user", "default")
	v.SetDefault("output.uri", "")
	v.SetDefault("output.prefix", "records")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("metrics.enabled", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Retry.MaxAttempts <= 0 || c.Retry.MaxAttempts > MaxRetryAttempts {
		return fmt.Errorf("retry.max_attempts must be between 1 and %d", MaxRetryAttempts)
	}
	if c.Retry.BaseDelayMs < 0 || c.Retry.MaxDelayMs < c.Retry.BaseDelayMs {
		return fmt.Errorf("retry.max_delay_ms must be >= retry.base_delay_ms >= 0")
	}
	if c.APIURL != "" {
		u, err := url.Parse(c.APIURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("api_url must be an absolute URL")
		}
	}
	if c.Keyring.Service == "" || c.Keyring.User == "" {
		return fmt.Errorf("keyring.service and keyring.user must be set")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// HTTPTimeout returns the per-attempt transport timeout.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// BaseDelay returns the first retry backoff.
func (c Config) BaseDelay() time.Duration {
	return time.Duration(c.Retry.BaseDelayMs) * time.Millisecond
}

// MaxDelay returns the backoff ceiling.
func (c Config) MaxDelay() time.Duration {
	return time.Duration(c.Retry.MaxDelayMs) * time.Millisecond
}
