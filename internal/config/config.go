// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	DB        DBConfig        `mapstructure:"db"`
	Storage   StorageConfig   `mapstructure:"storage"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// PipelineConfig governs batch execution behavior.
type PipelineConfig struct {
	Concurrency        int    `mapstructure:"concurrency"`
	StepTimeoutSeconds int    `mapstructure:"step_timeout_seconds"`
	DraftPrefix        string `mapstructure:"draft_prefix"`
}

// ProviderConfig holds the connection settings for one external provider.
type ProviderConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ProvidersConfig groups the three external providers.
type ProvidersConfig struct {
	Brief      ProviderConfig `mapstructure:"brief"`
	Generation ProviderConfig `mapstructure:"generation"`
	QA         ProviderConfig `mapstructure:"qa"`
}

// BreakerConfig tunes the circuit breakers shared by brief and QA providers.
type BreakerConfig struct {
	FailureThreshold int  `mapstructure:"failure_threshold"`
	CooldownSeconds  int  `mapstructure:"cooldown_seconds"`
	ShadowMode       bool `mapstructure:"shadow_mode"`
}

// DBConfig controls access to the relational database. An empty DSN selects
// the in-memory page store.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MinConns     int    `mapstructure:"min_conns"`
}

// StorageConfig sets the draft archive destination. GCSBucket wins over
// LocalDir; leaving both empty disables archiving.
type StorageConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for completion event notifications. An empty
// topic disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CONTENTGEN")
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 60)
	v.SetDefault("pipeline.concurrency", 5)
	v.SetDefault("pipeline.step_timeout_seconds", 120)
	v.SetDefault("pipeline.draft_prefix", "drafts")
	v.SetDefault("providers.brief.enabled", true)
	v.SetDefault("providers.brief.timeout_seconds", 30)
	v.SetDefault("providers.generation.enabled", true)
	v.SetDefault("providers.generation.timeout_seconds", 120)
	v.SetDefault("providers.qa.enabled", true)
	v.SetDefault("providers.qa.timeout_seconds", 30)
	// Register env-only keys so AutomaticEnv values survive Unmarshal.
	for _, key := range []string{
		"auth.api_key",
		"providers.brief.base_url", "providers.brief.api_key",
		"providers.generation.base_url", "providers.generation.api_key", "providers.generation.model",
		"providers.qa.base_url", "providers.qa.api_key",
		"db.dsn",
		"storage.gcs_bucket", "storage.local_dir",
		"pubsub.project_id", "pubsub.topic_name",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.cooldown_seconds", 30)
	v.SetDefault("breaker.shadow_mode", false)
	v.SetDefault("storage.prefix", "drafts")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Pipeline.Concurrency <= 0 {
		return fmt.Errorf("pipeline.concurrency must be > 0")
	}
	if c.Pipeline.StepTimeoutSeconds <= 0 {
		return fmt.Errorf("pipeline.step_timeout_seconds must be > 0")
	}
	if c.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("breaker.failure_threshold must be > 0")
	}
	if c.Breaker.CooldownSeconds <= 0 {
		return fmt.Errorf("breaker.cooldown_seconds must be > 0")
	}
	if c.Providers.Brief.Enabled && c.Providers.Brief.BaseURL == "" {
		return fmt.Errorf("providers.brief.base_url must be set when the brief provider is enabled")
	}
	if c.Providers.Generation.BaseURL == "" {
		return fmt.Errorf("providers.generation.base_url is required")
	}
	if c.Providers.QA.Enabled && c.Providers.QA.BaseURL == "" {
		return fmt.Errorf("providers.qa.base_url must be set when the qa provider is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// StepTimeout converts the configured step timeout into a duration.
func (c Config) StepTimeout() time.Duration {
	return time.Duration(c.Pipeline.StepTimeoutSeconds) * time.Second
}

// BreakerCooldown converts the configured cool-down into a duration.
func (c Config) BreakerCooldown() time.Duration {
	return time.Duration(c.Breaker.CooldownSeconds) * time.Second
}

// ServerTimeout converts the HTTP request timeout into a duration.
func (c Config) ServerTimeout() time.Duration {
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}
