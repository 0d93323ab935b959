package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Webhook   WebhookConfig   `yaml:"webhook" mapstructure:"webhook"`
	Reconcile ReconcileConfig `yaml:"reconcile" mapstructure:"reconcile"`
	Monitor   MonitorConfig   `yaml:"monitor" mapstructure:"monitor"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// WebhookConfig configures the inbound callback security gate. Header names
// and the replay window are deliberate configuration inputs rather than
// hard-coded contract details.
type WebhookConfig struct {
	Secret            string  `yaml:"secret" mapstructure:"secret"`
	SignatureHeader   string  `yaml:"signature_header" mapstructure:"signature_header"`
	TimestampHeader   string  `yaml:"timestamp_header" mapstructure:"timestamp_header"`
	ReplayWindowSecs  int     `yaml:"replay_window_secs" mapstructure:"replay_window_secs"`
	MaxBodyBytes      int64   `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RateLimitPerSec   float64 `yaml:"rate_limit_per_sec" mapstructure:"rate_limit_per_sec"`
	RateLimitBurst    int     `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
	AllowedCORSOrigin string  `yaml:"allowed_cors_origin" mapstructure:"allowed_cors_origin"`
}

// ReplayWindow returns the replay tolerance as a duration.
func (w WebhookConfig) ReplayWindow() time.Duration {
	return time.Duration(w.ReplayWindowSecs) * time.Second
}

// ReconcileConfig configures the CRM reconciliation engine.
type ReconcileConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
	DefaultCountry      string  `yaml:"default_country" mapstructure:"default_country"`
}

// MonitorConfig configures the background health checker and its alert
// thresholds.
type MonitorConfig struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	ErrorRateThreshold   float64 `yaml:"error_rate_threshold" mapstructure:"error_rate_threshold"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CONVERSA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("webhook.signature_header", "X-Webhook-Signature")
	v.SetDefault("webhook.timestamp_header", "X-Webhook-Timestamp")
	v.SetDefault("webhook.replay_window_secs", 300)
	v.SetDefault("webhook.max_body_bytes", 1<<20)
	v.SetDefault("webhook.rate_limit_per_sec", 50)
	v.SetDefault("webhook.rate_limit_burst", 100)
	v.SetDefault("webhook.allowed_cors_origin", "*")
	v.SetDefault("reconcile.confidence_threshold", 0.5)
	v.SetDefault("reconcile.default_country", "Brasil")
	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.check_interval_secs", 300)
	v.SetDefault("monitor.lookback_window_hours", 24)
	v.SetDefault("monitor.failure_rate_threshold", 0.2)
	v.SetDefault("monitor.error_rate_threshold", 0.1)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if cfg.Webhook.ReplayWindowSecs <= 0 {
		return nil, eris.New("config: webhook replay window must be positive")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
