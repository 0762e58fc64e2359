package config

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/authsession/internal/flagx"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. AUTHSESSION_BASE_URL.
const EnvPrefix = "AUTHSESSION"

// fileConfig is the on-disk/env shape. Durations accept "3s"-style strings.
type fileConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	RefreshTimeout   time.Duration `mapstructure:"refresh_timeout"`
	RefreshThreshold time.Duration `mapstructure:"refresh_threshold"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryBaseDelay   time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay    time.Duration `mapstructure:"retry_max_delay"`
	StorageDriver    string        `mapstructure:"storage_driver"`
	StoragePath      string        `mapstructure:"storage_path"`
	RedisAddr        string        `mapstructure:"redis_addr"`
	KeyPrefix        string        `mapstructure:"key_prefix"`
	LogLevel         string        `mapstructure:"log_level"`
	LogPretty        bool          `mapstructure:"log_pretty"`
	MetricsAddr      string        `mapstructure:"metrics_addr"`
}

// parseFile overlays cfg with the file selected by -c/-config (JSON, YAML or
// TOML, by extension) and with AUTHSESSION_* environment variables. Values
// already in cfg act as defaults. Panics on unreadable or malformed files.
func parseFile(cfg *Config) {
	v := viper.New()

	v.SetDefault("base_url", cfg.BaseURL)
	v.SetDefault("request_timeout", cfg.RequestTimeout)
	v.SetDefault("refresh_timeout", cfg.RefreshTimeout)
	v.SetDefault("refresh_threshold", cfg.RefreshThreshold)
	v.SetDefault("max_retries", cfg.MaxRetries)
	v.SetDefault("retry_base_delay", cfg.RetryBaseDelay)
	v.SetDefault("retry_max_delay", cfg.RetryMaxDelay)
	v.SetDefault("storage_driver", cfg.StorageDriver)
	v.SetDefault("storage_path", cfg.StoragePath)
	v.SetDefault("redis_addr", cfg.RedisAddr)
	v.SetDefault("key_prefix", cfg.KeyPrefix)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_pretty", cfg.LogPretty)
	v.SetDefault("metrics_addr", cfg.MetricsAddr)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := flagx.ConfigFileFlag(); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			panic(err)
		}
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		panic(err)
	}

	cfg.BaseURL = fc.BaseURL
	cfg.RequestTimeout = fc.RequestTimeout
	cfg.RefreshTimeout = fc.RefreshTimeout
	cfg.RefreshThreshold = fc.RefreshThreshold
	cfg.MaxRetries = fc.MaxRetries
	cfg.RetryBaseDelay = fc.RetryBaseDelay
	cfg.RetryMaxDelay = fc.RetryMaxDelay
	cfg.StorageDriver = fc.StorageDriver
	cfg.StoragePath = fc.StoragePath
	cfg.RedisAddr = fc.RedisAddr
	cfg.KeyPrefix = fc.KeyPrefix
	cfg.LogLevel = fc.LogLevel
	cfg.LogPretty = fc.LogPretty
	cfg.MetricsAddr = fc.MetricsAddr
}
