package config

import (
	"time"

	"github.com/dmitrijs2005/authsession/internal/common"
)

// Storage drivers understood by StorageDriver.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
)

// Config holds runtime settings for the session client.
type Config struct {
	BaseURL          string
	RequestTimeout   time.Duration
	RefreshTimeout   time.Duration
	RefreshThreshold time.Duration
	MaxRetries       int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration

	StorageDriver string
	StoragePath   string
	RedisAddr     string
	KeyPrefix     string

	LogLevel    string
	LogPretty   bool
	MetricsAddr string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.BaseURL = "http://127.0.0.1:8080"
	c.RequestTimeout = 10 * time.Second
	c.RefreshTimeout = 10 * time.Second
	c.RefreshThreshold = common.DefaultRefreshThreshold
	c.MaxRetries = 3
	c.RetryBaseDelay = 300 * time.Millisecond
	c.RetryMaxDelay = 5 * time.Second
	c.StorageDriver = StorageSQLite
	c.StoragePath = "session.db"
	c.RedisAddr = "127.0.0.1:6379"
	c.KeyPrefix = "authsession"
	c.LogLevel = "info"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the config file and environment (if present) and command-line flags (if
// present). Later sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)
	parseFlags(cfg)
	return cfg
}
