// Package config handles configuration for the development backend,
// including defaults, a config file and environment overlay, and
// command-line flags.
package config

import "time"

// Config holds runtime settings for the development backend.
//
// Fields:
//   - Addr: HTTP bind address.
//   - SecretKey: HMAC secret for signing JWTs (HS256). Do not use the default outside development.
//   - AccessTokenValidityDuration / RefreshTokenValidityDuration: token lifetimes.
//   - ReuseGrace: how long a rotated refresh token still yields the pair it was exchanged for.
//   - SeedEmail / SeedPassword: account created on start when both are set.
type Config struct {
	Addr                         string
	SecretKey                    string
	AccessTokenValidityDuration  time.Duration
	RefreshTokenValidityDuration time.Duration
	ReuseGrace                   time.Duration
	SeedEmail                    string
	SeedPassword                 string
	LogLevel                     string
	LogPretty                    bool
}

// LoadDefaults populates Config with development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.Addr = ":8080"
	c.SecretKey = "secretKey"
	c.AccessTokenValidityDuration = 15 * time.Minute
	c.RefreshTokenValidityDuration = 24 * time.Hour
	c.ReuseGrace = 15 * time.Second
	c.SeedEmail = "demo@example.com"
	c.SeedPassword = "password123"
	c.LogLevel = "info"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional config file and the environment and finally from
// command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)
	parseFlags(cfg)
	return cfg
}
