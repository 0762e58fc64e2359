package config

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/authsession/internal/flagx"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. AUTHSESSION_SERVER_ADDR.
const EnvPrefix = "AUTHSESSION_SERVER"

type fileConfig struct {
	Addr                 string        `mapstructure:"addr"`
	SecretKey            string        `mapstructure:"secret_key"`
	AccessTokenValidity  time.Duration `mapstructure:"access_token_validity"`
	RefreshTokenValidity time.Duration `mapstructure:"refresh_token_validity"`
	ReuseGrace           time.Duration `mapstructure:"reuse_grace"`
	SeedEmail            string        `mapstructure:"seed_email"`
	SeedPassword         string        `mapstructure:"seed_password"`
	LogLevel             string        `mapstructure:"log_level"`
	LogPretty            bool          `mapstructure:"log_pretty"`
}

// parseFile overlays cfg with the file selected by -c/-config and with
// AUTHSESSION_SERVER_* environment variables. Panics on unreadable or
// malformed files.
func parseFile(cfg *Config) {
	v := viper.New()

	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("secret_key", cfg.SecretKey)
	v.SetDefault("access_token_validity", cfg.AccessTokenValidityDuration)
	v.SetDefault("refresh_token_validity", cfg.RefreshTokenValidityDuration)
	v.SetDefault("reuse_grace", cfg.ReuseGrace)
	v.SetDefault("seed_email", cfg.SeedEmail)
	v.SetDefault("seed_password", cfg.SeedPassword)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_pretty", cfg.LogPretty)

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

	cfg.Addr = fc.Addr
	cfg.SecretKey = fc.SecretKey
	cfg.AccessTokenValidityDuration = fc.AccessTokenValidity
	cfg.RefreshTokenValidityDuration = fc.RefreshTokenValidity
	cfg.ReuseGrace = fc.ReuseGrace
	cfg.SeedEmail = fc.SeedEmail
	cfg.SeedPassword = fc.SeedPassword
	cfg.LogLevel = fc.LogLevel
	cfg.LogPretty = fc.LogPretty
}
