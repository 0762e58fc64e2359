// Package config loads runtime configuration for the session client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file selected via -c or -config (JSON/YAML/TOML) and
//     AUTHSESSION_* environment variables, both read through viper.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// # File schema
//
//	{
//	  "base_url": "http://127.0.0.1:8080",
//	  "refresh_threshold": "5m",
//	  "max_retries": 3,
//	  "retry_base_delay": "300ms",
//	  "storage_driver": "sqlite",
//	  "storage_path": "session.db"
//	}
package config
