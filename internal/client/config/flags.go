package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/authsession/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-u string   backend base URL
//	-s string   storage driver: memory, sqlite, redis
//	-p string   SQLite database path
//	-r string   Redis address
//	-t int      proactive refresh threshold (seconds)
//	-l string   log level
//	-m string   metrics listen address ("" disables)
//
// Only these flags are looked at; see flagx.FilterArgs.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-u", "-s", "-p", "-r", "-t", "-l", "-m"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.BaseURL, "u", cfg.BaseURL, "backend base URL")
	fs.StringVar(&cfg.StorageDriver, "s", cfg.StorageDriver, "storage driver (memory|sqlite|redis)")
	fs.StringVar(&cfg.StoragePath, "p", cfg.StoragePath, "sqlite database path")
	fs.StringVar(&cfg.RedisAddr, "r", cfg.RedisAddr, "redis address")
	threshold := fs.Int("t", int(cfg.RefreshThreshold.Seconds()), "refresh threshold (in seconds)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.MetricsAddr, "m", cfg.MetricsAddr, "metrics listen address")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RefreshThreshold = time.Duration(*threshold) * time.Second
}
