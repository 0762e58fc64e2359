package server

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/authsession/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedIsIdempotent(t *testing.T) {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.LogLevel = "error"

	app, err := NewApp(cfg)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, app.seed(ctx))
	require.NoError(t, app.seed(ctx))

	u, _, err := app.userService.Login(ctx, cfg.SeedEmail, cfg.SeedPassword)
	require.NoError(t, err)
	assert.Equal(t, cfg.SeedEmail, u.Email)
}

func TestRunStopsWithContext(t *testing.T) {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.Addr = "127.0.0.1:0"
	cfg.LogLevel = "error"

	app, err := NewApp(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, app.Run(ctx))
}

func TestRunReportsServerFailure(t *testing.T) {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.Addr = "not-an-address"
	cfg.LogLevel = "error"

	app, err := NewApp(cfg)
	require.NoError(t, err)

	err = app.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http server")
}
