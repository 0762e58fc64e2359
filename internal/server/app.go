// Package server wires the development backend: users service, in-memory
// repositories and the HTTP transport, with graceful shutdown on signals.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/dmitrijs2005/authsession/internal/logging"
	"github.com/dmitrijs2005/authsession/internal/server/config"
	"github.com/dmitrijs2005/authsession/internal/server/httpserver"
	"github.com/dmitrijs2005/authsession/internal/server/refreshtokens"
	"github.com/dmitrijs2005/authsession/internal/server/users"
)

type App struct {
	config      *config.Config
	logger      *logging.ZapLogger
	userService *users.Service
}

func NewApp(c *config.Config) (*App, error) {
	logger, err := logging.New(logging.Config{Level: c.LogLevel, Pretty: c.LogPretty, App: "authsession-server"})
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	us := users.NewService(users.NewMemoryRepository(), refreshtokens.NewMemoryRepository(), c)

	return &App{config: c, logger: logger, userService: us}, nil
}

// seed creates the configured demo account. An existing account is kept.
func (app *App) seed(ctx context.Context) error {
	if app.config.SeedEmail == "" || app.config.SeedPassword == "" {
		return nil
	}
	_, _, err := app.userService.Register(ctx, app.config.SeedEmail, app.config.SeedPassword, "Demo")
	if err != nil && !errors.Is(err, common.ErrAlreadyExists) {
		return fmt.Errorf("seed user: %w", err)
	}
	app.logger.Info(ctx, "Seeded user", "email", app.config.SeedEmail)
	return nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) error {
	s := httpserver.NewHTTPServer(app.config.Addr, app.logger, app.userService)
	if err := s.Run(ctx); err != nil {
		cancelFunc()
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Run serves until ctx is cancelled or a signal arrives. A server that fails
// to start or stops abnormally is logged and its error returned.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer func() { _ = app.logger.Sync() }()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	if err := app.seed(ctx); err != nil {
		app.logger.Error(ctx, "startup failed", "error", err)
		return err
	}

	var (
		wg     sync.WaitGroup
		srvErr error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		srvErr = app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()
	if srvErr != nil {
		app.logger.Error(ctx, "app stopped", "error", srvErr)
	}
	return srvErr
}
