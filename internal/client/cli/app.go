package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/authsession/internal/client/broadcast"
	"github.com/dmitrijs2005/authsession/internal/client/config"
	"github.com/dmitrijs2005/authsession/internal/client/events"
	"github.com/dmitrijs2005/authsession/internal/client/httpclient"
	"github.com/dmitrijs2005/authsession/internal/client/session"
	"github.com/dmitrijs2005/authsession/internal/client/storage"
	"github.com/dmitrijs2005/authsession/internal/client/tokens"
	"github.com/dmitrijs2005/authsession/internal/logging"
	"github.com/dmitrijs2005/authsession/internal/retry"
	"github.com/google/uuid"
)

type App struct {
	config  *config.Config
	logger  *logging.ZapLogger
	kv      storage.Storage
	bc      broadcast.Broadcaster
	bus     *events.Bus
	tokens  *tokens.Manager
	api     *httpclient.Client
	session *session.Coordinator
	reader  *bufio.Reader
	out     io.Writer
}

// NewApp opens the configured session storage and assembles the session
// stack on top of it.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(logging.Config{Level: c.LogLevel, Pretty: c.LogPretty, App: "authsession-cli"})
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	kv, bc, err := openStorage(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	return newApp(c, logger, kv, bc, bufio.NewReader(os.Stdin), os.Stdout), nil
}

// openStorage picks the storage driver. Redis sessions are shared between
// processes, so they get a Redis broadcaster; everything else is local to
// this process.
func openStorage(ctx context.Context, c *config.Config) (storage.Storage, broadcast.Broadcaster, error) {
	switch c.StorageDriver {
	case config.StorageMemory:
		return storage.NewMemory(), broadcast.NewHub(), nil
	case config.StorageSQLite:
		db, err := storage.OpenSQLite(ctx, c.StoragePath)
		if err != nil {
			return nil, nil, err
		}
		return db, broadcast.NewHub(), nil
	case config.StorageRedis:
		r, err := storage.DialRedis(ctx, c.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return r, broadcast.NewRedis(r.Client(), c.KeyPrefix+":changes"), nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", c.StorageDriver)
}

func newApp(c *config.Config, logger *logging.ZapLogger, kv storage.Storage, bc broadcast.Broadcaster, in *bufio.Reader, out io.Writer) *App {
	bus := events.NewBus()
	store := tokens.NewStore(kv, c.KeyPrefix,
		tokens.WithBroadcaster(bc, uuid.NewString()),
		tokens.WithStoreLogger(logger.With("module", "store")))
	tm := tokens.NewManager(store, bus,
		tokens.WithThreshold(c.RefreshThreshold),
		tokens.WithRefreshTimeout(c.RefreshTimeout),
		tokens.WithLogger(logger.With("module", "tokens")))
	api := httpclient.New(c.BaseURL, tm, bus,
		httpclient.WithTimeout(c.RequestTimeout),
		httpclient.WithRetries(c.MaxRetries),
		httpclient.WithBackoff(retry.ExpoJitter{Base: c.RetryBaseDelay, Max: c.RetryMaxDelay, Jitter: 0.2}),
		httpclient.WithLogger(logger.With("module", "http")))
	coord := session.New(api, tm, store, bus, session.WithLogger(logger.With("module", "session")))

	return &App{
		config:  c,
		logger:  logger,
		kv:      kv,
		bc:      bc,
		bus:     bus,
		tokens:  tm,
		api:     api,
		session: coord,
		reader:  in,
		out:     out,
	}
}

// Run restores the previous session, starts cross-context sync and the
// optional metrics endpoint, and blocks in the REPL.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.Close()

	stopNotify := a.printNotifications()
	defer stopNotify()

	if _, err := a.session.Initialize(ctx); err != nil {
		a.logger.Warn(ctx, "could not restore session", "error", err)
	}
	if err := a.session.Watch(ctx, a.bc); err != nil {
		a.logger.Warn(ctx, "cross-context sync disabled", "error", err)
	}

	if a.config.MetricsAddr != "" {
		ms := bootstrapMetricsServer(a.config.MetricsAddr, a.health, a.logger)
		defer func() {
			shutdownCtx, c := context.WithTimeout(context.Background(), 2*time.Second)
			defer c()
			_ = ms.Shutdown(shutdownCtx)
		}()
	}

	fmt.Fprintln(a.out, "Welcome to authsession CLI (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}

// health reports whether session storage is reachable.
func (a *App) health(ctx context.Context) error {
	_, err := a.kv.Get(ctx, a.config.KeyPrefix+":health")
	return err
}

// Close stops background work and releases storage.
func (a *App) Close() {
	a.session.Close()
	a.tokens.Close()
	if err := a.kv.Close(); err != nil {
		a.logger.Warn(context.Background(), "storage close failed", "error", err)
	}
	_ = a.logger.Sync()
}
