package cli

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/authsession/internal/client/broadcast"
	"github.com/dmitrijs2005/authsession/internal/client/config"
	"github.com/dmitrijs2005/authsession/internal/client/storage"
	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/dmitrijs2005/authsession/internal/logging"
	serverconfig "github.com/dmitrijs2005/authsession/internal/server/config"
	"github.com/dmitrijs2005/authsession/internal/server/httpserver"
	"github.com/dmitrijs2005/authsession/internal/server/refreshtokens"
	"github.com/dmitrijs2005/authsession/internal/server/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &serverconfig.Config{}
	cfg.LoadDefaults()
	us := users.NewService(users.NewMemoryRepository(), refreshtokens.NewMemoryRepository(), cfg)
	srv := httptest.NewServer(httpserver.NewHTTPServer("127.0.0.1:0", logging.NewNop(), us).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func newTestApp(t *testing.T, input string) (*App, *syncBuffer) {
	t.Helper()
	srv := newBackend(t)

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.BaseURL = srv.URL
	cfg.StorageDriver = config.StorageMemory
	cfg.MaxRetries = 0

	out := &syncBuffer{}
	a := newApp(cfg, logging.NewNop(), storage.NewMemory(), broadcast.NewHub(), bufio.NewReader(strings.NewReader(input)), out)
	return a, out
}

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	old := getPassword
	getPassword = func(_ *bufio.Reader, _ io.Writer) ([]byte, error) { return []byte(pw), nil }
	t.Cleanup(func() { getPassword = old })
}

func TestApp_SessionCommands(t *testing.T) {
	ctx := context.Background()
	a, out := newTestApp(t, "ann@example.com\nAnn\nann@example.com\nann@example.com\n")
	t.Cleanup(a.Close)
	stop := a.printNotifications()
	t.Cleanup(stop)

	stubPassword(t, "secret1")
	require.NoError(t, a.Register(ctx))
	assert.True(t, a.isLoggedIn())
	assert.Equal(t, "(ann@example.com)", a.getStatus())
	assert.Contains(t, out.String(), "* registered as ann@example.com")

	require.NoError(t, a.Me(ctx))
	assert.Contains(t, out.String(), "email: ann@example.com")

	require.NoError(t, a.Get(ctx, "auth/me"))
	assert.Contains(t, out.String(), `"email": "ann@example.com"`)

	require.NoError(t, a.Refresh(ctx))
	assert.Contains(t, out.String(), "* session refreshed")

	require.NoError(t, a.Status(ctx))
	assert.Contains(t, out.String(), "authenticated: true")
	assert.Contains(t, out.String(), "token expires:")

	require.NoError(t, a.Logout(ctx))
	assert.False(t, a.isLoggedIn())
	assert.Equal(t, "(anonymous)", a.getStatus())
	assert.Contains(t, out.String(), "* signed out")

	stubPassword(t, "wrong-password")
	require.ErrorIs(t, a.Login(ctx), common.ErrInvalidCredentials)
	assert.False(t, a.isLoggedIn())

	stubPassword(t, "secret1")
	require.NoError(t, a.Login(ctx))
	assert.True(t, a.isLoggedIn())
	assert.Contains(t, out.String(), "* signed in as ann@example.com")
}

func TestApp_RegisterValidation(t *testing.T) {
	a, _ := newTestApp(t, "not-an-email\n\n")
	t.Cleanup(a.Close)

	stubPassword(t, "1")
	err := a.Register(context.Background())
	require.ErrorIs(t, err, common.ErrValidation)
	assert.Contains(t, err.Error(), "registration rejected")
	assert.False(t, a.isLoggedIn())
}

func TestApp_Run(t *testing.T) {
	capturePrints(t)
	a, out := newTestApp(t, "status\nhelp\nexit\n")

	a.Run(context.Background())

	assert.Contains(t, out.String(), "Welcome to authsession CLI")
	assert.Contains(t, out.String(), "authenticated: false")
}

func TestOpenStorage(t *testing.T) {
	ctx := context.Background()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.StorageDriver = config.StorageSQLite
	cfg.StoragePath = t.TempDir() + "/session.db"

	kv, bc, err := openStorage(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	assert.IsType(t, &storage.SQLite{}, kv)
	assert.IsType(t, &broadcast.Hub{}, bc)

	cfg.StorageDriver = "floppy"
	_, _, err = openStorage(ctx, cfg)
	require.Error(t, err)
}
