package httpserver

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/authsession/internal/client/api"
	"github.com/dmitrijs2005/authsession/internal/client/events"
	"github.com/dmitrijs2005/authsession/internal/client/httpclient"
	"github.com/dmitrijs2005/authsession/internal/client/session"
	"github.com/dmitrijs2005/authsession/internal/client/storage"
	"github.com/dmitrijs2005/authsession/internal/client/tokens"
	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionAgainstBackend(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bus := events.NewBus()
	store := tokens.NewStore(storage.NewMemory(), "e2e")
	tm := tokens.NewManager(store, bus)
	t.Cleanup(tm.Close)
	client := httpclient.New(srv.URL, tm, bus, httpclient.WithRetries(1))
	c := session.New(client, tm, store, bus)
	t.Cleanup(c.Close)

	s, err := c.Register(ctx, api.RegisterInput{Email: "bob@example.com", Password: "secret1", Name: "Bob"})
	require.NoError(t, err)
	require.True(t, s.IsAuthenticated)

	u, err := c.FetchCurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", u.Email)

	before, err := store.RefreshToken(ctx)
	require.NoError(t, err)
	_, err = c.Refresh(ctx)
	require.NoError(t, err)
	after, err := store.RefreshToken(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, before, after, "backend rotates refresh tokens")

	require.NoError(t, c.Logout(ctx))
	assert.False(t, c.Session().IsAuthenticated)

	_, err = c.FetchCurrentUser(ctx)
	require.Error(t, err)

	_, err = c.Login(ctx, api.Credentials{Email: "bob@example.com", Password: "wrong"})
	require.ErrorIs(t, err, common.ErrInvalidCredentials)
}
