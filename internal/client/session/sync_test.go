package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/authsession/internal/client/broadcast"
	"github.com/dmitrijs2005/authsession/internal/client/events"
	"github.com/dmitrijs2005/authsession/internal/client/storage"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sharedMedium struct {
	name string
	kv   func(t *testing.T) (storage.Storage, broadcast.Broadcaster)
}

func media() []sharedMedium {
	return []sharedMedium{
		{"memory+hub", func(t *testing.T) (storage.Storage, broadcast.Broadcaster) {
			return storage.NewMemory(), broadcast.NewHub()
		}},
		{"redis", func(t *testing.T) (storage.Storage, broadcast.Broadcaster) {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return storage.NewRedis(client), broadcast.NewRedis(client, "authsession:changes")
		}},
	}
}

func TestCrossContextSync(t *testing.T) {
	for _, md := range media() {
		t.Run(md.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			b := newBackend(t)
			kv, bc := md.kv(t)
			tabA := newTab(t, b.srv.URL, kv, bc, "tab-a")
			tabB := newTab(t, b.srv.URL, kv, bc, "tab-b")
			require.NoError(t, tabA.c.Watch(ctx, bc))
			require.NoError(t, tabB.c.Watch(ctx, bc))

			_, err := tabA.c.Login(ctx, goodCreds)
			require.NoError(t, err)

			require.Eventually(t, func() bool {
				s := tabB.c.Session()
				return s.IsAuthenticated && s.User != nil && s.User.ID == "u1"
			}, 2*time.Second, 10*time.Millisecond, "tab B did not pick up the login")
			tabB.expect(t, events.KindLogin)

			require.NoError(t, tabA.c.Logout(ctx))

			require.Eventually(t, func() bool {
				return !tabB.c.Session().IsAuthenticated
			}, 2*time.Second, 10*time.Millisecond, "tab B did not pick up the logout")
			assert.Nil(t, tabB.c.Session().User)
			tabB.expect(t, events.KindLogout)
		})
	}
}

func TestCrossContextRefreshIsShared(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := newBackend(t)
	kv, bc := storage.NewMemory(), broadcast.NewHub()
	tabA := newTab(t, b.srv.URL, kv, bc, "tab-a")
	tabB := newTab(t, b.srv.URL, kv, bc, "tab-b")
	require.NoError(t, tabB.c.Watch(ctx, bc))

	_, err := tabA.c.Login(ctx, goodCreds)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return tabB.c.Session().IsAuthenticated }, 2*time.Second, 10*time.Millisecond)

	_, err = tabA.c.Refresh(ctx)
	require.NoError(t, err)

	// Tab B reads the rotated pair from shared storage and can use it.
	u, err := tabB.c.FetchCurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, int32(1), b.refreshCalls.Load())
}

func TestWatchIgnoresOwnChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := newBackend(t)
	kv, bc := storage.NewMemory(), broadcast.NewHub()
	tabA := newTab(t, b.srv.URL, kv, bc, "tab-a")
	require.NoError(t, tabA.c.Watch(ctx, bc))

	_, err := tabA.c.Login(ctx, goodCreds)
	require.NoError(t, err)
	tabA.expect(t, events.KindLogin)

	// A re-derivation from its own write would publish a second login.
	select {
	case e := <-tabA.events:
		t.Fatalf("unexpected %s event", e.Kind)
	case <-time.After(200 * time.Millisecond):
	}
}
