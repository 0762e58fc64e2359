package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type factory struct {
	name string
	open func(t *testing.T) Storage
}

func factories() []factory {
	return []factory{
		{"memory", func(t *testing.T) Storage { return NewMemory() }},
		{"sqlite", func(t *testing.T) Storage {
			s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "session.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		}},
		{"redis", func(t *testing.T) Storage {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return NewRedis(client)
		}},
	}
}

func TestStorage_Contract(t *testing.T) {
	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("absent key is nil, nil", func(t *testing.T) {
				s := f.open(t)
				v, err := s.Get(ctx, "absent")
				require.NoError(t, err)
				require.Nil(t, v)
			})

			t.Run("set then get, upsert overwrites", func(t *testing.T) {
				s := f.open(t)
				require.NoError(t, s.Set(ctx, "k", []byte("old")))
				require.NoError(t, s.Set(ctx, "k", []byte("new")))

				v, err := s.Get(ctx, "k")
				require.NoError(t, err)
				require.Equal(t, []byte("new"), v)
			})

			t.Run("delete is idempotent", func(t *testing.T) {
				s := f.open(t)
				require.NoError(t, s.Set(ctx, "x", []byte{1}))
				require.NoError(t, s.Delete(ctx, "x"))
				require.NoError(t, s.Delete(ctx, "x"))

				v, err := s.Get(ctx, "x")
				require.NoError(t, err)
				require.Nil(t, v)
			})

			t.Run("update writes and removes together", func(t *testing.T) {
				s := f.open(t)
				require.NoError(t, s.Set(ctx, "stale", []byte("1")))

				err := s.Update(ctx, map[string][]byte{
					"a": []byte("A"),
					"b": []byte("B"),
				}, []string{"stale"})
				require.NoError(t, err)

				a, _ := s.Get(ctx, "a")
				b, _ := s.Get(ctx, "b")
				stale, _ := s.Get(ctx, "stale")
				require.Equal(t, []byte("A"), a)
				require.Equal(t, []byte("B"), b)
				require.Nil(t, stale)
			})
		})
	}
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	in := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", in))
	in[0] = 'X'

	out, _ := m.Get(ctx, "k")
	require.Equal(t, []byte("abc"), out)
	out[0] = 'Y'

	again, _ := m.Get(ctx, "k")
	require.Equal(t, []byte("abc"), again)
}

func TestSQLite_MigrationsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")

	s1, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s1.Set(ctx, "k", []byte("v")))
	require.NoError(t, s1.Close())

	s2, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s2.Close()

	v, err := s2.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v, "data survives reopen")
}

func TestSQLite_ErrorsAreWrapped(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Get(ctx, "k")
	require.ErrorContains(t, err, "failed to get session_kv[k]")

	err = s.Set(ctx, "k", []byte("v"))
	require.ErrorContains(t, err, "failed to set session_kv[k]")

	err = s.Update(ctx, map[string][]byte{"k": nil}, nil)
	require.ErrorContains(t, err, "failed to begin tx")
}

func TestDialRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := DialRedis(context.Background(), addr)
	require.ErrorContains(t, err, "redis ping")
}

func TestDialRedis_OwnsClient(t *testing.T) {
	mr := miniredis.RunT(t)
	r, err := DialRedis(context.Background(), mr.Addr())
	require.NoError(t, err)
	require.NoError(t, r.Set(context.Background(), "k", []byte("v")))
	require.NoError(t, r.Close())
	require.Error(t, r.Client().Ping(context.Background()).Err())
}
