package tokens

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authsession/internal/client/broadcast"
	"github.com/dmitrijs2005/authsession/internal/client/storage"
	"github.com/dmitrijs2005/authsession/internal/logging"
)

// Store owns the persisted credentials: access token, refresh token and the
// serialized user profile, under keys namespaced by a prefix. Every write is
// announced on the broadcaster (if any) tagged with this store's origin.
type Store struct {
	kv     storage.Storage
	bc     broadcast.Broadcaster
	origin string
	log    logging.Logger

	accessKey  string
	refreshKey string
	userKey    string
}

type StoreOption func(*Store)

// WithBroadcaster announces writes to other contexts sharing kv.
func WithBroadcaster(bc broadcast.Broadcaster, origin string) StoreOption {
	return func(s *Store) {
		s.bc = bc
		s.origin = origin
	}
}

func WithStoreLogger(l logging.Logger) StoreOption {
	return func(s *Store) { s.log = l }
}

func NewStore(kv storage.Storage, prefix string, opts ...StoreOption) *Store {
	s := &Store{
		kv:         kv,
		log:        logging.NewNop(),
		accessKey:  prefix + ":access_token",
		refreshKey: prefix + ":refresh_token",
		userKey:    prefix + ":user",
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Origin identifies this store's writes on the broadcaster.
func (s *Store) Origin() string { return s.origin }

// Owns reports whether key is one of the session keys of this store.
func (s *Store) Owns(key string) bool {
	return key == s.accessKey || key == s.refreshKey || key == s.userKey
}

func (s *Store) AccessToken(ctx context.Context) (string, error) {
	return s.get(ctx, s.accessKey)
}

func (s *Store) RefreshToken(ctx context.Context) (string, error) {
	return s.get(ctx, s.refreshKey)
}

func (s *Store) User(ctx context.Context) ([]byte, error) {
	return s.kv.Get(ctx, s.userKey)
}

// SaveTokens writes both tokens in one update. An empty refresh token leaves
// the stored one in place.
func (s *Store) SaveTokens(ctx context.Context, access, refresh string) error {
	set := map[string][]byte{s.accessKey: []byte(access)}
	keys := []string{s.accessKey}
	if refresh != "" {
		set[s.refreshKey] = []byte(refresh)
		keys = append(keys, s.refreshKey)
	}
	if err := s.kv.Update(ctx, set, nil); err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}
	s.announce(ctx, keys)
	return nil
}

func (s *Store) SaveUser(ctx context.Context, user []byte) error {
	if err := s.kv.Set(ctx, s.userKey, user); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	s.announce(ctx, []string{s.userKey})
	return nil
}

// Clear removes tokens and profile.
func (s *Store) Clear(ctx context.Context) error {
	keys := []string{s.accessKey, s.refreshKey, s.userKey}
	if err := s.kv.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.announce(ctx, keys)
	return nil
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	v, err := s.kv.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// announce never fails the write it follows; other contexts will catch up on
// their next signal or read.
func (s *Store) announce(ctx context.Context, keys []string) {
	if s.bc == nil {
		return
	}
	c := broadcast.Change{Origin: s.origin, Keys: keys, At: time.Now().UTC()}
	if err := s.bc.Publish(ctx, c); err != nil {
		s.log.Warn(ctx, "session change not broadcast", "err", err)
	}
}
