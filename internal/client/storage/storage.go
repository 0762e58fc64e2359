// Package storage provides the persistent key/value layer that holds the
// session credentials. It is a pure storage wrapper: no policy lives here.
//
// Implementations:
//   - Memory: process-local map, for tests and throwaway sessions.
//   - SQLite: file-backed table managed by embedded goose migrations.
//   - Redis:  shared store reachable from several processes.
//
// Get returns (nil, nil) for an absent key. Update applies its writes and
// deletions atomically, so a concurrent reader never observes half of a
// token pair.
package storage

import "context"

type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	Update(ctx context.Context, set map[string][]byte, remove []string) error
	Close() error
}
