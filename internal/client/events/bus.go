// Package events is the typed publish/subscribe channel through which the
// session layer announces login, logout, refresh and registration, and
// through which the token manager asks for a refresh without depending on
// the code that performs it.
package events

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/authsession/internal/client/api"
)

type Kind string

const (
	KindLogin          Kind = "login"
	KindLogout         Kind = "logout"
	KindTokenRefreshed Kind = "token-refreshed"
	KindRegister       Kind = "register"
	// KindRefreshNeeded carries no user; it is purely a trigger.
	KindRefreshNeeded Kind = "refresh-needed"
	// KindAuthExpired asks the session owner to tear the session down.
	KindAuthExpired Kind = "auth-expired"
)

type Event struct {
	Kind Kind
	User *api.User
}

type Handler func(ctx context.Context, e Event)

// Bus delivers every published event to the handlers subscribed to its
// kind, synchronously and in subscription order. Handlers must not block
// for long; anything slow belongs in a goroutine started by the handler.
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[Kind][]subscriber
}

type subscriber struct {
	id uint64
	fn Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[Kind][]subscriber)}
}

// Subscribe registers fn for the given kinds (all kinds when none are given)
// and returns the function that removes it again.
func (b *Bus) Subscribe(fn Handler, kinds ...Kind) (unsubscribe func()) {
	if len(kinds) == 0 {
		kinds = []Kind{KindLogin, KindLogout, KindTokenRefreshed, KindRegister, KindRefreshNeeded, KindAuthExpired}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	for _, k := range kinds {
		b.handlers[k] = append(b.handlers[k], subscriber{id: id, fn: fn})
	}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for _, k := range kinds {
				subs := b.handlers[k]
				kept := subs[:0:0]
				for _, s := range subs {
					if s.id != id {
						kept = append(kept, s)
					}
				}
				b.handlers[k] = kept
			}
		})
	}
}

func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	subs := append([]subscriber(nil), b.handlers[e.Kind]...)
	b.mu.RUnlock()

	for _, s := range subs {
		s.fn(ctx, e)
	}
}
