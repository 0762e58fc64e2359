// Package broadcast carries "session storage changed" signals between
// execution contexts that share one session store, the way a browser fires
// storage events into every other open tab.
//
// A Change names the context that wrote (Origin) so a subscriber can skip
// its own writes. Delivery is best effort and coalescing: a subscriber that
// has not yet drained a pending signal may miss the next one, which is
// harmless because receivers re-read the store instead of trusting the
// payload.
package broadcast

import (
	"context"
	"time"
)

type Change struct {
	Origin string    `json:"origin"`
	Keys   []string  `json:"keys"`
	At     time.Time `json:"at"`
}

// Subscription delivers changes until Close is called or the subscribing
// context ends.
type Subscription interface {
	C() <-chan Change
	Close() error
}

type Broadcaster interface {
	Publish(ctx context.Context, c Change) error
	Subscribe(ctx context.Context) (Subscription, error)
}
