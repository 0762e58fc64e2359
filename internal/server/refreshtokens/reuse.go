package refreshtokens

import (
	"sync"
	"time"
)

// Exchange is the pair a refresh token was rotated into.
type Exchange struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	CreatedAt    time.Time
}

// ReuseCache answers a rotated refresh token with the pair it was exchanged
// for, during a short grace period. Clients sharing one session may present
// the same refresh token concurrently; the first rotates it, the others get
// the same result instead of an invalid-token error.
type ReuseCache struct {
	mu    sync.Mutex
	m     map[string]Exchange
	grace time.Duration
	now   func() time.Time
}

func NewReuseCache(grace time.Duration) *ReuseCache {
	return &ReuseCache{m: make(map[string]Exchange), grace: grace, now: time.Now}
}

// Get returns the exchange for oldToken, or nil when unknown or past grace.
func (c *ReuseCache) Get(oldToken string) *Exchange {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[oldToken]
	if !ok {
		return nil
	}
	if c.now().After(e.CreatedAt.Add(c.grace)) {
		delete(c.m, oldToken)
		return nil
	}
	return &e
}

func (c *ReuseCache) Store(oldToken string, e Exchange) {
	if c.grace <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e.CreatedAt = c.now()
	c.m[oldToken] = e
	c.sweepLocked()
}

// Forget drops every exchange that leads to newToken, e.g. on logout.
func (c *ReuseCache) Forget(newToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.m {
		if e.RefreshToken == newToken {
			delete(c.m, k)
		}
	}
}

func (c *ReuseCache) sweepLocked() {
	now := c.now()
	for k, e := range c.m {
		if now.After(e.CreatedAt.Add(c.grace)) {
			delete(c.m, k)
		}
	}
}
