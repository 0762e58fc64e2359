// Package session is the policy layer above the request pipeline: it logs
// users in and out, performs the refresh the token manager asks for, and
// keeps the in-memory Session consistent with shared storage, including
// changes made by other execution contexts.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/authsession/internal/client/api"
	"github.com/dmitrijs2005/authsession/internal/client/broadcast"
	"github.com/dmitrijs2005/authsession/internal/client/events"
	"github.com/dmitrijs2005/authsession/internal/client/httpclient"
	"github.com/dmitrijs2005/authsession/internal/client/tokens"
	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/dmitrijs2005/authsession/internal/logging"
)

// Session is the identity visible to the rest of the application.
// IsAuthenticated holds exactly when a stored access token is present and
// not expired.
type Session struct {
	User            *api.User
	IsAuthenticated bool
	LastActivity    time.Time
}

type Coordinator struct {
	api    *httpclient.Client
	tokens *tokens.Manager
	store  *tokens.Store
	bus    *events.Bus
	log    logging.Logger
	now    func() time.Time

	mu      sync.RWMutex
	session Session

	unsubscribe []func()
	wg          sync.WaitGroup
}

type Option func(*Coordinator)

func WithLogger(l logging.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New wires the coordinator into tm and bus: it becomes the manager's
// refresher and reacts to refresh-needed, refreshed and auth-expired events.
func New(client *httpclient.Client, tm *tokens.Manager, store *tokens.Store, bus *events.Bus, opts ...Option) *Coordinator {
	c := &Coordinator{
		api:    client,
		tokens: tm,
		store:  store,
		bus:    bus,
		log:    logging.NewNop(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(c)
	}

	tm.SetRefresher(c.exchange)
	c.unsubscribe = append(c.unsubscribe,
		bus.Subscribe(c.onRefreshNeeded, events.KindRefreshNeeded),
		bus.Subscribe(c.onRefreshed, events.KindTokenRefreshed),
		bus.Subscribe(c.onExpired, events.KindAuthExpired),
	)
	return c
}

// Session returns a snapshot of the current session.
func (c *Coordinator) Session() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.session
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

func (c *Coordinator) Login(ctx context.Context, creds api.Credentials) (Session, error) {
	res, err := httpclient.DoJSON[api.AuthResult](ctx, c.api, &httpclient.Request{
		Method:   http.MethodPost,
		Path:     common.LoginPath,
		Body:     creds,
		SkipAuth: true,
	})
	if err != nil {
		return c.Session(), fmt.Errorf("login: %w", credentialsError(err))
	}
	c.log.Info(ctx, "logged in", "user_id", res.User.ID)
	return c.establish(ctx, res, events.KindLogin)
}

func (c *Coordinator) Register(ctx context.Context, in api.RegisterInput) (Session, error) {
	res, err := httpclient.DoJSON[api.AuthResult](ctx, c.api, &httpclient.Request{
		Method:   http.MethodPost,
		Path:     common.RegisterPath,
		Body:     in,
		SkipAuth: true,
	})
	if err != nil {
		return c.Session(), fmt.Errorf("register: %w", credentialsError(err))
	}
	c.log.Info(ctx, "registered", "user_id", res.User.ID)
	return c.establish(ctx, res, events.KindRegister)
}

// credentialsError maps a rejected login or registration onto
// common.ErrInvalidCredentials while keeping the backend error (and its
// field errors) in the chain.
func credentialsError(err error) error {
	var apiErr *httpclient.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusUnprocessableEntity, http.StatusConflict:
		return fmt.Errorf("%w: %w", common.ErrInvalidCredentials, err)
	}
	return err
}

func (c *Coordinator) establish(ctx context.Context, res *api.AuthResult, kind events.Kind) (Session, error) {
	if res.RefreshToken == "" {
		// Do not let a previous user's refresh token survive this login.
		if err := c.tokens.Clear(ctx); err != nil {
			return c.Session(), err
		}
	}
	if err := c.tokens.Store(ctx, res.Token, res.RefreshToken); err != nil {
		return c.Session(), fmt.Errorf("store tokens: %w", err)
	}
	user := res.User
	c.saveUser(ctx, &user)
	s := c.set(ctx, &user)
	c.bus.Publish(ctx, events.Event{Kind: kind, User: &user})
	return s, nil
}

// Logout invalidates the session on the backend if it can and always clears
// it locally. Only a local storage failure is returned.
//
// The request carries no bearer, so a near-expiry token is not renewed on
// the way out; the refresh token revoked is the one current when it is sent.
func (c *Coordinator) Logout(ctx context.Context) error {
	// A rotation already in flight decides which refresh token is live.
	_, _ = c.tokens.AwaitRefresh(ctx)
	refresh, _ := c.store.RefreshToken(ctx)
	_, err := c.api.Do(ctx, &httpclient.Request{
		Method:   http.MethodPost,
		Path:     common.LogoutPath,
		Body:     api.RefreshRequest{RefreshToken: refresh},
		SkipAuth: true,
		Retries:  -1,
	})
	if err != nil {
		c.log.Warn(ctx, "backend logout failed", "err", err)
	}
	return c.teardown(ctx, "logout")
}

// Refresh renews the tokens now, joining a refresh already in flight. A
// failure ends the session.
func (c *Coordinator) Refresh(ctx context.Context) (Session, error) {
	if _, err := c.tokens.Refresh(ctx); err != nil {
		return c.Session(), err
	}
	return c.Session(), nil
}

// FetchCurrentUser loads the profile of the authenticated user and persists
// it.
func (c *Coordinator) FetchCurrentUser(ctx context.Context) (*api.User, error) {
	u, err := httpclient.DoJSON[api.User](ctx, c.api, &httpclient.Request{
		Method: http.MethodGet,
		Path:   common.MePath,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch current user: %w", err)
	}
	c.saveUser(ctx, u)
	c.set(ctx, u)
	return u, nil
}

// Initialize restores the session persisted by an earlier run. A token that
// is expired or about to expire is renewed when a refresh token exists; a
// session that cannot be renewed is cleared.
func (c *Coordinator) Initialize(ctx context.Context) (Session, error) {
	access, err := c.store.AccessToken(ctx)
	if err != nil {
		return c.Session(), fmt.Errorf("read session: %w", err)
	}
	refresh, err := c.store.RefreshToken(ctx)
	if err != nil {
		return c.Session(), fmt.Errorf("read session: %w", err)
	}

	info := c.tokens.Parse(access)
	switch {
	case access == "" && refresh == "":
		return c.rederive(ctx), nil
	case info != nil && !c.tokens.ShouldRefresh(ctx):
		c.tokens.Resync(ctx)
		return c.rederive(ctx), nil
	case refresh == "":
		c.log.Info(ctx, "stored session expired")
		return c.Session(), c.teardown(ctx, "expired on start")
	}

	c.rederive(ctx)
	if _, err := c.tokens.Refresh(ctx); err != nil {
		return c.Session(), err
	}
	return c.Session(), nil
}

// Sync re-derives the session from storage. It is what a context runs when
// another context reports a change to the shared session.
func (c *Coordinator) Sync(ctx context.Context) Session {
	prev := c.Session()
	c.tokens.Resync(ctx)
	s := c.rederive(ctx)
	c.log.Debug(ctx, "session re-derived from storage", "authenticated", s.IsAuthenticated)

	switch {
	case prev.IsAuthenticated && !s.IsAuthenticated:
		c.bus.Publish(ctx, events.Event{Kind: events.KindLogout, User: prev.User})
	case !prev.IsAuthenticated && s.IsAuthenticated:
		c.bus.Publish(ctx, events.Event{Kind: events.KindLogin, User: s.User})
	}
	return s
}

// Watch follows session changes announced on bc by other contexts until ctx
// ends. It returns once the subscription is live.
func (c *Coordinator) Watch(ctx context.Context, bc broadcast.Broadcaster) error {
	sub, err := bc.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("watch session: %w", err)
	}
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ch, ok := <-sub.C():
				if !ok {
					return
				}
				if ch.Origin == c.store.Origin() || !c.concerns(ch.Keys) {
					continue
				}
				c.Sync(ctx)
			}
		}
	}()
	return nil
}

func (c *Coordinator) concerns(keys []string) bool {
	for _, k := range keys {
		if c.store.Owns(k) {
			return true
		}
	}
	return false
}

// Close detaches the coordinator from the event bus and waits for
// background refreshes it started. Watchers stop with the context they were
// started with.
func (c *Coordinator) Close() {
	for _, u := range c.unsubscribe {
		u()
	}
	c.wg.Wait()
}

// exchange is the manager's RefreshFunc.
func (c *Coordinator) exchange(ctx context.Context, refresh string) (*tokens.Pair, error) {
	res, err := httpclient.DoJSON[api.AuthResult](ctx, c.api, &httpclient.Request{
		Method:   http.MethodPost,
		Path:     common.RefreshPath,
		Body:     api.RefreshRequest{RefreshToken: refresh},
		SkipAuth: true,
	})
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	p := &tokens.Pair{AccessToken: res.Token, RefreshToken: res.RefreshToken}
	if res.User.ID != "" {
		u := res.User
		p.User = &u
	}
	return p, nil
}

func (c *Coordinator) onRefreshNeeded(ctx context.Context, _ events.Event) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		// Another context may have renewed the shared token already.
		if !c.tokens.ShouldRefresh(ctx) {
			c.tokens.Resync(ctx)
			return
		}
		if _, err := c.tokens.Refresh(ctx); err != nil {
			c.log.Warn(ctx, "proactive refresh failed", "err", err)
		}
	}()
}

func (c *Coordinator) onRefreshed(ctx context.Context, e events.Event) {
	user := e.User
	if user != nil {
		c.saveUser(ctx, user)
	} else {
		user = c.Session().User
	}
	c.set(ctx, user)
}

func (c *Coordinator) onExpired(ctx context.Context, _ events.Event) {
	if err := c.teardown(ctx, "authentication expired"); err != nil {
		c.log.Error(ctx, "session teardown failed", "err", err)
	}
}

// teardown clears local state and announces the logout if there was a
// session to end.
func (c *Coordinator) teardown(ctx context.Context, reason string) error {
	prev := c.Session()
	err := c.tokens.Clear(ctx)

	c.mu.Lock()
	c.session = Session{LastActivity: c.now()}
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if prev.IsAuthenticated || prev.User != nil {
		c.log.Info(ctx, "session ended", "reason", reason)
		c.bus.Publish(ctx, events.Event{Kind: events.KindLogout, User: prev.User})
	}
	return nil
}

func (c *Coordinator) set(ctx context.Context, user *api.User) Session {
	valid := c.tokens.IsValid(ctx)
	c.mu.Lock()
	c.session = Session{User: user, IsAuthenticated: valid, LastActivity: c.now()}
	c.mu.Unlock()
	return c.Session()
}

// rederive rebuilds the session from what is stored, ignoring the cached
// in-memory state.
func (c *Coordinator) rederive(ctx context.Context) Session {
	var user *api.User
	if access, _ := c.store.AccessToken(ctx); access != "" {
		user = c.loadUser(ctx)
	}
	valid := c.tokens.IsValid(ctx)

	c.mu.Lock()
	last := c.session.LastActivity
	c.session = Session{User: user, IsAuthenticated: valid, LastActivity: last}
	c.mu.Unlock()
	return c.Session()
}

func (c *Coordinator) saveUser(ctx context.Context, u *api.User) {
	data, err := json.Marshal(u)
	if err == nil {
		err = c.store.SaveUser(ctx, data)
	}
	if err != nil {
		c.log.Warn(ctx, "user profile not persisted", "err", err)
	}
}

func (c *Coordinator) loadUser(ctx context.Context) *api.User {
	data, err := c.store.User(ctx)
	if err != nil || data == nil {
		return nil
	}
	var u api.User
	if err := json.Unmarshal(data, &u); err != nil {
		c.log.Warn(ctx, "stored user profile unreadable", "err", err)
		return nil
	}
	return &u
}
