// Package tokens is the single source of truth for whether the current
// access token is usable and when it must be renewed.
//
// Manager parses tokens, persists them through Store, keeps exactly one
// proactive-refresh timer armed against the stored token, and owns the
// single-flight refresh slot: the first caller that needs a new token
// starts the refresh, every later caller awaits the same Future.
//
// Manager never talks to the network. When the timer fires it publishes
// events.KindRefreshNeeded; the actual exchange is delegated to the
// RefreshFunc installed by the session owner.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/authsession/internal/client/api"
	"github.com/dmitrijs2005/authsession/internal/client/events"
	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/dmitrijs2005/authsession/internal/logging"
)

// Pair is the outcome of a refresh. An empty RefreshToken keeps the stored
// one (servers that do not rotate refresh tokens).
type Pair struct {
	AccessToken  string
	RefreshToken string
	User         *api.User
}

// RefreshFunc exchanges a refresh token for a new Pair.
type RefreshFunc func(ctx context.Context, refreshToken string) (*Pair, error)

var errNoRefresher = errors.New("no refresher configured")

type Manager struct {
	store          *Store
	bus            *events.Bus
	log            logging.Logger
	threshold      time.Duration
	refreshTimeout time.Duration
	now            func() time.Time

	// mu serializes token writes with timer (re)arming. gen identifies the
	// armed timer; epoch changes whenever the pair is stored or cleared from
	// outside a refresh, so that a refresh started earlier cannot write
	// afterwards.
	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
	epoch uint64

	slotMu    sync.Mutex
	slot      *Future
	refresher RefreshFunc
}

type Option func(*Manager)

func WithThreshold(d time.Duration) Option {
	return func(m *Manager) { m.threshold = d }
}

func WithRefreshTimeout(d time.Duration) Option {
	return func(m *Manager) { m.refreshTimeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(l logging.Logger) Option {
	return func(m *Manager) { m.log = l }
}

func NewManager(store *Store, bus *events.Bus, opts ...Option) *Manager {
	m := &Manager{
		store:          store,
		bus:            bus,
		log:            logging.NewNop(),
		threshold:      common.DefaultRefreshThreshold,
		refreshTimeout: 10 * time.Second,
		now:            time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// SetRefresher installs the function used by every refresh from now on.
func (m *Manager) SetRefresher(fn RefreshFunc) {
	m.slotMu.Lock()
	defer m.slotMu.Unlock()
	m.refresher = fn
}

func (m *Manager) Threshold() time.Duration { return m.threshold }

// Store validates the access token's shape and persists the pair, then
// re-arms the proactive refresh timer. A malformed token clears the session
// and yields common.ErrMalformedToken. Expired tokens are accepted; their
// refresh is requested immediately.
//
// A refresh in flight when Store runs does not write its result over the
// stored pair; its waiters receive the token stored here.
func (m *Manager) Store(ctx context.Context, access, refresh string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epoch++
	return m.storeLocked(ctx, access, refresh)
}

func (m *Manager) storeLocked(ctx context.Context, access, refresh string) error {
	info := m.Parse(access)
	if info == nil {
		m.epoch++
		m.stopLocked()
		if err := m.store.Clear(ctx); err != nil {
			m.log.Warn(ctx, "clear after malformed token failed", "err", err)
		}
		return common.ErrMalformedToken
	}
	if err := m.store.SaveTokens(ctx, access, refresh); err != nil {
		return err
	}
	m.scheduleLocked(ctx, info)
	return nil
}

// Parse returns Info for raw as of now, or nil for undecodable input.
func (m *Manager) Parse(raw string) *Info {
	return ParseAt(raw, m.now())
}

func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	return m.store.AccessToken(ctx)
}

// Current parses the stored access token; nil when absent or undecodable.
func (m *Manager) Current(ctx context.Context) *Info {
	raw, err := m.store.AccessToken(ctx)
	if err != nil || raw == "" {
		return nil
	}
	return m.Parse(raw)
}

func (m *Manager) IsValid(ctx context.Context) bool {
	info := m.Current(ctx)
	return info != nil && !info.IsExpired
}

// ShouldRefresh reports whether the stored token expires within the
// threshold (or already has).
func (m *Manager) ShouldRefresh(ctx context.Context) bool {
	info := m.Current(ctx)
	return info != nil && info.TimeUntilExpiry <= m.threshold
}

// ScheduleProactiveRefresh arms the one-shot timer for raw, replacing any
// armed timer. An undecodable token just disarms.
func (m *Manager) ScheduleProactiveRefresh(ctx context.Context, raw string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info := m.Parse(raw)
	if info == nil {
		m.stopLocked()
		return
	}
	m.scheduleLocked(ctx, info)
}

// Resync re-reads the stored token, e.g. after another context changed it,
// and re-arms or disarms the timer to match.
func (m *Manager) Resync(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info := m.Current(ctx)
	if info == nil {
		m.stopLocked()
		return
	}
	m.scheduleLocked(ctx, info)
}

func (m *Manager) scheduleLocked(ctx context.Context, info *Info) {
	m.stopLocked()
	delay := info.TimeUntilExpiry - m.threshold
	if delay < 0 {
		delay = 0
	}
	gen := m.gen
	m.timer = time.AfterFunc(delay, func() { m.fire(gen) })
	m.log.Debug(ctx, "proactive refresh scheduled", "in", delay, "expires_at", info.ExpiresAt)
}

// stopLocked disarms the timer. Bumping gen also voids a callback that has
// already fired but not yet taken the lock.
func (m *Manager) stopLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.gen++
}

func (m *Manager) fire(gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.mu.Unlock()

	m.bus.Publish(context.Background(), events.Event{Kind: events.KindRefreshNeeded})
}

// BeginRefresh starts a refresh unless one is in flight. It returns the slot
// and whether this call started it.
func (m *Manager) BeginRefresh(ctx context.Context) (*Future, bool) {
	m.slotMu.Lock()
	defer m.slotMu.Unlock()
	if m.slot != nil {
		refreshJoined.Inc()
		return m.slot, false
	}
	return m.beginLocked(ctx), true
}

func (m *Manager) IsRefreshInProgress() bool {
	m.slotMu.Lock()
	defer m.slotMu.Unlock()
	return m.slot != nil
}

// AwaitRefresh waits for the in-flight refresh. With none in flight it
// returns the stored access token.
func (m *Manager) AwaitRefresh(ctx context.Context) (string, error) {
	m.slotMu.Lock()
	f := m.slot
	m.slotMu.Unlock()
	if f == nil {
		return m.store.AccessToken(ctx)
	}
	return f.Wait(ctx)
}

// Refresh starts or joins the refresh and waits for its token.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	f, _ := m.BeginRefresh(ctx)
	return f.Wait(ctx)
}

// RefreshIfStale is Refresh for a caller that observed seen as the current
// token. If the stored token has since been replaced by a live one, that
// token is returned without another refresh.
func (m *Manager) RefreshIfStale(ctx context.Context, seen string) (string, error) {
	m.slotMu.Lock()
	if f := m.slot; f != nil {
		m.slotMu.Unlock()
		refreshJoined.Inc()
		return f.Wait(ctx)
	}
	if cur, err := m.store.AccessToken(ctx); err == nil && cur != "" && cur != seen {
		if info := m.Parse(cur); info != nil && !info.IsExpired {
			m.slotMu.Unlock()
			return cur, nil
		}
	}
	f := m.beginLocked(ctx)
	m.slotMu.Unlock()
	return f.Wait(ctx)
}

func (m *Manager) beginLocked(ctx context.Context) *Future {
	f := newFuture()
	m.slot = f

	m.mu.Lock()
	epoch := m.epoch
	m.mu.Unlock()

	go m.runRefresh(context.WithoutCancel(ctx), f, m.refresher, epoch)
	return f
}

func (m *Manager) runRefresh(ctx context.Context, f *Future, fn RefreshFunc, epoch uint64) {
	ctx, cancel := context.WithTimeout(ctx, m.refreshTimeout)
	defer cancel()

	m.log.Info(ctx, "token refresh started")

	var (
		token   string
		outcome = adoptCleared
	)
	pair, err := m.exchange(ctx, fn)
	if err == nil {
		token, outcome, err = m.adopt(ctx, pair, epoch)
	}

	// The slot stays taken until the outcome has been published, so that a
	// caller arriving meanwhile joins this result instead of presenting the
	// same refresh token again.
	switch {
	case err != nil:
		refreshTotal.WithLabelValues("failed").Inc()
		m.log.Warn(ctx, "token refresh failed", "err", err)
		if !errors.Is(err, common.ErrAuthenticationExpired) {
			err = fmt.Errorf("%w: %w", common.ErrAuthenticationExpired, err)
		}
		m.bus.Publish(ctx, events.Event{Kind: events.KindAuthExpired})
	case outcome == adoptReplaced:
		refreshTotal.WithLabelValues("superseded").Inc()
		m.log.Info(ctx, "token refresh superseded by a newer token")
	case outcome == adoptCleared:
		refreshTotal.WithLabelValues("superseded").Inc()
		err = fmt.Errorf("%w: session cleared during refresh", common.ErrAuthenticationExpired)
	default:
		refreshTotal.WithLabelValues("ok").Inc()
		m.log.Info(ctx, "token refreshed")
		m.bus.Publish(ctx, events.Event{Kind: events.KindTokenRefreshed, User: pair.User})
	}

	m.slotMu.Lock()
	if m.slot == f {
		m.slot = nil
	}
	m.slotMu.Unlock()

	f.resolve(token, err)
}

func (m *Manager) exchange(ctx context.Context, fn RefreshFunc) (*Pair, error) {
	if fn == nil {
		return nil, errNoRefresher
	}
	refresh, err := m.store.RefreshToken(ctx)
	if err != nil {
		return nil, err
	}
	if refresh == "" {
		return nil, common.ErrNoRefreshToken
	}
	return fn(ctx, refresh)
}

type adoptOutcome int

const (
	adoptStored adoptOutcome = iota
	// adoptReplaced: a newer pair was stored while the refresh ran.
	adoptReplaced
	// adoptCleared: the session was cleared while the refresh ran.
	adoptCleared
)

// adopt stores pair unless the session changed since epoch. When a newer
// usable token is stored, that token is returned instead.
func (m *Manager) adopt(ctx context.Context, pair *Pair, epoch uint64) (string, adoptOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		cur, err := m.store.AccessToken(ctx)
		if err == nil && cur != "" {
			if info := m.Parse(cur); info != nil && !info.IsExpired {
				return cur, adoptReplaced, nil
			}
		}
		return "", adoptCleared, nil
	}
	// storeLocked leaves epoch alone, so this refresh does not void itself.
	if err := m.storeLocked(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
		return "", adoptStored, err
	}
	return pair.AccessToken, adoptStored, nil
}

// Clear wipes both tokens and the profile, disarms the timer and releases
// the refresh slot. A refresh still in flight settles with
// common.ErrAuthenticationExpired and writes nothing.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.epoch++
	m.stopLocked()
	err := m.store.Clear(ctx)
	m.mu.Unlock()

	m.slotMu.Lock()
	m.slot = nil
	m.slotMu.Unlock()
	return err
}

// Close disarms the timer without touching storage.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epoch++
	m.stopLocked()
}
