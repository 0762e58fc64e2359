package broadcast

import (
	"context"
	"sync"
)

const subscriberBuffer = 8

// Hub is an in-process Broadcaster.
type Hub struct {
	mu   sync.RWMutex
	subs map[*localSub]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*localSub]struct{})}
}

type localSub struct {
	hub  *Hub
	ch   chan Change
	once sync.Once
}

func (s *localSub) C() <-chan Change { return s.ch }

func (s *localSub) Close() error {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		s.hub.mu.Unlock()
		close(s.ch)
	})
	return nil
}

func (h *Hub) Publish(_ context.Context, c Change) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		select {
		case s.ch <- c:
		default:
		}
	}
	return nil
}

func (h *Hub) Subscribe(ctx context.Context) (Subscription, error) {
	s := &localSub{hub: h, ch: make(chan Change, subscriberBuffer)}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()
	return s, nil
}
