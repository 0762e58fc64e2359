package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Redis publishes changes on a pub/sub channel so that processes sharing a
// Redis session store observe each other's writes.
type Redis struct {
	client  *redis.Client
	channel string
}

func NewRedis(client *redis.Client, channel string) *Redis {
	return &Redis{client: client, channel: channel}
}

func (r *Redis) Publish(ctx context.Context, c Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", r.channel, err)
	}
	return nil
}

type redisSub struct {
	ps   *redis.PubSub
	ch   chan Change
	done chan struct{}
	once sync.Once
}

func (s *redisSub) C() <-chan Change { return s.ch }

func (s *redisSub) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

func (r *Redis) Subscribe(ctx context.Context) (Subscription, error) {
	ps := r.client.Subscribe(ctx, r.channel)
	// Wait for the subscription confirmation so no publish after return is lost.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	s := &redisSub{ps: ps, ch: make(chan Change, subscriberBuffer), done: make(chan struct{})}
	go s.pump(ctx)
	return s, nil
}

func (s *redisSub) pump(ctx context.Context) {
	defer close(s.ch)
	msgs := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			_ = s.Close()
			return
		case <-s.done:
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			var c Change
			if err := json.Unmarshal([]byte(m.Payload), &c); err != nil {
				continue
			}
			select {
			case s.ch <- c:
			default:
			}
		}
	}
}
