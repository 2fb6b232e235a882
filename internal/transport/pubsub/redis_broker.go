package pubsub

import (
	"context"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"tenantrag/internal/pkg/logger"
)

type RedisBroker struct {
	log *logger.Logger
	rdb *goredis.Client
}

// NewRedisBroker publishes through rdb. The client stays owned by the caller.
func NewRedisBroker(log *logger.Logger, rdb *goredis.Client) *RedisBroker {
	return &RedisBroker{log: log.With("service", "RedisBroker"), rdb: rdb}
}

func (b *RedisBroker) Publish(ctx context.Context, ch Channel, payload interface{}) error {
	raw, err := encode(ch, payload)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, ch.String(), raw).Err(); err != nil {
		return fmt.Errorf("redis publish %s failed: %w", ch, err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, channels ...Channel) (Subscription, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("redis subscribe failed: no channels")
	}
	names := make([]string, len(channels))
	for i, ch := range channels {
		names[i] = ch.String()
	}
	return b.start(ctx, b.rdb.Subscribe(ctx, names...))
}

func (b *RedisBroker) PSubscribe(ctx context.Context, pattern string) (Subscription, error) {
	return b.start(ctx, b.rdb.PSubscribe(ctx, pattern))
}

func (b *RedisBroker) Close() error {
	return nil
}

func (b *RedisBroker) start(ctx context.Context, ps *goredis.PubSub) (Subscription, error) {
	// Wait for the confirmation so nothing published after return is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe failed: %w", err)
	}

	sub := &redisSubscription{
		ps:   ps,
		out:  make(chan Message, 64),
		done: make(chan struct{}),
	}
	go sub.forward(ctx)
	return sub, nil
}

type redisSubscription struct {
	ps   *goredis.PubSub
	out  chan Message
	done chan struct{}
	once sync.Once
}

func (s *redisSubscription) Messages() <-chan Message {
	return s.out
}

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

func (s *redisSubscription) forward(ctx context.Context) {
	defer close(s.out)
	defer s.Close()

	in := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case m, ok := <-in:
			if !ok || m == nil {
				return
			}
			msg := Message{Channel: Channel(m.Channel), Payload: []byte(m.Payload)}
			select {
			case s.out <- msg:
			case <-ctx.Done():
				return
			case <-s.done:
				return
			}
		}
	}
}
