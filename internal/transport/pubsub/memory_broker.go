package pubsub

import (
	"context"
	"path"
	"sync"
)

// MemoryBroker is an in-process Broker for a single binary and for tests.
// Publish blocks until every current subscriber has buffered the message.
type MemoryBroker struct {
	mu     sync.RWMutex
	subs   map[*memorySubscription]struct{}
	closed bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[*memorySubscription]struct{})}
}

func (b *MemoryBroker) Publish(ctx context.Context, ch Channel, payload interface{}) error {
	raw, err := encode(ch, payload)
	if err != nil {
		return err
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBrokerClosed
	}
	targets := make([]*memorySubscription, 0, len(b.subs))
	for s := range b.subs {
		if s.matches(ch) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	msg := Message{Channel: ch, Payload: raw}
	for _, s := range targets {
		select {
		case s.in <- msg:
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, channels ...Channel) (Subscription, error) {
	set := make(map[Channel]struct{}, len(channels))
	for _, ch := range channels {
		set[ch] = struct{}{}
	}
	return b.add(ctx, &memorySubscription{channels: set})
}

func (b *MemoryBroker) PSubscribe(ctx context.Context, pattern string) (Subscription, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, err
	}
	return b.add(ctx, &memorySubscription{pattern: pattern})
}

// Subscribers reports how many live subscriptions would receive ch.
func (b *MemoryBroker) Subscribers(ch Channel) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for s := range b.subs {
		if s.matches(ch) {
			n++
		}
	}
	return n
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	b.closed = true
	subs := b.subs
	b.subs = make(map[*memorySubscription]struct{})
	b.mu.Unlock()

	for s := range subs {
		_ = s.Close()
	}
	return nil
}

func (b *MemoryBroker) add(ctx context.Context, s *memorySubscription) (Subscription, error) {
	s.broker = b
	s.in = make(chan Message, 64)
	s.out = make(chan Message)
	s.done = make(chan struct{})

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBrokerClosed
	}
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go s.forward(ctx)
	return s, nil
}

func (b *MemoryBroker) remove(s *memorySubscription) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
}

type memorySubscription struct {
	broker   *MemoryBroker
	channels map[Channel]struct{}
	pattern  string

	// in is never closed; publishers give up on it once done is closed.
	in   chan Message
	out  chan Message
	done chan struct{}
	once sync.Once
}

func (s *memorySubscription) Messages() <-chan Message {
	return s.out
}

func (s *memorySubscription) forward(ctx context.Context) {
	defer close(s.out)
	defer s.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case msg := <-s.in:
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

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.broker.remove(s)
		close(s.done)
	})
	return nil
}

func (s *memorySubscription) matches(ch Channel) bool {
	if s.pattern != "" {
		ok, _ := path.Match(s.pattern, ch.String())
		return ok
	}
	_, ok := s.channels[ch]
	return ok
}
