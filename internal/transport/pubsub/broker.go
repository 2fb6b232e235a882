package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrBrokerClosed = errors.New("broker is closed")

type Message struct {
	Channel Channel
	Payload []byte
}

func (m Message) Decode(v interface{}) error {
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload failed: %w", m.Channel, err)
	}
	return nil
}

// Subscription delivers messages until it is closed or its context ends,
// after which Messages is closed.
type Subscription interface {
	Messages() <-chan Message
	Close() error
}

// Broker is fire-and-forget pub/sub. Nothing is stored: a message published
// while nobody listens is lost.
type Broker interface {
	Publish(ctx context.Context, ch Channel, payload interface{}) error
	Subscribe(ctx context.Context, channels ...Channel) (Subscription, error)
	PSubscribe(ctx context.Context, pattern string) (Subscription, error)
	Close() error
}

func encode(ch Channel, payload interface{}) ([]byte, error) {
	if raw, ok := payload.([]byte); ok {
		return raw, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload failed: %w", ch, err)
	}
	return raw, nil
}
