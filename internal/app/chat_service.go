package app

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"tenantrag/internal/model"
	"tenantrag/internal/transport/pubsub"
)

const MaxMessageRunes = 4000

// Principal is the authenticated caller of a chat endpoint. SessionKey
// names the conversation: the user email for dashboard users, the visitor
// id for widget visitors.
type Principal struct {
	SessionKey string
	TenantID   string
	Role       string
}

// ChatService is the gateway side of chat: it forwards visitor messages to
// the session inbox and exposes the outbox and the committed history.
type ChatService struct {
	publisher  Publisher
	subscriber Subscriber
	sessions   SessionStore
	turns      TurnStore
}

func NewChatService(publisher Publisher, subscriber Subscriber, sessions SessionStore, turns TurnStore) *ChatService {
	return &ChatService{publisher: publisher, subscriber: subscriber, sessions: sessions, turns: turns}
}

// Send publishes the message to the caller's inbox and returns the outbox on
// which the answer will stream.
func (s *ChatService) Send(ctx context.Context, p Principal, message string) (pubsub.Channel, error) {
	if p.SessionKey == "" || p.TenantID == "" {
		return "", ErrInvalidInput
	}
	content := strings.TrimSpace(message)
	if content == "" {
		return "", ErrMessageEmpty
	}
	if utf8.RuneCountInString(content) > MaxMessageRunes {
		return "", ErrMessageTooLong
	}

	req := pubsub.ChatRequest{
		RequestID:  uuid.NewString(),
		TenantID:   p.TenantID,
		SessionKey: p.SessionKey,
		Message:    content,
		Timestamp:  time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, pubsub.Inbox(p.SessionKey), req); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMessagePublish, err)
	}
	return pubsub.Outbox(p.SessionKey), nil
}

// Stream subscribes to the caller's outbox. The caller owns the returned
// subscription.
func (s *ChatService) Stream(ctx context.Context, p Principal) (pubsub.Subscription, error) {
	if p.SessionKey == "" {
		return nil, ErrInvalidInput
	}
	return s.subscriber.Subscribe(ctx, pubsub.Outbox(p.SessionKey))
}

// History returns the most recent committed turns of the caller's session,
// oldest first. A session without turns has an empty history; a session
// bound to another tenant is reported as not found.
func (s *ChatService) History(ctx context.Context, p Principal, limit int) ([]model.Message, error) {
	if p.SessionKey == "" || p.TenantID == "" {
		return nil, ErrInvalidInput
	}
	session, err := s.sessions.GetByKey(ctx, p.SessionKey)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return []model.Message{}, nil
	}
	if session.TenantID != p.TenantID {
		return nil, ErrSessionNotFound
	}
	return s.turns.ListBySessionKey(ctx, p.SessionKey, limit)
}
