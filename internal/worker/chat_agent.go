package worker

import (
	"context"
	"errors"

	"tenantrag/internal/app"
	"tenantrag/internal/pkg/logger"
	"tenantrag/internal/transport/pubsub"
)

var ErrInboxClosed = errors.New("inbox subscription closed")

type PatternSubscriber interface {
	PSubscribe(ctx context.Context, pattern string) (pubsub.Subscription, error)
}

type TurnSubmitter interface {
	Submit(ctx context.Context, in app.TurnInput) error
	Wait()
}

// RequestClaimer lets exactly one of several agents take a request.
type RequestClaimer interface {
	Claim(ctx context.Context, requestID string) (bool, error)
}

// ChatAgent listens on every session inbox and hands each request to the
// orchestrator. Pub/sub delivers a request to every agent, so a request is
// submitted only by the agent that claims its id.
type ChatAgent struct {
	subscriber PatternSubscriber
	turns      TurnSubmitter
	claims     RequestClaimer
	log        *logger.Logger
}

func NewChatAgent(subscriber PatternSubscriber, turns TurnSubmitter, claims RequestClaimer, log *logger.Logger) *ChatAgent {
	if log == nil {
		log = logger.Nop()
	}
	return &ChatAgent{subscriber: subscriber, turns: turns, claims: claims, log: log.With("component", "chat_agent")}
}

// Run blocks until ctx ends or the subscription is lost, then waits for
// turns already accepted.
func (a *ChatAgent) Run(ctx context.Context) error {
	sub, err := a.subscriber.PSubscribe(ctx, pubsub.InboxPattern)
	if err != nil {
		return err
	}
	defer sub.Close()
	defer a.turns.Wait()

	a.log.Info("chat agent listening", "pattern", pubsub.InboxPattern)
	// Accepted turns outlive a shutdown signal; the orchestrator's turn
	// timeout bounds them.
	turnCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.Messages():
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrInboxClosed
			}
			a.dispatch(turnCtx, msg)
		}
	}
}

func (a *ChatAgent) dispatch(ctx context.Context, msg pubsub.Message) {
	key, ok := msg.Channel.SessionKey()
	if !ok || !msg.Channel.IsInbox() {
		a.log.Warn("ignore message on unexpected channel", "channel", msg.Channel.String())
		return
	}
	var req pubsub.ChatRequest
	if err := msg.Decode(&req); err != nil {
		a.log.Warn("ignore undecodable chat request", "channel", msg.Channel.String(), "error", err)
		return
	}
	if req.SessionKey != key {
		a.log.Warn("ignore chat request for another session", "channel", msg.Channel.String(), "session_key", req.SessionKey)
		return
	}
	if req.RequestID == "" {
		a.log.Warn("ignore chat request without id", "session_key", key)
		return
	}
	claimed, err := a.claims.Claim(ctx, req.RequestID)
	if err != nil {
		a.log.Error("claim chat request failed", "session_key", key, "request_id", req.RequestID, "error", err)
		return
	}
	if !claimed {
		a.log.Debug("chat request taken by another agent", "session_key", key, "request_id", req.RequestID)
		return
	}
	if err := a.turns.Submit(ctx, app.TurnInput{
		TenantID:   req.TenantID,
		SessionKey: key,
		Message:    req.Message,
	}); err != nil {
		a.log.Error("submit chat turn failed", "session_key", key, "error", err)
	}
}
