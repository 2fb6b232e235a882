package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tenantrag/internal/metrics"
	"tenantrag/internal/model"
	"tenantrag/internal/pkg/logger"
	"tenantrag/internal/transport/pubsub"
)

const publishGrace = 5 * time.Second

// TurnInput is one visitor message taken off an inbox channel.
type TurnInput struct {
	TenantID   string
	SessionKey string
	Message    string
}

type OrchestratorConfig struct {
	RAGEnabled    bool
	MaxContext    int
	NoInfoMessage string
	TurnTimeout   time.Duration
}

// Searcher is the retrieval step of a turn.
type Searcher interface {
	Search(ctx context.Context, query, tenantID string) (string, bool, error)
}

// Orchestrator answers chat turns: it loads history, retrieves tenant
// context, streams the model answer to the session outbox and commits the
// turn. A turn that fails commits nothing and ends with an error marker.
type Orchestrator struct {
	log       *logger.Logger
	tenants   TenantStore
	turns     TurnStore
	cache     HistoryCache
	retriever Searcher
	model     ChatModel
	publisher Publisher
	prompts   *PromptBuilder
	metrics   *metrics.Metrics
	cfg       OrchestratorConfig
	queue     *turnQueue
}

func NewOrchestrator(
	log *logger.Logger,
	tenants TenantStore,
	turns TurnStore,
	cache HistoryCache,
	retriever Searcher,
	chatModel ChatModel,
	publisher Publisher,
	prompts *PromptBuilder,
	m *metrics.Metrics,
	cfg OrchestratorConfig,
) *Orchestrator {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.MaxContext < 0 {
		cfg.MaxContext = 0
	}
	if strings.TrimSpace(cfg.NoInfoMessage) == "" {
		cfg.NoInfoMessage = DefaultNoInfoMessage
	}
	o := &Orchestrator{
		log:       log,
		tenants:   tenants,
		turns:     turns,
		cache:     cache,
		retriever: retriever,
		model:     chatModel,
		publisher: publisher,
		prompts:   prompts,
		metrics:   m,
		cfg:       cfg,
	}
	o.queue = newTurnQueue(o.handle)
	return o
}

// Submit queues a turn behind any earlier turns of the same session and
// returns immediately.
func (o *Orchestrator) Submit(ctx context.Context, in TurnInput) error {
	if strings.TrimSpace(in.SessionKey) == "" {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	o.queue.push(ctx, in)
	return nil
}

// Wait blocks until every submitted turn has finished.
func (o *Orchestrator) Wait() {
	o.queue.wait()
}

// ActiveSessions reports how many sessions have turns in flight.
func (o *Orchestrator) ActiveSessions() int {
	return o.queue.active()
}

func (o *Orchestrator) handle(ctx context.Context, in TurnInput) {
	if o.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.TurnTimeout)
		defer cancel()
	}
	start := time.Now()
	outcome := o.runTurn(ctx, in)
	o.metrics.ObserveTurn(outcome, time.Since(start))
}

func (o *Orchestrator) runTurn(ctx context.Context, in TurnInput) string {
	log := o.log.With("session_key", in.SessionKey, "tenant_id", in.TenantID)
	out := pubsub.Outbox(in.SessionKey)

	fail := func(err error, public string) string {
		log.Error("chat turn failed", "error", err)
		o.publishFinal(ctx, out, pubsub.ChatChunk{Done: true, Error: public})
		return metrics.OutcomeError
	}

	question := strings.TrimSpace(in.Message)
	if strings.TrimSpace(in.TenantID) == "" || question == "" {
		return fail(ErrInvalidInput, "invalid chat request")
	}

	tenant, err := o.tenants.GetByID(ctx, in.TenantID)
	if err != nil {
		return fail(err, "the assistant is temporarily unavailable")
	}
	if tenant == nil {
		return fail(ErrTenantNotFound, "unknown company")
	}

	history, err := o.loadHistory(ctx, in.SessionKey)
	if err != nil {
		return fail(err, "could not load the conversation")
	}
	for _, m := range history {
		if m.TenantID != "" && m.TenantID != tenant.ID {
			return fail(ErrSessionTenantMismatch, "this conversation belongs to another company")
		}
	}

	userPrompt := question
	system, err := o.prompts.System(tenant, o.cfg.RAGEnabled)
	if err != nil {
		return fail(err, "the assistant is temporarily unavailable")
	}

	if o.cfg.RAGEnabled {
		retrieved, found, err := o.retriever.Search(ctx, question, tenant.ID)
		if err != nil {
			return fail(err, "document search failed")
		}
		if !found {
			return o.answerWithoutModel(ctx, log, out, tenant.ID, in.SessionKey, question, history)
		}
		userPrompt = o.prompts.Augment(retrieved, question)
	}

	messages := o.prompts.Messages(system, history, userPrompt)
	answer, err := o.model.StreamChat(ctx, messages, func(chunk string) error {
		return o.publisher.Publish(ctx, out, pubsub.ChatChunk{Chunk: chunk})
	})
	if err != nil {
		return fail(err, "the assistant failed to answer, please retry")
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = emptyAnswerMessage
		if err := o.publisher.Publish(ctx, out, pubsub.ChatChunk{Chunk: answer}); err != nil {
			return fail(err, "the assistant failed to answer, please retry")
		}
	}

	if err := o.commit(ctx, tenant.ID, in.SessionKey, question, answer, history); err != nil {
		return fail(err, "could not save the conversation")
	}
	if err := o.publishFinal(ctx, out, pubsub.ChatChunk{Done: true}); err != nil {
		log.Warn("publish done marker failed after commit", "error", err)
		return metrics.OutcomeError
	}
	log.Info("chat turn answered", "answer_len", len(answer), "history_len", len(history))
	return metrics.OutcomeOK
}

// answerWithoutModel handles a turn whose retrieval found nothing: the fixed
// message is streamed and committed, and the model is never called.
func (o *Orchestrator) answerWithoutModel(
	ctx context.Context,
	log *logger.Logger,
	out pubsub.Channel,
	tenantID, sessionKey, question string,
	history []model.Message,
) string {
	answer := o.cfg.NoInfoMessage
	if err := o.publisher.Publish(ctx, out, pubsub.ChatChunk{Chunk: answer}); err != nil {
		log.Error("publish no-info answer failed", "error", err)
		o.publishFinal(ctx, out, pubsub.ChatChunk{Done: true, Error: "the assistant failed to answer, please retry"})
		return metrics.OutcomeError
	}
	if err := o.commit(ctx, tenantID, sessionKey, question, answer, history); err != nil {
		log.Error("commit no-info turn failed", "error", err)
		o.publishFinal(ctx, out, pubsub.ChatChunk{Done: true, Error: "could not save the conversation"})
		return metrics.OutcomeError
	}
	if err := o.publishFinal(ctx, out, pubsub.ChatChunk{Done: true}); err != nil {
		log.Warn("publish done marker failed after commit", "error", err)
		return metrics.OutcomeError
	}
	log.Info("chat turn answered without context")
	return metrics.OutcomeNoInfo
}

// publishFinal sends a terminal marker even when the turn context has
// expired, so the subscriber is never left waiting.
func (o *Orchestrator) publishFinal(ctx context.Context, out pubsub.Channel, chunk pubsub.ChatChunk) error {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishGrace)
	defer cancel()
	if err := o.publisher.Publish(pctx, out, chunk); err != nil {
		o.log.Error("publish final chunk failed", "channel", out.String(), "error", err)
		return err
	}
	return nil
}

func (o *Orchestrator) loadHistory(ctx context.Context, sessionKey string) ([]model.Message, error) {
	if o.cfg.MaxContext == 0 {
		return nil, nil
	}
	if o.cache != nil {
		cached, ok, err := o.cache.GetHistory(ctx, sessionKey)
		if err != nil {
			o.log.Warn("history cache read failed", "session_key", sessionKey, "error", err)
		} else if ok {
			return tail(cached, o.cfg.MaxContext), nil
		}
	}

	history, err := o.turns.ListRecentBySessionKey(ctx, sessionKey, o.cfg.MaxContext)
	if err != nil {
		return nil, fmt.Errorf("load history failed: %w", err)
	}
	if o.cache != nil {
		if err := o.cache.SetHistory(ctx, sessionKey, history); err != nil {
			o.log.Warn("history cache write failed", "session_key", sessionKey, "error", err)
		}
	}
	return history, nil
}

func (o *Orchestrator) commit(ctx context.Context, tenantID, sessionKey, question, answer string, history []model.Message) error {
	if err := o.turns.AppendTurn(ctx, tenantID, sessionKey, question, answer); err != nil {
		if errors.Is(err, ErrSessionTenantMismatch) {
			return err
		}
		return fmt.Errorf("commit turn failed: %w", err)
	}
	if o.cache == nil {
		return nil
	}

	now := time.Now()
	updated := append(append([]model.Message{}, history...),
		model.Message{SessionKey: sessionKey, TenantID: tenantID, Role: model.RoleUser, Content: question, CreatedAt: now},
		model.Message{SessionKey: sessionKey, TenantID: tenantID, Role: model.RoleAssistant, Content: answer, CreatedAt: now},
	)
	if err := o.cache.SetHistory(ctx, sessionKey, tail(updated, o.cfg.MaxContext)); err != nil {
		o.log.Warn("history cache refresh failed", "session_key", sessionKey, "error", err)
		_ = o.cache.DeleteHistory(context.WithoutCancel(ctx), sessionKey)
	}
	return nil
}

func tail(messages []model.Message, n int) []model.Message {
	if n <= 0 {
		return nil
	}
	if len(messages) > n {
		return messages[len(messages)-n:]
	}
	return messages
}
