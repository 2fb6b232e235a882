package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tenantrag/internal/ai"
	"tenantrag/internal/metrics"
	"tenantrag/internal/pkg/logger"
	"tenantrag/internal/transport/pubsub"
)

func newTestOrchestrator(e *testEnv, chat ChatModel, cache HistoryCache, ragEnabled bool) *Orchestrator {
	return NewOrchestrator(
		logger.Nop(),
		e.tenants,
		e.messages,
		cache,
		NewRetriever(&wordEmbedder{}, e.store, 3),
		chat,
		e.broker,
		NewPromptBuilder("", ""),
		metrics.New(prometheus.NewRegistry()),
		OrchestratorConfig{RAGEnabled: ragEnabled, MaxContext: 10, TurnTimeout: 5 * time.Second},
	)
}

func subscribeOutbox(t *testing.T, e *testEnv, sessionKey string) pubsub.Subscription {
	t.Helper()
	sub, err := e.broker.Subscribe(context.Background(), pubsub.Outbox(sessionKey))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })
	return sub
}

func TestTurnStreamsAnswerAndCommits(t *testing.T) {
	e := newTestEnv(t)
	e.seedTenant(t, "acme", 0)
	e.seedChunk(t, "acme", "d1", "handbook.pdf", "Our opening hours are nine to five on weekdays.")

	chat := &mockChatModel{}
	chat.On("StreamChat", mock.Anything, mock.MatchedBy(func(msgs []ai.ChatMessage) bool {
		last := msgs[len(msgs)-1]
		return msgs[0].Role == "system" &&
			strings.Contains(msgs[0].Content, "Acme Inc") &&
			strings.Contains(last.Content, "[Document 1]") &&
			strings.Contains(last.Content, "Source: handbook.pdf (page 1)") &&
			strings.Contains(last.Content, "What are your opening hours?")
	}), mock.Anything).Return("We are open nine to five. [Source: handbook.pdf]", nil).Once()

	o := newTestOrchestrator(e, chat, nil, true)
	sub := subscribeOutbox(t, e, "alice@example.com")

	require.NoError(t, o.Submit(context.Background(), TurnInput{
		TenantID:   "acme",
		SessionKey: "alice@example.com",
		Message:    "  What are your opening hours?  ",
	}))
	chunks := collectTurn(t, sub)
	o.Wait()

	require.Greater(t, len(chunks), 2)
	last := chunks[len(chunks)-1]
	assert.True(t, last.Done)
	assert.Empty(t, last.Error)
	assert.Equal(t, "We are open nine to five. [Source: handbook.pdf]", joinChunks(chunks))
	chat.AssertExpectations(t)

	history, err := e.messages.ListBySessionKey(context.Background(), "alice@example.com", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "What are your opening hours?", history[0].Content, "history keeps the bare question")
	assert.Equal(t, "We are open nine to five. [Source: handbook.pdf]", history[1].Content)
}

func TestNoContextSkipsModel(t *testing.T) {
	e := newTestEnv(t)
	e.seedTenant(t, "acme", 0)
	e.seedTenant(t, "globex", 0)
	// Only another tenant has documents.
	e.seedChunk(t, "globex", "g1", "globex.pdf", "Our opening hours are nine to five.")

	chat := &mockChatModel{}
	o := newTestOrchestrator(e, chat, nil, true)
	sub := subscribeOutbox(t, e, "bob@example.com")

	require.NoError(t, o.Submit(context.Background(), TurnInput{TenantID: "acme", SessionKey: "bob@example.com", Message: "opening hours?"}))
	chunks := collectTurn(t, sub)
	o.Wait()

	chat.AssertNotCalled(t, "StreamChat", mock.Anything, mock.Anything, mock.Anything)
	require.Len(t, chunks, 2)
	assert.Equal(t, DefaultNoInfoMessage, chunks[0].Chunk)
	assert.True(t, chunks[1].Done)
	assert.Empty(t, chunks[1].Error)

	history, err := e.messages.ListBySessionKey(context.Background(), "bob@example.com", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, DefaultNoInfoMessage, history[1].Content)
}

func TestModelFailureCommitsNothing(t *testing.T) {
	e := newTestEnv(t)
	e.seedTenant(t, "acme", 0)
	e.seedChunk(t, "acme", "d1", "faq.pdf", "Refunds take ten days.")

	chat := &mockChatModel{}
	chat.On("StreamChat", mock.Anything, mock.Anything, mock.Anything).
		Return("Refunds take ", errors.New("upstream reset")).Once()

	o := newTestOrchestrator(e, chat, nil, true)
	sub := subscribeOutbox(t, e, "carol@example.com")

	require.NoError(t, o.Submit(context.Background(), TurnInput{TenantID: "acme", SessionKey: "carol@example.com", Message: "How long do refunds take?"}))
	chunks := collectTurn(t, sub)
	o.Wait()

	last := chunks[len(chunks)-1]
	assert.True(t, last.Done)
	assert.NotEmpty(t, last.Error)

	history, err := e.messages.ListBySessionKey(context.Background(), "carol@example.com", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestTruncatedModelStreamCommitsNothing(t *testing.T) {
	e := newTestEnv(t)
	e.seedTenant(t, "acme", 0)
	e.seedChunk(t, "acme", "d1", "faq.pdf", "Refunds take ten days.")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Refunds take \"}}]}\n\n")
		// The upstream drops the connection before [DONE].
	}))
	t.Cleanup(srv.Close)
	provider := ai.NewProvider(
		ai.ChatConfig{BaseURL: srv.URL + "/v1", Model: "mistral"},
		ai.EmbeddingConfig{BaseURL: srv.URL + "/v1", Model: "nomic-embed-text"},
		5*time.Second,
	)

	o := newTestOrchestrator(e, provider, nil, true)
	sub := subscribeOutbox(t, e, "dave@example.com")

	require.NoError(t, o.Submit(context.Background(), TurnInput{TenantID: "acme", SessionKey: "dave@example.com", Message: "How long do refunds take?"}))
	chunks := collectTurn(t, sub)
	o.Wait()

	require.Len(t, chunks, 2)
	assert.Equal(t, "Refunds take ", chunks[0].Chunk)
	assert.True(t, chunks[1].Done)
	assert.NotEmpty(t, chunks[1].Error)

	history, err := e.messages.ListBySessionKey(context.Background(), "dave@example.com", 0)
	require.NoError(t, err)
	assert.Empty(t, history, "a cut-off answer is not saved")
}

func TestInvalidTurnsEndWithError(t *testing.T) {
	e := newTestEnv(t)
	e.seedTenant(t, "acme", 0)
	chat := &mockChatModel{}
	o := newTestOrchestrator(e, chat, nil, true)

	cases := []TurnInput{
		{TenantID: "acme", SessionKey: "s1", Message: "   "},
		{TenantID: "", SessionKey: "s2", Message: "hello"},
		{TenantID: "initech", SessionKey: "s3", Message: "hello"},
	}
	for _, in := range cases {
		sub := subscribeOutbox(t, e, in.SessionKey)
		require.NoError(t, o.Submit(context.Background(), in))
		chunks := collectTurn(t, sub)
		require.Len(t, chunks, 1, in.SessionKey)
		assert.True(t, chunks[0].Done)
		assert.NotEmpty(t, chunks[0].Error)
	}
	o.Wait()

	chat.AssertNotCalled(t, "StreamChat", mock.Anything, mock.Anything, mock.Anything)
	assert.ErrorIs(t, o.Submit(context.Background(), TurnInput{TenantID: "acme", Message: "hi"}), ErrInvalidInput)
}

func TestEmptyAnswerIsReplaced(t *testing.T) {
	e := newTestEnv(t)
	e.seedTenant(t, "acme", 0)
	chat := &mockChatModel{}
	chat.On("StreamChat", mock.Anything, mock.Anything, mock.Anything).Return("", nil).Once()

	o := newTestOrchestrator(e, chat, nil, false)
	sub := subscribeOutbox(t, e, "dave@example.com")
	require.NoError(t, o.Submit(context.Background(), TurnInput{TenantID: "acme", SessionKey: "dave@example.com", Message: "hi"}))
	chunks := collectTurn(t, sub)
	o.Wait()

	assert.Equal(t, emptyAnswerMessage, joinChunks(chunks))
	history, err := e.messages.ListBySessionKey(context.Background(), "dave@example.com", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, emptyAnswerMessage, history[1].Content)
}

func TestHistoryFeedsNextTurn(t *testing.T) {
	e := newTestEnv(t)
	e.seedTenant(t, "acme", 0)
	cache := newMemoryHistoryCache()

	chat := &mockChatModel{}
	chat.On("StreamChat", mock.Anything, mock.MatchedBy(func(msgs []ai.ChatMessage) bool {
		return len(msgs) == 2
	}), mock.Anything).Return("Hello Erin.", nil).Once()
	chat.On("StreamChat", mock.Anything, mock.MatchedBy(func(msgs []ai.ChatMessage) bool {
		return len(msgs) == 4 &&
			msgs[1].Role == "user" && msgs[1].Content == "My name is Erin." &&
			msgs[2].Role == "assistant" && msgs[2].Content == "Hello Erin."
	}), mock.Anything).Return("Your name is Erin.", nil).Once()

	o := newTestOrchestrator(e, chat, cache, false)
	sub := subscribeOutbox(t, e, "erin@example.com")

	require.NoError(t, o.Submit(context.Background(), TurnInput{TenantID: "acme", SessionKey: "erin@example.com", Message: "My name is Erin."}))
	require.NoError(t, o.Submit(context.Background(), TurnInput{TenantID: "acme", SessionKey: "erin@example.com", Message: "What is my name?"}))
	first := collectTurn(t, sub)
	second := collectTurn(t, sub)
	o.Wait()

	assert.Equal(t, "Hello Erin.", joinChunks(first))
	assert.Equal(t, "Your name is Erin.", joinChunks(second))
	chat.AssertExpectations(t)

	cached, ok, err := cache.GetHistory(context.Background(), "erin@example.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, cached, 4)
}

// orderedModel answers with the question it received and holds the first
// question long enough that a racing second turn would overtake it.
type orderedModel struct {
	mu   sync.Mutex
	seen []string
}

func (m *orderedModel) StreamChat(ctx context.Context, messages []ai.ChatMessage, onChunk func(string) error) (string, error) {
	q := messages[len(messages)-1].Content
	if q == "first" {
		time.Sleep(50 * time.Millisecond)
	}
	m.mu.Lock()
	m.seen = append(m.seen, q)
	m.mu.Unlock()
	return q, onChunk(q)
}

func TestTurnsOfOneSessionRunInOrder(t *testing.T) {
	e := newTestEnv(t)
	e.seedTenant(t, "acme", 0)
	chat := &orderedModel{}
	o := newTestOrchestrator(e, chat, nil, false)
	sub := subscribeOutbox(t, e, "frank@example.com")

	for _, q := range []string{"first", "second", "third"} {
		require.NoError(t, o.Submit(context.Background(), TurnInput{TenantID: "acme", SessionKey: "frank@example.com", Message: q}))
	}
	for _, want := range []string{"first", "second", "third"} {
		assert.Equal(t, want, joinChunks(collectTurn(t, sub)))
	}
	o.Wait()
	assert.Equal(t, 0, o.ActiveSessions())
	assert.Equal(t, []string{"first", "second", "third"}, chat.seen)

	history, err := e.messages.ListBySessionKey(context.Background(), "frank@example.com", 0)
	require.NoError(t, err)
	require.Len(t, history, 6)
	assert.Equal(t, "second", history[2].Content)
}

func TestSessionBoundToTenant(t *testing.T) {
	e := newTestEnv(t)
	e.seedTenant(t, "acme", 0)
	e.seedTenant(t, "globex", 0)
	require.NoError(t, e.messages.AppendTurn(context.Background(), "acme", "grace@example.com", "hi", "hello"))

	chat := &mockChatModel{}
	o := newTestOrchestrator(e, chat, nil, false)
	sub := subscribeOutbox(t, e, "grace@example.com")

	require.NoError(t, o.Submit(context.Background(), TurnInput{TenantID: "globex", SessionKey: "grace@example.com", Message: "hi again"}))
	chunks := collectTurn(t, sub)
	o.Wait()

	require.Len(t, chunks, 1)
	assert.NotEmpty(t, chunks[0].Error)
	chat.AssertNotCalled(t, "StreamChat", mock.Anything, mock.Anything, mock.Anything)
}

func TestFormatHits(t *testing.T) {
	e := newTestEnv(t)
	e.seedChunk(t, "acme", "d1", "a.pdf", "alpha beta")
	hits, err := e.store.Search(context.Background(), "acme", embedText("alpha beta"), 3)
	require.NoError(t, err)
	hits[0].Page = 0

	assert.Equal(t, "[Document 1]\nSource: a.pdf\nContent:\nalpha beta\n", FormatHits(hits))
}

func TestRetrieverRequiresTenant(t *testing.T) {
	e := newTestEnv(t)
	r := NewRetriever(&wordEmbedder{}, e.store, 0)
	_, _, err := r.Search(context.Background(), "anything", " ")
	assert.Error(t, err)
}
