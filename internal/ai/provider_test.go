package ai

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	return newTestProviderWithTimeout(t, handler, 5*time.Second)
}

func newTestProviderWithTimeout(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewProvider(
		ChatConfig{BaseURL: srv.URL + "/v1", Model: "mistral", Temperature: 0.7},
		EmbeddingConfig{BaseURL: srv.URL + "/v1", Model: "nomic-embed-text"},
		timeout,
	)
}

func TestStreamChat(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"), "no key configured")

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["stream"])
		assert.Equal(t, 0.7, body["temperature"])

		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{"Hel", "", "lo"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", part)
		}
		fmt.Fprint(w, ": keepalive\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var chunks []string
	full, err := p.StreamChat(t.Context(), []ChatMessage{{Role: "user", Content: "hi"}}, func(c string) error {
		chunks = append(chunks, c)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", full)
	assert.Equal(t, []string{"Hel", "lo"}, chunks)
}

func TestStreamChatTruncatedBody(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"The refund window is \"}}]}\n\n")
	})

	var chunks []string
	full, err := p.StreamChat(t.Context(), nil, func(c string) error {
		chunks = append(chunks, c)
		return nil
	})
	require.ErrorIs(t, err, ErrStreamIncomplete)
	assert.Empty(t, full)
	assert.Equal(t, []string{"The refund window is "}, chunks)
}

func TestStreamChatFinishReasonEndsAnswer(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Thirty days.\"},\"finish_reason\":null}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
	})

	full, err := p.StreamChat(t.Context(), nil, func(string) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, "Thirty days.", full)
}

func TestStreamChatOutlivesRequestTimeout(t *testing.T) {
	p := newTestProviderWithTimeout(t, func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"slow \"}}]}\n\n")
		flusher.Flush()
		time.Sleep(400 * time.Millisecond)
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"answer\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}, 150*time.Millisecond)

	full, err := p.StreamChat(t.Context(), nil, func(string) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, "slow answer", full)
}

func TestStreamChatStatusError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	})
	_, err := p.StreamChat(t.Context(), nil, func(string) error { return nil })
	assert.ErrorContains(t, err, "404")
}

func TestStreamChatCallbackErrorStops(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n\n")
	})
	calls := 0
	_, err := p.StreamChat(t.Context(), nil, func(string) error {
		calls++
		return fmt.Errorf("subscriber gone")
	})
	assert.ErrorContains(t, err, "subscriber gone")
	assert.Equal(t, 1, calls)
}

func TestEmbedDocumentsKeepsOrder(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		// Out of order on purpose; index decides placement.
		fmt.Fprint(w, `{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`)
	})

	vectors, err := p.EmbedDocuments(t.Context(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)
}

func TestEmbedRejectsBlankAndMismatch(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"index":0,"embedding":[1]}]}`)
	})

	_, err := p.EmbedDocuments(t.Context(), []string{"ok", "  "})
	assert.ErrorContains(t, err, "input 1 is empty")

	_, err = p.EmbedDocuments(t.Context(), []string{"a", "b"})
	assert.ErrorContains(t, err, "count mismatch")

	vec, err := p.EmbedQuery(t.Context(), "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, vec)
}
