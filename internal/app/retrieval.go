package app

import (
	"context"
	"fmt"
	"strings"

	"tenantrag/internal/vectorstore"
)

// Retriever runs tenant-scoped similarity search and renders the hits as a
// context block for the prompt.
type Retriever struct {
	embedder QueryEmbedder
	store    vectorstore.Store
	topK     int
}

func NewRetriever(embedder QueryEmbedder, store vectorstore.Store, topK int) *Retriever {
	if topK <= 0 {
		topK = vectorstore.DefaultTopK
	}
	return &Retriever{embedder: embedder, store: store, topK: topK}
}

// Search returns the formatted context and whether anything was found. The
// tenant filter is mandatory; an empty tenant never reaches the store.
func (r *Retriever) Search(ctx context.Context, query, tenantID string) (string, bool, error) {
	if strings.TrimSpace(tenantID) == "" {
		return "", false, vectorstore.ErrTenantRequired
	}
	if strings.TrimSpace(query) == "" {
		return "", false, ErrInvalidInput
	}

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return "", false, fmt.Errorf("embed query failed: %w", err)
	}
	hits, err := r.store.Search(ctx, tenantID, vector, r.topK)
	if err != nil {
		return "", false, fmt.Errorf("vector search failed: %w", err)
	}
	if len(hits) == 0 {
		return "", false, nil
	}
	return FormatHits(hits), true, nil
}

// FormatHits renders hits in rank order, numbered from 1.
func FormatHits(hits []vectorstore.Hit) string {
	blocks := make([]string, 0, len(hits))
	for i, h := range hits {
		source := h.Source
		if source == "" {
			source = "unknown"
		}
		if h.Page > 0 {
			source = fmt.Sprintf("%s (page %d)", source, h.Page)
		}
		blocks = append(blocks, fmt.Sprintf("[Document %d]\nSource: %s\nContent:\n%s\n", i+1, source, h.Content))
	}
	return strings.Join(blocks, "\n---\n")
}
