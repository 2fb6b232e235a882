package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryStore keeps vectors in process. It backs tests and single-binary
// local runs.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks map[string]Chunk
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chunks: make(map[string]Chunk)}
}

func (s *MemoryStore) Upsert(ctx context.Context, chunks []Chunk) error {
	if err := validateChunks(chunks); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		c.Embedding = append([]float32(nil), c.Embedding...)
		s.chunks[c.ID] = c
	}
	return nil
}

func (s *MemoryStore) Search(ctx context.Context, tenantID string, vector []float32, topK int) ([]Hit, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	topK = normalizeTopK(topK)

	s.mu.RLock()
	hits := make([]Hit, 0, len(s.chunks))
	for _, c := range s.chunks {
		if c.TenantID != tenantID {
			continue
		}
		if len(c.Embedding) != len(vector) {
			continue
		}
		hits = append(hits, Hit{Chunk: c, Score: cosineSimilarity(vector, c.Embedding)})
	}
	s.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *MemoryStore) DeleteByDocument(ctx context.Context, tenantID, documentID string) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.chunks {
		if c.TenantID == tenantID && c.DocumentID == documentID {
			delete(s.chunks, id)
		}
	}
	return nil
}

func (s *MemoryStore) CountByDocument(ctx context.Context, tenantID, documentID string) (int, error) {
	if err := requireTenant(tenantID); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.chunks {
		if c.TenantID == tenantID && c.DocumentID == documentID {
			n++
		}
	}
	return n, nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return dot / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
