package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const DefaultTopK = 3

var ErrTenantRequired = errors.New("tenant id is required")

// Chunk is one embedded span of a document, always tagged with its tenant.
type Chunk struct {
	ID         string
	DocumentID string
	TenantID   string
	Content    string
	Source     string
	Page       int
	Index      int
	Embedding  []float32
}

type Hit struct {
	Chunk
	Score float32
}

// Store is a tenant-partitioned vector index. Every read and delete takes the
// tenant id as a required argument; no call can span tenants.
type Store interface {
	Upsert(ctx context.Context, chunks []Chunk) error
	Search(ctx context.Context, tenantID string, vector []float32, topK int) ([]Hit, error)
	DeleteByDocument(ctx context.Context, tenantID, documentID string) error
	CountByDocument(ctx context.Context, tenantID, documentID string) (int, error)
}

// ChunkID is stable per document and position, so re-indexing a document
// overwrites rather than duplicates.
func ChunkID(documentID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s:%d", documentID, index))).String()
}

func requireTenant(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return ErrTenantRequired
	}
	return nil
}

func validateChunks(chunks []Chunk) error {
	for i := range chunks {
		if err := requireTenant(chunks[i].TenantID); err != nil {
			return fmt.Errorf("chunk %d of document %q: %w", chunks[i].Index, chunks[i].DocumentID, err)
		}
		if len(chunks[i].Embedding) == 0 {
			return fmt.Errorf("chunk %d of document %q has no embedding", chunks[i].Index, chunks[i].DocumentID)
		}
		if chunks[i].ID == "" {
			chunks[i].ID = ChunkID(chunks[i].DocumentID, chunks[i].Index)
		}
	}
	return nil
}

func normalizeTopK(topK int) int {
	if topK <= 0 {
		return DefaultTopK
	}
	return topK
}
