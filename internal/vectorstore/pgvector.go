package vectorstore

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tenantrag/internal/model"
)

// PGVectorStore keeps chunks in the vector_chunks table of the relational
// database. It needs the postgres driver and the vector extension.
type PGVectorStore struct {
	db *gorm.DB
}

func NewPGVectorStore(db *gorm.DB) *PGVectorStore {
	return &PGVectorStore{db: db}
}

// Migrate enables the extension and creates the chunk table.
func (s *PGVectorStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("enable pgvector extension failed: %w", err)
	}
	if err := s.db.WithContext(ctx).AutoMigrate(&model.VectorChunk{}); err != nil {
		return fmt.Errorf("migrate vector chunks failed: %w", err)
	}
	return nil
}

func (s *PGVectorStore) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := validateChunks(chunks); err != nil {
		return err
	}

	rows := make([]model.VectorChunk, len(chunks))
	for i, c := range chunks {
		rows[i] = model.VectorChunk{
			ID:         c.ID,
			DocumentID: c.DocumentID,
			TenantID:   c.TenantID,
			Content:    c.Content,
			Source:     c.Source,
			Page:       c.Page,
			ChunkIndex: c.Index,
			Embedding:  pgvector.NewVector(c.Embedding),
		}
	}
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rows).Error; err != nil {
		return fmt.Errorf("upsert vector chunks failed: %w", err)
	}
	return nil
}

type scoredChunk struct {
	ID         string
	DocumentID string
	TenantID   string
	Content    string
	Source     string
	Page       int
	ChunkIndex int
	Score      float32
}

func (s *PGVectorStore) Search(ctx context.Context, tenantID string, vector []float32, topK int) ([]Hit, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	query := pgvector.NewVector(vector)

	var rows []scoredChunk
	if err := s.db.WithContext(ctx).Raw(`
		SELECT id, document_id, tenant_id, content, source, page, chunk_index,
		       1 - (embedding <=> ?) AS score
		FROM vector_chunks
		WHERE tenant_id = ?
		ORDER BY embedding <=> ?
		LIMIT ?`, query, tenantID, query, normalizeTopK(topK)).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("search vector chunks failed: %w", err)
	}

	hits := make([]Hit, len(rows))
	for i, r := range rows {
		hits[i] = Hit{
			Chunk: Chunk{
				ID:         r.ID,
				DocumentID: r.DocumentID,
				TenantID:   r.TenantID,
				Content:    r.Content,
				Source:     r.Source,
				Page:       r.Page,
				Index:      r.ChunkIndex,
			},
			Score: r.Score,
		}
	}
	return hits, nil
}

func (s *PGVectorStore) DeleteByDocument(ctx context.Context, tenantID, documentID string) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND document_id = ?", tenantID, documentID).
		Delete(&model.VectorChunk{}).Error; err != nil {
		return fmt.Errorf("delete vector chunks failed: %w", err)
	}
	return nil
}

func (s *PGVectorStore) CountByDocument(ctx context.Context, tenantID, documentID string) (int, error) {
	if err := requireTenant(tenantID); err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.VectorChunk{}).
		Where("tenant_id = ? AND document_id = ?", tenantID, documentID).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count vector chunks failed: %w", err)
	}
	return int(n), nil
}
