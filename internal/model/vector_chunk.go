package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// VectorChunk is one embedded span of a document. TenantID always equals the
// owning document's tenant.
type VectorChunk struct {
	ID         string          `gorm:"primaryKey;size:36"`
	DocumentID string          `gorm:"size:36;not null;index"`
	TenantID   string          `gorm:"size:64;not null;index"`
	Content    string          `gorm:"type:text;not null"`
	Source     string          `gorm:"size:255"`
	Page       int             `gorm:"not null;default:0"`
	ChunkIndex int             `gorm:"not null"`
	Embedding  pgvector.Vector `gorm:"type:vector"`
	CreatedAt  time.Time
}
