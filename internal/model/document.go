package model

import "time"

type DocumentStatus string

const (
	DocumentQueued      DocumentStatus = "queued"
	DocumentVectorizing DocumentStatus = "vectorizing"
	DocumentCompleted   DocumentStatus = "completed"
	DocumentFailed      DocumentStatus = "failed"
	// DocumentDeleting marks a terminal document whose vectors and blob are
	// being removed. The worker never claims it.
	DocumentDeleting DocumentStatus = "deleting"
)

// Terminal reports whether the document may be deleted.
func (s DocumentStatus) Terminal() bool {
	return s == DocumentCompleted || s == DocumentFailed || s == DocumentDeleting
}

type Document struct {
	ID           string         `gorm:"primaryKey;size:36" json:"document_id"`
	TenantID     string         `gorm:"size:64;not null;index" json:"company_id"`
	Filename     string         `gorm:"size:255;not null" json:"filename"`
	ContentType  string         `gorm:"size:128" json:"content_type"`
	SizeBytes    int64          `gorm:"not null" json:"size_bytes"`
	NumPages     int            `gorm:"not null" json:"num_pages"`
	Status       DocumentStatus `gorm:"size:16;not null;index" json:"status"`
	ErrorMessage string         `gorm:"type:text" json:"error_message,omitempty"`
	BlobPath     string         `gorm:"size:512;not null" json:"-"`
	ChunkCount   int            `json:"chunk_count"`
	UploadedAt   time.Time      `gorm:"autoCreateTime" json:"uploaded_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
