package model

import "time"

// DocumentJob asks the ingestion worker to index one uploaded document.
type DocumentJob struct {
	JobID      string    `json:"job_id"`
	DocumentID string    `json:"document_id"`
	TenantID   string    `json:"company_id"`
	BlobPath   string    `json:"blob_path"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
