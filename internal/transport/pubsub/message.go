package pubsub

import "time"

// ChatRequest is published on a session inbox by the API gateway. RequestID
// is unique per send; agents claim it so that one request is answered once
// however many agents listen.
type ChatRequest struct {
	RequestID  string    `json:"request_id"`
	TenantID   string    `json:"tenant_id"`
	SessionKey string    `json:"session_key"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// ChatChunk is one fragment of an answer on a session outbox. The last
// chunk of a turn has Done set, and Error set when the turn failed.
type ChatChunk struct {
	Chunk string `json:"chunk"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

type ProgressEvent struct {
	DocumentID string `json:"document_id"`
	Step       string `json:"step"`
	Progress   int    `json:"progress"`
	Message    string `json:"message,omitempty"`
	Done       bool   `json:"done"`
	Error      string `json:"error,omitempty"`
}
