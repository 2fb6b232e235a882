package app

import (
	"context"

	"tenantrag/internal/ai"
	"tenantrag/internal/model"
	"tenantrag/internal/transport/pubsub"
)

type TenantStore interface {
	GetByID(ctx context.Context, id string) (*model.Tenant, error)
	GetByAPIKey(ctx context.Context, apiKey string) (*model.Tenant, error)
}

type DocumentRegistry interface {
	CreateWithinQuota(ctx context.Context, doc *model.Document, pageQuota int) error
	GetByID(ctx context.Context, id string) (*model.Document, error)
	GetForTenant(ctx context.Context, tenantID, id string) (*model.Document, error)
	ListByTenant(ctx context.Context, tenantID string) ([]model.Document, error)
	Claim(ctx context.Context, id string) (bool, error)
	MarkCompleted(ctx context.Context, id string, chunkCount int) error
	MarkFailed(ctx context.Context, id, message string) error
	BeginDelete(ctx context.Context, tenantID, id string) (*model.Document, error)
	Delete(ctx context.Context, id string) error
}

type TurnStore interface {
	AppendTurn(ctx context.Context, tenantID, sessionKey, userContent, assistantContent string) error
	ListBySessionKey(ctx context.Context, sessionKey string, limit int) ([]model.Message, error)
	ListRecentBySessionKey(ctx context.Context, sessionKey string, limit int) ([]model.Message, error)
}

// SessionStore reads the tenant a session key was first opened under.
type SessionStore interface {
	GetByKey(ctx context.Context, sessionKey string) (*model.ChatSession, error)
}

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uint) (*model.User, error)
}

type HistoryCache interface {
	GetHistory(ctx context.Context, sessionKey string) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, sessionKey string, messages []model.Message) error
	DeleteHistory(ctx context.Context, sessionKey string) error
}

type ChatModel interface {
	StreamChat(ctx context.Context, messages []ai.ChatMessage, onChunk func(string) error) (string, error)
}

type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type DocumentEmbedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

type JobQueue interface {
	Enqueue(ctx context.Context, job model.DocumentJob) (string, error)
}

type Publisher interface {
	Publish(ctx context.Context, ch pubsub.Channel, payload interface{}) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, channels ...pubsub.Channel) (pubsub.Subscription, error)
}
