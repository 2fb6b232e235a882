package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"tenantrag/internal/model"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// AppendTurn stores one user message and its answer atomically, creating the
// session on first use. A session opened by another tenant is rejected.
func (r *MessageRepository) AppendTurn(ctx context.Context, tenantID, sessionKey, userContent, assistantContent string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session := model.ChatSession{}
		if err := tx.Where(model.ChatSession{SessionKey: sessionKey}).
			Attrs(model.ChatSession{TenantID: tenantID}).
			FirstOrCreate(&session).Error; err != nil {
			return fmt.Errorf("ensure session failed: %w", err)
		}
		if session.TenantID != tenantID {
			return ErrSessionTenantMismatch
		}

		now := time.Now()
		messages := []model.Message{
			{SessionKey: sessionKey, TenantID: tenantID, Role: model.RoleUser, Content: userContent, CreatedAt: now},
			{SessionKey: sessionKey, TenantID: tenantID, Role: model.RoleAssistant, Content: assistantContent, CreatedAt: now},
		}
		if err := tx.Create(&messages).Error; err != nil {
			return fmt.Errorf("create turn messages failed: %w", err)
		}
		if err := tx.Model(&model.ChatSession{}).
			Where("session_key = ?", sessionKey).
			Update("updated_at", now).Error; err != nil {
			return fmt.Errorf("touch session failed: %w", err)
		}
		return nil
	})
}

// ListBySessionKey returns the newest messages of a session in turn order,
// at most 100 unless limit asks for fewer (or up to 200).
func (r *MessageRepository) ListBySessionKey(ctx context.Context, sessionKey string, limit int) ([]model.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	return r.ListRecentBySessionKey(ctx, sessionKey, limit)
}

// ListRecentBySessionKey returns the newest limit messages in turn order.
func (r *MessageRepository) ListRecentBySessionKey(ctx context.Context, sessionKey string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		return nil, nil
	}

	var messages []model.Message
	if err := r.db.WithContext(ctx).
		Where("session_key = ?", sessionKey).
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list recent messages failed: %w", err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
