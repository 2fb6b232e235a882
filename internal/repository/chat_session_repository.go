package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"tenantrag/internal/model"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) GetByKey(ctx context.Context, sessionKey string) (*model.ChatSession, error) {
	var session model.ChatSession
	if err := r.db.WithContext(ctx).Where("session_key = ?", sessionKey).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session failed: %w", err)
	}
	return &session, nil
}
