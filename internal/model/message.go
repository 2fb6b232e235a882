package model

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SessionKey string    `gorm:"size:255;not null;index" json:"session_key"`
	TenantID   string    `gorm:"size:64;not null" json:"tenant_id"`
	Role       string    `gorm:"size:16;not null" json:"role"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Message) TableName() string {
	return "chat_messages"
}
