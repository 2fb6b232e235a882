package model

import "time"

// ChatSession binds a session key (a user email or widget visitor id) to the
// tenant that opened it.
type ChatSession struct {
	SessionKey string    `gorm:"primaryKey;size:255" json:"session_key"`
	TenantID   string    `gorm:"size:64;not null;index" json:"tenant_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
