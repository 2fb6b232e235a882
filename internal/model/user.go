package model

import "time"

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"size:128;not null;uniqueIndex" json:"email"`
	FullName     string    `gorm:"size:128" json:"full_name"`
	TenantID     string    `gorm:"size:64;not null;index" json:"tenant_id"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Disabled     bool      `gorm:"not null;default:false" json:"disabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
