package model

import "time"

type Tenant struct {
	ID        string    `gorm:"primaryKey;size:64" json:"company_id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Tone      string    `gorm:"size:128" json:"tone"`
	APIKey    string    `gorm:"size:128;not null;uniqueIndex" json:"-"`
	Plan      string    `gorm:"size:32;not null;default:free" json:"plan"`
	PageQuota int       `gorm:"not null;default:0" json:"page_quota"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EffectivePageQuota falls back to the deployment default when the tenant
// has no explicit quota.
func (t *Tenant) EffectivePageQuota(fallback int) int {
	if t.PageQuota > 0 {
		return t.PageQuota
	}
	return fallback
}
