package auth

import "time"

// APIKey is a channel credential. Only the SHA-256 hash of the secret is
// stored; the prefix survives for log correlation.
type APIKey struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	KeyHash   string `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	KeyPrefix string `gorm:"type:varchar(16);not null" json:"key_prefix"`
	Name      string `gorm:"type:varchar(255);not null" json:"name"`
	ChannelID uint64 `gorm:"index;not null" json:"channel_id"`

	IsActive   bool       `gorm:"not null;default:true" json:"is_active"`
	ExpiresAt  *time.Time `json:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (APIKey) TableName() string { return "api_keys" }

func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}
