package channel

import "time"

const (
	AccessPublic  = "public"
	AccessPrivate = "private"
)

// Channel is a tenant/integration record. Identifier is the stable string
// the session store keys on; it must not change once sessions exist for it.
// Nullable columns are overrides: nil means "use the access-tier default".
type Channel struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Identifier string `gorm:"type:varchar(255);uniqueIndex;not null" json:"channel_identifier"`
	Title      string `gorm:"type:varchar(255);not null" json:"title"`
	AccessType string `gorm:"type:varchar(16);not null;default:private;index" json:"access_type"`

	MonthlyQuota *int `json:"monthly_quota"`
	DailyQuota   *int `json:"daily_quota"`

	RateLimit        *int    `json:"rate_limit"`
	MaxHistory       *int    `json:"max_history"`
	DefaultModel     *string `gorm:"type:varchar(255)" json:"default_model"`
	AvailableModels  *string `gorm:"type:text" json:"available_models"` // CSV
	AllowModelSwitch *bool   `json:"allow_model_switch"`

	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Channel) TableName() string { return "channels" }
