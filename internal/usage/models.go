package usage

import "time"

// Log is one record per processed chat turn. Command turns never produce
// one. Failed turns are recorded with Success=false for observability and
// are excluded from quota counting.
type Log struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID string `gorm:"type:varchar(26);uniqueIndex;not null" json:"event_id"` // ULID

	APIKeyID  uint64 `gorm:"index;not null" json:"api_key_id"`
	ChannelID uint64 `gorm:"index:idx_usage_channel_time,priority:1;not null" json:"channel_id"`

	SessionID         string `gorm:"type:varchar(64);index;not null" json:"session_id"`
	ChannelIdentifier string `gorm:"type:varchar(255);not null" json:"channel_identifier"`
	UserID            string `gorm:"type:varchar(255);not null" json:"-"`
	ModelUsed         string `gorm:"type:varchar(255);not null" json:"model_used"`

	TokensUsed    *int     `json:"tokens_used"`
	EstimatedCost *float64 `json:"estimated_cost"`

	Success        bool    `gorm:"not null" json:"success"`
	ResponseTimeMS int     `gorm:"not null" json:"response_time_ms"`
	ErrorMessage   *string `gorm:"type:text" json:"error_message"`

	CreatedAt time.Time `gorm:"index:idx_usage_channel_time,priority:2" json:"created_at"`
}

func (Log) TableName() string { return "usage_logs" }

// Rollup is a per-channel per-day aggregate maintained by the worker from
// published usage events. Reporting reads it instead of scanning usage_logs.
type Rollup struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	Day       string    `gorm:"type:varchar(10);not null;index:idx_rollup_day_channel,unique,priority:1" json:"day"` // YYYY-MM-DD (UTC)
	ChannelID uint64    `gorm:"not null;index:idx_rollup_day_channel,unique,priority:2" json:"channel_id"`
	Requests  int64     `gorm:"not null;default:0" json:"requests"`
	Succeeded int64     `gorm:"not null;default:0" json:"succeeded"`
	Tokens    int64     `gorm:"not null;default:0" json:"tokens"`
	Cost      float64   `gorm:"not null;default:0" json:"cost"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Rollup) TableName() string { return "usage_rollups" }

// Stats is the aggregate view served by the admin surface.
type Stats struct {
	ChannelID      uint64  `json:"channel_id"`
	TotalRequests  int64   `json:"total_requests"`
	Succeeded      int64   `json:"succeeded"`
	Failed         int64   `json:"failed"`
	TotalTokens    int64   `json:"total_tokens"`
	TotalCost      float64 `json:"total_cost"`
	AvgResponseMS  float64 `json:"avg_response_ms"`
	SuccessPercent float64 `json:"success_percent"`
}
