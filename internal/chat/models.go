package chat

import "time"

// Message is the durable record of one conversation turn half. Rows are
// never deleted; /clear only stamps cleared_at so the row drops out of AI
// context while staying available for audit.
type Message struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	// Isolation scope. ChannelID and APIKeyID are nil for traffic on the
	// anonymous public channel.
	ChannelID         *uint64 `gorm:"index" json:"-"`
	APIKeyID          *uint64 `gorm:"index" json:"-"`
	ChannelIdentifier string  `gorm:"type:varchar(255);not null;index:idx_chat_msg_scope,priority:1" json:"channel_identifier"`
	UserID            string  `gorm:"type:varchar(255);not null;index:idx_chat_msg_scope,priority:2" json:"-"`

	Role    string `gorm:"type:varchar(16);not null" json:"role"`
	Content string `gorm:"type:text;not null" json:"content"`

	ClearedAt *time.Time `json:"cleared_at"`
	CreatedAt time.Time  `json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }
