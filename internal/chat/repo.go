package chat

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/chatgate/chatgate/internal/session"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) scoped(ctx context.Context, key session.Key) *gorm.DB {
	q := r.db.WithContext(ctx).
		Where("channel_identifier = ? AND user_id = ?", key.ChannelIdentifier, key.UserID)
	if key.ChannelID != 0 {
		return q.Where("channel_id = ?", key.ChannelID)
	}
	return q.Where("channel_id IS NULL")
}

func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ListRecentUnclearedDesc returns the most recent non-cleared messages for a
// session key, newest first.
func (r *Repo) ListRecentUnclearedDesc(ctx context.Context, key session.Key, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	var msgs []Message
	if err := r.scoped(ctx, key).Model(&Message{}).
		Where("cleared_at IS NULL").
		Order("id DESC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// CountMessages counts all persisted messages for a key, cleared included.
func (r *Repo) CountMessages(ctx context.Context, key session.Key) (int64, error) {
	var n int64
	if err := r.scoped(ctx, key).Model(&Message{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// MarkCleared stamps every uncleared message for a key. Nothing is deleted.
func (r *Repo) MarkCleared(ctx context.Context, key session.Key, at time.Time) error {
	return r.scoped(ctx, key).Model(&Message{}).
		Where("cleared_at IS NULL").
		Update("cleared_at", at).Error
}

// RecentContext implements session.HistoryLoader: the most recent non-cleared
// messages in original (oldest first) order, ready to hand to the AI backend.
func (r *Repo) RecentContext(ctx context.Context, key session.Key, limit int) ([]session.ContextMessage, error) {
	desc, err := r.ListRecentUnclearedDesc(ctx, key, limit)
	if err != nil {
		return nil, err
	}
	out := make([]session.ContextMessage, 0, len(desc))
	for i := len(desc) - 1; i >= 0; i-- {
		out = append(out, session.ContextMessage{Role: desc[i].Role, Content: desc[i].Content})
	}
	return out, nil
}

// TotalMessages implements session.HistoryLoader.
func (r *Repo) TotalMessages(ctx context.Context, key session.Key) (int64, error) {
	return r.CountMessages(ctx, key)
}
