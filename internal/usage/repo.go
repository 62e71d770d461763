package usage

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chatgate/chatgate/internal/common"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Record appends a usage log, assigning an event ID if the caller left it
// empty. Usage rows are append-only.
func (r *Repo) Record(ctx context.Context, l *Log) error {
	if l.EventID == "" {
		id, err := common.NewULID()
		if err != nil {
			return err
		}
		l.EventID = id
	}
	return r.db.WithContext(ctx).Create(l).Error
}

// CountSuccessful counts successful turns for a channel in [since, until).
// This is the quota accountant's read path.
func (r *Repo) CountSuccessful(ctx context.Context, channelID uint64, since, until time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Log{}).
		Where("channel_id = ? AND success = ? AND created_at >= ? AND created_at < ?",
			channelID, true, since, until).
		Count(&n).Error
	return n, err
}

// ChannelStats aggregates a channel's usage over a window.
func (r *Repo) ChannelStats(ctx context.Context, channelID uint64, since, until time.Time) (*Stats, error) {
	var row struct {
		Total     int64
		Succeeded int64
		Tokens    int64
		Cost      float64
		AvgMS     float64
	}
	err := r.db.WithContext(ctx).Model(&Log{}).
		Select(
			"COUNT(*) AS total, "+
				"SUM(CASE WHEN success THEN 1 ELSE 0 END) AS succeeded, "+
				"COALESCE(SUM(tokens_used), 0) AS tokens, "+
				"COALESCE(SUM(estimated_cost), 0) AS cost, "+
				"COALESCE(AVG(response_time_ms), 0) AS avg_ms").
		Where("channel_id = ? AND created_at >= ? AND created_at < ?", channelID, since, until).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		ChannelID:     channelID,
		TotalRequests: row.Total,
		Succeeded:     row.Succeeded,
		Failed:        row.Total - row.Succeeded,
		TotalTokens:   row.Tokens,
		TotalCost:     row.Cost,
		AvgResponseMS: row.AvgMS,
	}
	if row.Total > 0 {
		stats.SuccessPercent = float64(row.Succeeded) / float64(row.Total) * 100
	}
	return stats, nil
}

// Recent returns the newest usage rows for a channel.
func (r *Repo) Recent(ctx context.Context, channelID uint64, limit int) ([]Log, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []Log
	err := r.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ApplyToRollup folds one usage event into its channel's daily rollup row.
// Called by the worker; idempotence is per-event-delivery, so the queue's
// at-least-once delivery can overcount slightly. Rollups feed reporting
// only, never quota decisions.
func (r *Repo) ApplyToRollup(ctx context.Context, l *Log) error {
	day := l.CreatedAt.UTC().Format("2006-01-02")
	succeeded := int64(0)
	if l.Success {
		succeeded = 1
	}
	tokens := int64(0)
	if l.TokensUsed != nil {
		tokens = int64(*l.TokensUsed)
	}
	cost := 0.0
	if l.EstimatedCost != nil {
		cost = *l.EstimatedCost
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "day"}, {Name: "channel_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"requests":  gorm.Expr("requests + 1"),
			"succeeded": gorm.Expr("succeeded + ?", succeeded),
			"tokens":    gorm.Expr("tokens + ?", tokens),
			"cost":      gorm.Expr("cost + ?", cost),
		}),
	}).Create(&Rollup{
		Day:       day,
		ChannelID: l.ChannelID,
		Requests:  1,
		Succeeded: succeeded,
		Tokens:    tokens,
		Cost:      cost,
	}).Error
}

// GetByEventID loads a usage log by its ULID, used by the worker.
func (r *Repo) GetByEventID(ctx context.Context, eventID string) (*Log, error) {
	var l Log
	if err := r.db.WithContext(ctx).First(&l, "event_id = ?", eventID).Error; err != nil {
		return nil, err
	}
	return &l, nil
}
