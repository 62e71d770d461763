package channel

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/chatgate/chatgate/internal/store/redisstore"
)

const cacheTTL = 60 * time.Second

type Repo struct {
	db    *gorm.DB
	cache *redisstore.Store
}

func NewRepo(db *gorm.DB, cache *redisstore.Store) *Repo {
	return &Repo{db: db, cache: cache}
}

func cacheKey(identifier string) string { return "channel:" + identifier }

// GetByIdentifier loads a channel record, read-through cached. Channel rows
// are read on every request and change rarely, so a short TTL is enough.
func (r *Repo) GetByIdentifier(ctx context.Context, identifier string) (*Channel, error) {
	var cached Channel
	if hit, err := r.cache.GetJSON(ctx, cacheKey(identifier), &cached); err == nil && hit {
		return &cached, nil
	}

	var ch Channel
	if err := r.db.WithContext(ctx).
		Where("identifier = ?", identifier).
		First(&ch).Error; err != nil {
		return nil, err
	}

	_ = r.cache.SetJSON(ctx, cacheKey(identifier), &ch, cacheTTL)
	return &ch, nil
}

func (r *Repo) GetByID(ctx context.Context, id uint64) (*Channel, error) {
	var ch Channel
	if err := r.db.WithContext(ctx).First(&ch, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &ch, nil
}

func (r *Repo) Create(ctx context.Context, ch *Channel) error {
	return r.db.WithContext(ctx).Create(ch).Error
}

// Update persists the record and drops its cache entry so the next request
// sees the new overrides. The identifier itself is immutable; callers must
// not change it on an existing row.
func (r *Repo) Update(ctx context.Context, ch *Channel) error {
	if err := r.db.WithContext(ctx).Save(ch).Error; err != nil {
		return err
	}
	return r.cache.Del(ctx, cacheKey(ch.Identifier))
}

func (r *Repo) List(ctx context.Context) ([]Channel, error) {
	var out []Channel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
