package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrInvalidKey = errors.New("invalid api key")

const keyPrefixLen = 8

// Authenticator turns a presented raw key into a verified (channel, key)
// pair. Downstream code trusts its output and never sees raw secrets.
type Authenticator struct {
	db *gorm.DB
}

func NewAuthenticator(db *gorm.DB) *Authenticator {
	return &Authenticator{db: db}
}

func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// GenerateKey returns a new raw secret and its stored form. The raw value is
// shown to the caller exactly once.
func GenerateKey() (raw, hash, prefix string, err error) {
	buf := make([]byte, 24)
	if _, err = rand.Read(buf); err != nil {
		return "", "", "", err
	}
	raw = "cg_" + hex.EncodeToString(buf)
	return raw, HashKey(raw), raw[:keyPrefixLen], nil
}

// Verify resolves a raw key to its APIKey record, rejecting unknown,
// inactive, and expired keys. last_used_at is stamped best-effort.
func (a *Authenticator) Verify(ctx context.Context, raw string) (*APIKey, error) {
	if raw == "" {
		return nil, ErrInvalidKey
	}

	var key APIKey
	err := a.db.WithContext(ctx).
		Where("key_hash = ?", HashKey(raw)).
		First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if !key.IsActive || key.Expired(now) {
		return nil, ErrInvalidKey
	}

	_ = a.db.WithContext(ctx).Model(&APIKey{}).
		Where("id = ?", key.ID).
		Update("last_used_at", now).Error
	key.LastUsedAt = &now

	return &key, nil
}

// CreateKey issues a credential for a channel and returns the raw secret.
func (a *Authenticator) CreateKey(ctx context.Context, channelID uint64, name string) (string, *APIKey, error) {
	raw, hash, prefix, err := GenerateKey()
	if err != nil {
		return "", nil, err
	}
	key := &APIKey{
		KeyHash:   hash,
		KeyPrefix: prefix,
		Name:      name,
		ChannelID: channelID,
		IsActive:  true,
	}
	if err := a.db.WithContext(ctx).Create(key).Error; err != nil {
		return "", nil, err
	}
	return raw, key, nil
}

// RevokeKey deactivates a credential without deleting its usage history.
func (a *Authenticator) RevokeKey(ctx context.Context, id uint64) error {
	return a.db.WithContext(ctx).Model(&APIKey{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}
