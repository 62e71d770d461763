package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:auth_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&APIKey{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestGenerateKey(t *testing.T) {
	raw, hash, prefix, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(raw, "cg_") {
		t.Fatalf("raw key = %q", raw)
	}
	if hash != HashKey(raw) {
		t.Fatalf("hash mismatch")
	}
	if prefix != raw[:8] {
		t.Fatalf("prefix = %q", prefix)
	}

	raw2, _, _, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if raw == raw2 {
		t.Fatalf("keys must be unique")
	}
}

func TestVerify_RoundTrip(t *testing.T) {
	a := NewAuthenticator(openTestDB(t))

	raw, key, err := a.CreateKey(context.Background(), 3, "ops")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}
	if key.LastUsedAt != nil {
		t.Fatalf("fresh key should have no last_used_at")
	}

	got, err := a.Verify(context.Background(), raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.ID != key.ID || got.ChannelID != 3 {
		t.Fatalf("verified key: %+v", got)
	}
	if got.LastUsedAt == nil {
		t.Fatalf("verify should stamp last_used_at")
	}
}

func TestVerify_Rejections(t *testing.T) {
	a := NewAuthenticator(openTestDB(t))

	if _, err := a.Verify(context.Background(), ""); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("empty key: %v", err)
	}
	if _, err := a.Verify(context.Background(), "cg_nope"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("unknown key: %v", err)
	}

	raw, key, err := a.CreateKey(context.Background(), 1, "revoked")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}
	if err := a.RevokeKey(context.Background(), key.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := a.Verify(context.Background(), raw); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("revoked key should fail: %v", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	db := openTestDB(t)
	a := NewAuthenticator(db)

	raw, key, err := a.CreateKey(context.Background(), 1, "expiring")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}
	past := time.Now().UTC().Add(-time.Hour)
	if err := db.Model(key).Update("expires_at", past).Error; err != nil {
		t.Fatalf("set expiry: %v", err)
	}

	if _, err := a.Verify(context.Background(), raw); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expired key should fail: %v", err)
	}
}

func TestAdminLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	a := NewAdminAuth("test-secret", "admin", string(hash))

	token, err := a.Login("admin", "hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := a.VerifyToken(token); err != nil {
		t.Fatalf("verify token: %v", err)
	}

	if _, err := a.Login("admin", "wrong"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("wrong password: %v", err)
	}
	if _, err := a.Login("root", "hunter2"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("wrong user: %v", err)
	}
	if err := a.VerifyToken("not.a.token"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("garbage token: %v", err)
	}

	// other-secret tokens are refused
	other := NewAdminAuth("other-secret", "admin", string(hash))
	otherToken, err := other.Login("admin", "hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := a.VerifyToken(otherToken); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("cross-secret token must fail: %v", err)
	}
}

func TestAdminLogin_DisabledWithoutHash(t *testing.T) {
	a := NewAdminAuth("test-secret", "admin", "")
	if _, err := a.Login("admin", "anything"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("empty hash must disable login: %v", err)
	}
}
