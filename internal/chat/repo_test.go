package chat

import (
	"context"
	"testing"
	"time"

	"github.com/chatgate/chatgate/internal/session"
)

func insertMsg(t *testing.T, repo *Repo, key session.Key, role, content string) {
	t.Helper()
	var chanID *uint64
	if key.ChannelID != 0 {
		v := key.ChannelID
		chanID = &v
	}
	m := &Message{
		ChannelID:         chanID,
		ChannelIdentifier: key.ChannelIdentifier,
		UserID:            key.UserID,
		Role:              role,
		Content:           content,
	}
	if err := repo.InsertMessage(context.Background(), m); err != nil {
		t.Fatalf("insert %s/%s: %v", role, content, err)
	}
}

func TestRepo_ScopeIsolation(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	mine := session.Key{ChannelIdentifier: "team", ChannelID: 1, UserID: "u1"}
	otherUser := session.Key{ChannelIdentifier: "team", ChannelID: 1, UserID: "u2"}
	anon := session.Key{ChannelIdentifier: "team", UserID: "u1"}

	insertMsg(t, repo, mine, "user", "a")
	insertMsg(t, repo, otherUser, "user", "b")
	insertMsg(t, repo, anon, "user", "c")

	total, err := repo.TotalMessages(ctx, mine)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 1 {
		t.Fatalf("total = %d want 1", total)
	}

	// the anonymous scope (no channel record) is distinct from the
	// channel-backed scope with the same identifier and user
	anonCtxMsgs, err := repo.RecentContext(ctx, anon, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(anonCtxMsgs) != 1 || anonCtxMsgs[0].Content != "c" {
		t.Fatalf("anon context: %+v", anonCtxMsgs)
	}
}

func TestRepo_RecentContextOrderAndLimit(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	key := session.Key{ChannelIdentifier: "pub", UserID: "u1"}

	for _, c := range []string{"1", "2", "3", "4", "5"} {
		insertMsg(t, repo, key, "user", c)
	}

	got, err := repo.RecentContext(context.Background(), key, 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d want 3", len(got))
	}
	// newest three, oldest first
	for i, want := range []string{"3", "4", "5"} {
		if got[i].Content != want {
			t.Fatalf("got[%d] = %q want %q", i, got[i].Content, want)
		}
	}
}

func TestRepo_MarkCleared(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()
	key := session.Key{ChannelIdentifier: "pub", UserID: "u1"}

	insertMsg(t, repo, key, "user", "old")
	insertMsg(t, repo, key, "assistant", "old reply")

	if err := repo.MarkCleared(ctx, key, time.Now().UTC()); err != nil {
		t.Fatalf("clear: %v", err)
	}

	insertMsg(t, repo, key, "user", "new")

	// cleared rows drop out of context
	got, err := repo.RecentContext(ctx, key, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 1 || got[0].Content != "new" {
		t.Fatalf("context after clear: %+v", got)
	}

	// but they still count toward the lifetime total
	total, err := repo.TotalMessages(ctx, key)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 3 {
		t.Fatalf("total = %d want 3", total)
	}

	// a second clear must not restamp already-cleared rows
	var firstClearedAt time.Time
	var m Message
	if err := repo.db.Where("content = ?", "old").First(&m).Error; err != nil {
		t.Fatalf("query: %v", err)
	}
	firstClearedAt = *m.ClearedAt

	time.Sleep(5 * time.Millisecond)
	if err := repo.MarkCleared(ctx, key, time.Now().UTC()); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if err := repo.db.Where("content = ?", "old").First(&m).Error; err != nil {
		t.Fatalf("query: %v", err)
	}
	if !m.ClearedAt.Equal(firstClearedAt) {
		t.Fatalf("second clear restamped an already-cleared row")
	}
}
