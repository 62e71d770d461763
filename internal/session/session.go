package session

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// Key identifies one conversation: a channel, an optional channel record id,
// and an end user. ChannelID 0 marks the anonymous public channel, whose key
// omits the id so it stays stable whether or not a record is ever created.
type Key struct {
	ChannelIdentifier string
	ChannelID         uint64
	UserID            string
}

func (k Key) String() string {
	if k.ChannelID == 0 {
		return fmt.Sprintf("%s:%s", k.ChannelIdentifier, k.UserID)
	}
	return fmt.Sprintf("%s:%d:%s", k.ChannelIdentifier, k.ChannelID, k.UserID)
}

// SessionID derives the stable identifier recorded in usage logs. It is a
// pure function of the key so restarts reproduce it.
func (k Key) SessionID() string {
	sum := sha256.Sum256([]byte(k.String()))
	return hex.EncodeToString(sum[:16])
}

type ContextMessage struct {
	Role    string
	Content string
}

// Session is the process-local conversation state for one key. All field
// access after creation happens with mu held; the router holds the lock for
// the whole chat turn so per-key turns are strictly sequential.
type Session struct {
	mu sync.Mutex

	Key      Key
	APIKeyID uint64 // owning credential; 0 on the anonymous public channel

	CurrentModel  string
	History       []ContextMessage
	TotalMessages int64 // all persisted messages ever; survives /clear

	CreatedAt    time.Time
	LastActivity time.Time

	initOnce sync.Once
	initErr  error
}

func (s *Session) Lock()         { s.mu.Lock() }
func (s *Session) Unlock()       { s.mu.Unlock() }
func (s *Session) TryLock() bool { return s.mu.TryLock() }

// Append adds a message to the in-context window, truncating the oldest
// entries beyond maxHistory. Caller holds the session lock.
func (s *Session) Append(role, content string, maxHistory int) {
	s.History = append(s.History, ContextMessage{Role: role, Content: content})
	if maxHistory > 0 && len(s.History) > maxHistory {
		s.History = s.History[len(s.History)-maxHistory:]
	}
}

// RecentHistory returns up to max of the newest context messages, oldest
// first. Caller holds the session lock.
func (s *Session) RecentHistory(max int) []ContextMessage {
	h := s.History
	if max > 0 && len(h) > max {
		h = h[len(h)-max:]
	}
	out := make([]ContextMessage, len(h))
	copy(out, h)
	return out
}

// ClearHistory drops the in-context window. TotalMessages is untouched; it
// counts everything ever persisted, cleared or not.
func (s *Session) ClearHistory() {
	s.History = s.History[:0]
}

func (s *Session) Touch(now time.Time) {
	s.LastActivity = now
}
