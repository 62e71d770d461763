package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// ErrAccessDenied is returned when a credential presents a key owned by a
// different credential. The existing session is never mutated.
var ErrAccessDenied = errors.New("session owned by a different credential")

// HistoryLoader rehydrates a session from the durable store on cold start.
type HistoryLoader interface {
	RecentContext(ctx context.Context, key Key, limit int) ([]ContextMessage, error)
	TotalMessages(ctx context.Context, key Key) (int64, error)
}

// Store maps session keys to live sessions. The store mutex guards only the
// map; each session carries its own lock, so unrelated keys never contend
// and rehydration I/O happens outside the map lock.
type Store struct {
	mu       sync.RWMutex
	sessions map[Key]*Session

	loader HistoryLoader
	now    func() time.Time
}

func NewStore(loader HistoryLoader) *Store {
	return NewStoreWithClock(loader, time.Now)
}

func NewStoreWithClock(loader HistoryLoader, now func() time.Time) *Store {
	return &Store{sessions: make(map[Key]*Session), loader: loader, now: now}
}

// GetOrCreate returns the live session for key, creating and rehydrating it
// if absent. Exactly one concurrent caller observes isNew=true; the others
// wait on the same rehydration and see its result. A mismatched apiKeyID
// against an existing session fails with ErrAccessDenied.
func (st *Store) GetOrCreate(ctx context.Context, key Key, apiKeyID uint64, defaultModel string, maxHistory int) (*Session, bool, error) {
	st.mu.Lock()
	sess, ok := st.sessions[key]
	if !ok {
		now := st.now()
		sess = &Session{
			Key:          key,
			APIKeyID:     apiKeyID,
			CurrentModel: defaultModel,
			CreatedAt:    now,
			LastActivity: now,
		}
		st.sessions[key] = sess
	}
	st.mu.Unlock()

	if ok {
		if apiKeyID != 0 && sess.APIKeyID != apiKeyID {
			log.Printf("session access denied key=%s owner_key_id=%d presented_key_id=%d",
				key, sess.APIKeyID, apiKeyID)
			return nil, false, ErrAccessDenied
		}
	}

	sess.initOnce.Do(func() {
		sess.initErr = st.rehydrate(ctx, sess, maxHistory)
	})
	if sess.initErr != nil {
		// Drop the broken entry so a later call can retry rehydration.
		st.mu.Lock()
		if st.sessions[key] == sess {
			delete(st.sessions, key)
		}
		st.mu.Unlock()
		return nil, false, sess.initErr
	}

	return sess, !ok, nil
}

func (st *Store) rehydrate(ctx context.Context, sess *Session, maxHistory int) error {
	if st.loader == nil {
		return nil
	}
	total, err := st.loader.TotalMessages(ctx, sess.Key)
	if err != nil {
		return err
	}
	history, err := st.loader.RecentContext(ctx, sess.Key, maxHistory)
	if err != nil {
		return err
	}

	sess.Lock()
	sess.TotalMessages = total
	sess.History = history
	sess.Unlock()

	if total > 0 {
		log.Printf("session rehydrated key=%s total=%d in_context=%d", sess.Key, total, len(history))
	}
	return nil
}

// Get returns the live session for key, if any.
func (st *Store) Get(key Key) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sess, ok := st.sessions[key]
	return sess, ok
}

// Delete removes a session from memory. Durable messages are unaffected.
func (st *Store) Delete(key Key) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[key]; ok {
		delete(st.sessions, key)
		return true
	}
	return false
}

// EvictIdle removes sessions inactive beyond threshold. Sessions whose lock
// is held (a turn in flight) are skipped and picked up on a later sweep, so
// eviction never races an active caller's updates.
func (st *Store) EvictIdle(threshold time.Duration) int {
	cutoff := st.now().Add(-threshold)

	st.mu.RLock()
	candidates := make([]*Session, 0)
	for _, sess := range st.sessions {
		candidates = append(candidates, sess)
	}
	st.mu.RUnlock()

	evicted := 0
	for _, sess := range candidates {
		if !sess.TryLock() {
			continue
		}
		idle := sess.LastActivity.Before(cutoff)
		sess.Unlock()
		if !idle {
			continue
		}

		st.mu.Lock()
		if cur, ok := st.sessions[sess.Key]; ok && cur == sess {
			delete(st.sessions, sess.Key)
			evicted++
		}
		st.mu.Unlock()
	}

	if evicted > 0 {
		log.Printf("evicted %d idle sessions", evicted)
	}
	return evicted
}

// Len reports the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
