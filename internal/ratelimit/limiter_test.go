package ratelimit

import (
	"testing"
	"time"
)

func TestCheckAndIncrement_DeniesBeyondLimit(t *testing.T) {
	l := New()

	for i := 0; i < 5; i++ {
		allowed, remaining := l.CheckAndIncrement("k", 5)
		if !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if want := 5 - (i + 1); remaining != want {
			t.Fatalf("request %d: remaining=%d want %d", i+1, remaining, want)
		}
	}

	allowed, remaining := l.CheckAndIncrement("k", 5)
	if allowed {
		t.Fatalf("6th request should be denied")
	}
	if remaining != 0 {
		t.Fatalf("remaining=%d want 0", remaining)
	}
}

func TestCheckAndIncrement_WindowResets(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewWithClock(func() time.Time { return now })

	if allowed, _ := l.CheckAndIncrement("k", 1); !allowed {
		t.Fatalf("first request should be allowed")
	}
	if allowed, _ := l.CheckAndIncrement("k", 1); allowed {
		t.Fatalf("second request in same window should be denied")
	}

	// one second short of the boundary: still the same window
	now = now.Add(Window - time.Second)
	if allowed, _ := l.CheckAndIncrement("k", 1); allowed {
		t.Fatalf("request just before window end should be denied")
	}

	now = now.Add(time.Second)
	if allowed, _ := l.CheckAndIncrement("k", 1); !allowed {
		t.Fatalf("request in fresh window should be allowed")
	}
}

func TestCheckAndIncrement_UnlimitedWhenNonPositive(t *testing.T) {
	l := New()
	for i := 0; i < 100; i++ {
		allowed, remaining := l.CheckAndIncrement("k", 0)
		if !allowed || remaining != -1 {
			t.Fatalf("unlimited key: allowed=%v remaining=%d", allowed, remaining)
		}
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := New()

	if allowed, _ := l.CheckAndIncrement("a", 1); !allowed {
		t.Fatalf("key a should be allowed")
	}
	if allowed, _ := l.CheckAndIncrement("a", 1); allowed {
		t.Fatalf("key a should be exhausted")
	}
	if allowed, _ := l.CheckAndIncrement("b", 1); !allowed {
		t.Fatalf("key b should be unaffected by key a")
	}
}

func TestRemaining_DoesNotConsume(t *testing.T) {
	l := New()
	l.CheckAndIncrement("k", 3)

	for i := 0; i < 10; i++ {
		if got := l.Remaining("k", 3); got != 2 {
			t.Fatalf("Remaining=%d want 2", got)
		}
	}
	if got := l.Remaining("unseen", 3); got != 3 {
		t.Fatalf("Remaining for unseen key=%d want 3", got)
	}
	if got := l.Remaining("k", 0); got != -1 {
		t.Fatalf("Remaining unlimited=%d want -1", got)
	}
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewWithClock(func() time.Time { return now })

	if got := l.RetryAfter("k"); got != 0 {
		t.Fatalf("RetryAfter for unseen key=%v want 0", got)
	}

	l.CheckAndIncrement("k", 1)
	now = now.Add(20 * time.Second)
	if got := l.RetryAfter("k"); got != 40*time.Second {
		t.Fatalf("RetryAfter=%v want 40s", got)
	}
}

func TestSweep_DropsExpiredWindows(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewWithClock(func() time.Time { return now })

	l.CheckAndIncrement("old", 5)
	now = now.Add(Window)
	l.CheckAndIncrement("fresh", 5)

	if removed := l.Sweep(); removed != 1 {
		t.Fatalf("Sweep removed %d want 1", removed)
	}
	if got := l.Remaining("fresh", 5); got != 4 {
		t.Fatalf("fresh window should survive sweep, Remaining=%d", got)
	}
}
