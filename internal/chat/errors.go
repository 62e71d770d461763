package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/chatgate/chatgate/internal/session"
)

// ErrAccessDenied re-exports the session store's ownership violation so
// transport code has one package to check against.
var ErrAccessDenied = session.ErrAccessDenied

// ErrAIUnavailable marks backend failures and timeouts. Distinct from the
// policy errors so callers can tell "try again" from "not allowed yet".
var ErrAIUnavailable = errors.New("ai service unavailable")

// ErrModelSwitchDenied is returned when a /model request names a model the
// channel does not offer, or the channel forbids switching.
var ErrModelSwitchDenied = errors.New("model switch denied")

// RateLimitError carries enough for a caller to back off sensibly.
type RateLimitError struct {
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %d per minute, retry in %s", e.Limit, e.RetryAfter.Round(time.Second))
}

// ValidationError marks malformed input; no side effects have happened.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s", e.Field)
}
