package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/chatgate/chatgate/internal/channel"
	"github.com/chatgate/chatgate/internal/usage"
)

type Scope string

const (
	ScopeDaily   Scope = "daily"
	ScopeMonthly Scope = "monthly"
)

// ExceededError reports which ceiling a channel hit.
type ExceededError struct {
	Scope Scope
	Used  int64
	Limit int
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("%s quota exceeded: %d/%d", e.Scope, e.Used, e.Limit)
}

// Accountant enforces per-channel daily/monthly ceilings by counting
// successful usage rows. The check is read-then-act: a concurrent turn can
// push a channel slightly past its ceiling between the read and the write.
// That overshoot is an accepted trade-off; serializing every turn on a
// global quota lock would bottleneck unrelated tenants.
type Accountant struct {
	repo *usage.Repo
}

func NewAccountant(repo *usage.Repo) *Accountant {
	return &Accountant{repo: repo}
}

// Check returns an *ExceededError if the channel has used up its daily or
// monthly quota as of asOf. Nil quota fields mean unlimited.
func (a *Accountant) Check(ctx context.Context, ch *channel.Channel, asOf time.Time) error {
	if ch == nil {
		return nil
	}
	asOf = asOf.UTC()

	if ch.DailyQuota != nil {
		if err := a.checkWindow(ctx, ch.ID, startOfDay(asOf), asOf, *ch.DailyQuota, ScopeDaily); err != nil {
			return err
		}
	}
	if ch.MonthlyQuota != nil {
		if err := a.checkWindow(ctx, ch.ID, startOfMonth(asOf), asOf, *ch.MonthlyQuota, ScopeMonthly); err != nil {
			return err
		}
	}
	return nil
}

func (a *Accountant) checkWindow(ctx context.Context, channelID uint64, since, asOf time.Time, limit int, scope Scope) error {
	// Count strictly before asOf plus the instant itself.
	used, err := a.repo.CountSuccessful(ctx, channelID, since, asOf.Add(time.Nanosecond))
	if err != nil {
		return fmt.Errorf("quota check: %w", err)
	}
	if used >= int64(limit) {
		return &ExceededError{Scope: scope, Used: used, Limit: limit}
	}
	return nil
}

// Status is the non-mutating view of one quota window.
type Status struct {
	Scope Scope `json:"scope"`
	Used  int64 `json:"used"`
	Limit int   `json:"limit"`
}

// Status reports usage against each configured ceiling without enforcing
// anything. Unlimited scopes are omitted.
func (a *Accountant) Status(ctx context.Context, ch *channel.Channel, asOf time.Time) ([]Status, error) {
	if ch == nil {
		return nil, nil
	}
	asOf = asOf.UTC()

	var out []Status
	if ch.DailyQuota != nil {
		used, err := a.repo.CountSuccessful(ctx, ch.ID, startOfDay(asOf), asOf.Add(time.Nanosecond))
		if err != nil {
			return nil, fmt.Errorf("quota status: %w", err)
		}
		out = append(out, Status{Scope: ScopeDaily, Used: used, Limit: *ch.DailyQuota})
	}
	if ch.MonthlyQuota != nil {
		used, err := a.repo.CountSuccessful(ctx, ch.ID, startOfMonth(asOf), asOf.Add(time.Nanosecond))
		if err != nil {
			return nil, fmt.Errorf("quota status: %w", err)
		}
		out = append(out, Status{Scope: ScopeMonthly, Used: used, Limit: *ch.MonthlyQuota})
	}
	return out, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
