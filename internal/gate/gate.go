// Package gate decides whether an authenticated account may run one paid
// operation and reserves quota for it.
package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"skills-backend/internal/accounts"
	"skills-backend/internal/quota"
	"skills-backend/internal/shared/metrics"
	"skills-backend/internal/shared/telemetry"
)

var (
	ErrNotVerified          = errors.New("email not verified")
	ErrSubscriptionInactive = errors.New("subscription inactive")
	ErrQuotaExceeded        = errors.New("monthly quota exceeded")
)

// QuotaExceededError carries the numbers behind a 429.
type QuotaExceededError struct {
	Limit    int
	Used     int
	ResetsAt time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("monthly quota exceeded: %d/%d", e.Used, e.Limit)
}

func (e *QuotaExceededError) Unwrap() error {
	return ErrQuotaExceeded
}

// RetryAfter returns the wait until the window resets, rounded up to whole
// seconds, or zero when no reset time is known.
func (e *QuotaExceededError) RetryAfter(now time.Time) time.Duration {
	if e.ResetsAt.IsZero() || !e.ResetsAt.After(now) {
		return 0
	}
	return e.ResetsAt.Sub(now).Round(time.Second)
}

type Gate struct {
	Accounts accounts.Repo
	Policy   quota.Policy
	Now      func() time.Time
}

func New(repo accounts.Repo, policy quota.Policy) *Gate {
	return &Gate{Accounts: repo, Policy: policy, Now: time.Now}
}

// Authorize runs the read-only checks: verified, then active.
func (g *Gate) Authorize(ctx context.Context, accountID int64) (accounts.Account, error) {
	acct, err := g.Accounts.GetByID(ctx, accountID)
	if err != nil {
		return accounts.Account{}, err
	}
	if err := classify(acct); err != nil {
		metrics.RecordGateDecision(outcomeFor(err))
		return acct, err
	}
	return acct, nil
}

// Reserve rolls the window over if due, then consumes one call atomically.
// A refused consume is classified from the row the store returned.
func (g *Gate) Reserve(ctx context.Context, accountID int64) (accounts.Account, error) {
	now := g.now()
	reset, err := g.Accounts.RolloverIfDue(ctx, accountID, now, g.Policy.Window)
	if err != nil {
		return accounts.Account{}, fmt.Errorf("rollover: %w", err)
	}
	if reset {
		metrics.IncQuotaRollover()
		telemetry.Info("quota.rollover", map[string]any{"account_id": accountID})
	}

	acct, ok, err := g.Accounts.TryConsume(ctx, accountID, g.Policy.Limit)
	if err != nil {
		return accounts.Account{}, fmt.Errorf("consume: %w", err)
	}
	if ok {
		metrics.RecordGateDecision("admitted")
		return acct, nil
	}

	denied := classify(acct)
	if denied == nil {
		denied = &QuotaExceededError{
			Limit:    g.Policy.Limit,
			Used:     acct.APICallsThisMonth,
			ResetsAt: g.Policy.ResetsAt(acct.Usage()),
		}
	}
	metrics.RecordGateDecision(outcomeFor(denied))
	return acct, denied
}

// Admit is Authorize followed by Reserve.
func (g *Gate) Admit(ctx context.Context, accountID int64) (accounts.Account, error) {
	if _, err := g.Authorize(ctx, accountID); err != nil {
		return accounts.Account{}, err
	}
	return g.Reserve(ctx, accountID)
}

func (g *Gate) now() time.Time {
	if g.Now == nil {
		return time.Now().UTC()
	}
	return g.Now().UTC()
}

func classify(acct accounts.Account) error {
	if !acct.IsVerified {
		return ErrNotVerified
	}
	if !acct.SubscriptionStatus.IsActive() {
		return ErrSubscriptionInactive
	}
	return nil
}

// Outcome names an error for logs and metrics.
func Outcome(err error) string {
	return outcomeFor(err)
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return "admitted"
	case errors.Is(err, ErrNotVerified):
		return "not_verified"
	case errors.Is(err, ErrSubscriptionInactive):
		return "subscription_inactive"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	default:
		return "error"
	}
}
