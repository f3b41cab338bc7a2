package accounts

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("account not found")
	ErrEmailTaken   = errors.New("email already registered")
	ErrInvalidInput = errors.New("invalid input")
)

// Repo persists accounts. Every quota and subscription write is a single
// atomic operation against one row; callers never read-then-write counters.
type Repo interface {
	Create(ctx context.Context, acct Account) (Account, error)
	GetByID(ctx context.Context, id int64) (Account, error)
	GetByEmail(ctx context.Context, email string) (Account, error)
	GetByVerificationToken(ctx context.Context, token string) (Account, error)
	GetByPasswordResetToken(ctx context.Context, token string) (Account, error)
	SetVerificationToken(ctx context.Context, id int64, token string) error
	MarkVerified(ctx context.Context, id int64) (Account, error)
	SetPasswordResetToken(ctx context.Context, id int64, token string) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error

	// RolloverIfDue zeroes the counter and stamps last_api_reset=now when the
	// quota policy says the window elapsed. It reports whether it reset.
	RolloverIfDue(ctx context.Context, id int64, now time.Time, window time.Duration) (bool, error)
	// TryConsume increments the counter by one iff the account is verified,
	// active and below limit. ok=false leaves the row untouched.
	TryConsume(ctx context.Context, id int64, limit int) (acct Account, ok bool, err error)
	// Activate moves the account into active, restarting the cycle only on
	// a transition from a non-active status.
	Activate(ctx context.Context, id int64, now time.Time, customerID string) (Activation, error)
	// SetStatus records a non-active provider status; counters are untouched.
	SetStatus(ctx context.Context, id int64, status SubscriptionStatus, customerID string) (Account, error)
	// ResetAllCounters zeroes every account's counter in one statement.
	ResetAllCounters(ctx context.Context, now time.Time) (int64, error)
}
