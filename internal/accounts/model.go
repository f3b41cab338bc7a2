package accounts

import (
	"time"

	"skills-backend/internal/quota"
)

// Account is an end user with verification, subscription and quota state.
type Account struct {
	ID                    int64
	Email                 string
	PasswordHash          string
	IsVerified            bool
	VerificationToken     string
	PasswordResetToken    string
	SubscriptionStatus    SubscriptionStatus
	SubscriptionStartDate *time.Time
	APICallsThisMonth     int
	LastAPIReset          *time.Time
	// FreeTrialCalls is stored but no gating rule consumes it yet.
	FreeTrialCalls    int
	BillingCustomerID string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Usage returns the quota snapshot for this account.
func (a Account) Usage() quota.Snapshot {
	return quota.Snapshot{
		CallsThisMonth:        a.APICallsThisMonth,
		LastReset:             a.LastAPIReset,
		SubscriptionStartDate: a.SubscriptionStartDate,
	}
}

// Activation reports what an activation write changed.
type Activation struct {
	Account Account
	// Started is true when the account moved into active from another status.
	Started bool
}
