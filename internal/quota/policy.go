// Package quota holds the pure decision rules for monthly API-call allowances.
package quota

import "time"

const (
	// DefaultMonthlyLimit is the number of calls an active account may make per window.
	DefaultMonthlyLimit = 1000
	// DefaultWindow is the length of a billing window.
	DefaultWindow = 30 * 24 * time.Hour
)

// Snapshot is the slice of account state the policy reads.
type Snapshot struct {
	CallsThisMonth        int
	LastReset             *time.Time
	SubscriptionStartDate *time.Time
}

// Policy bundles the configured limit and window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// NewPolicy applies defaults to non-positive values.
func NewPolicy(limit int, window time.Duration) Policy {
	if limit <= 0 {
		limit = DefaultMonthlyLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return Policy{Limit: limit, Window: window}
}

// IsWithinLimit reports whether one more call fits under limit.
func IsWithinLimit(s Snapshot, limit int) bool {
	return s.CallsThisMonth < limit
}

// NeedsRollover reports whether the counter is due for a reset at now.
// Accounts that never subscribed, or whose first reset was never stamped,
// have no cycle to roll over.
func NeedsRollover(s Snapshot, now time.Time, window time.Duration) bool {
	if s.SubscriptionStartDate == nil || s.LastReset == nil {
		return false
	}
	return now.Sub(*s.LastReset) > window
}

// ResetsAt returns when the current window ends, or the zero time if no
// window has started.
func ResetsAt(s Snapshot, window time.Duration) time.Time {
	if s.LastReset == nil {
		return time.Time{}
	}
	return s.LastReset.Add(window)
}

// IsWithinLimit applies the package rule with the policy limit.
func (p Policy) IsWithinLimit(s Snapshot) bool {
	return IsWithinLimit(s, p.Limit)
}

// NeedsRollover applies the package rule with the policy window.
func (p Policy) NeedsRollover(s Snapshot, now time.Time) bool {
	return NeedsRollover(s, now, p.Window)
}

// ResetsAt applies the package rule with the policy window.
func (p Policy) ResetsAt(s Snapshot) time.Time {
	return ResetsAt(s, p.Window)
}
