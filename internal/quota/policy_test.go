package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptr(t time.Time) *time.Time { return &t }

func TestIsWithinLimit(t *testing.T) {
	tests := []struct {
		name  string
		calls int
		limit int
		want  bool
	}{
		{name: "empty", calls: 0, limit: 1000, want: true},
		{name: "one below", calls: 999, limit: 1000, want: true},
		{name: "at limit", calls: 1000, limit: 1000, want: false},
		{name: "over limit", calls: 1001, limit: 1000, want: false},
		{name: "zero limit", calls: 0, limit: 0, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsWithinLimit(Snapshot{CallsThisMonth: tt.calls}, tt.limit))
		})
	}
}

func TestNeedsRollover(t *testing.T) {
	now := time.Date(2026, time.March, 31, 12, 0, 0, 0, time.UTC)
	start := now.AddDate(0, -3, 0)

	tests := []struct {
		name string
		snap Snapshot
		want bool
	}{
		{name: "never subscribed", snap: Snapshot{LastReset: ptr(now.AddDate(0, 0, -40))}, want: false},
		{name: "no reset stamp", snap: Snapshot{SubscriptionStartDate: ptr(start)}, want: false},
		{name: "inside window", snap: Snapshot{SubscriptionStartDate: ptr(start), LastReset: ptr(now.AddDate(0, 0, -10))}, want: false},
		{name: "exactly window", snap: Snapshot{SubscriptionStartDate: ptr(start), LastReset: ptr(now.Add(-DefaultWindow))}, want: false},
		{name: "past window", snap: Snapshot{SubscriptionStartDate: ptr(start), LastReset: ptr(now.Add(-DefaultWindow - time.Second))}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsRollover(tt.snap, now, DefaultWindow))
		})
	}
}

func TestNewPolicyDefaults(t *testing.T) {
	p := NewPolicy(0, 0)
	assert.Equal(t, DefaultMonthlyLimit, p.Limit)
	assert.Equal(t, DefaultWindow, p.Window)

	p = NewPolicy(5, time.Hour)
	assert.Equal(t, 5, p.Limit)
	assert.Equal(t, time.Hour, p.Window)
}

func TestResetsAt(t *testing.T) {
	last := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	p := NewPolicy(10, 24*time.Hour)
	assert.True(t, p.ResetsAt(Snapshot{}).IsZero())
	assert.Equal(t, last.Add(24*time.Hour), p.ResetsAt(Snapshot{LastReset: &last}))
}
