package accounts

import "strings"

// StatusKind enumerates the subscription states the service distinguishes.
type StatusKind int

const (
	KindInactive StatusKind = iota
	KindActive
	KindCanceled
	KindPastDue
	KindUnknown
)

// SubscriptionStatus is a closed variant over provider statuses. Statuses
// the service does not model are kept verbatim in Raw under KindUnknown.
type SubscriptionStatus struct {
	Kind StatusKind
	Raw  string
}

var (
	StatusInactive = SubscriptionStatus{Kind: KindInactive}
	StatusActive   = SubscriptionStatus{Kind: KindActive}
	StatusCanceled = SubscriptionStatus{Kind: KindCanceled}
	StatusPastDue  = SubscriptionStatus{Kind: KindPastDue}
)

// ParseSubscriptionStatus maps a stored or provider-reported value onto the variant.
func ParseSubscriptionStatus(raw string) SubscriptionStatus {
	clean := strings.ToLower(strings.TrimSpace(raw))
	switch clean {
	case "", "inactive":
		return StatusInactive
	case "active":
		return StatusActive
	case "canceled", "cancelled":
		return StatusCanceled
	case "past_due":
		return StatusPastDue
	default:
		return SubscriptionStatus{Kind: KindUnknown, Raw: clean}
	}
}

// String returns the persisted form.
func (s SubscriptionStatus) String() string {
	switch s.Kind {
	case KindActive:
		return "active"
	case KindCanceled:
		return "canceled"
	case KindPastDue:
		return "past_due"
	case KindUnknown:
		if s.Raw != "" {
			return s.Raw
		}
		return "unknown"
	default:
		return "inactive"
	}
}

// IsActive reports whether the status admits usage.
func (s SubscriptionStatus) IsActive() bool {
	return s.Kind == KindActive
}

// MarshalText implements encoding.TextMarshaler.
func (s SubscriptionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SubscriptionStatus) UnmarshalText(b []byte) error {
	*s = ParseSubscriptionStatus(string(b))
	return nil
}
