package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"skills-backend/internal/accounts"
)

var ErrMalformedEvent = errors.New("malformed billing event")

// Event is the subset of a Paddle notification the reconciler reads.
type Event struct {
	ID         string    `json:"event_id"`
	Type       string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       EventData `json:"data"`
}

type EventData struct {
	ID         string                     `json:"id"`
	Status     string                     `json:"status"`
	CustomerID string                     `json:"customer_id"`
	CustomData map[string]json.RawMessage `json:"custom_data"`
}

// ParseEvent decodes a verified webhook body.
func ParseEvent(body []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	ev.Type = strings.TrimSpace(ev.Type)
	if ev.Type == "" {
		return Event{}, fmt.Errorf("%w: missing event_type", ErrMalformedEvent)
	}
	return ev, nil
}

// AccountID returns the account embedded at checkout. Older checkouts used
// the user_id key.
func (e Event) AccountID() (int64, bool) {
	for _, key := range []string{"account_id", "user_id"} {
		raw, ok := e.Data.CustomData[key]
		if !ok {
			continue
		}
		if id, ok := parseID(raw); ok {
			return id, true
		}
	}
	return 0, false
}

func parseID(raw json.RawMessage) (int64, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return 0, false
		}
		s = n.String()
	}
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

type actionKind int

const (
	actionIgnore actionKind = iota
	actionActivate
	actionSetStatus
)

type action struct {
	kind   actionKind
	status accounts.SubscriptionStatus
}

// action maps an event onto the account transition it implies.
func (e Event) action() action {
	switch e.Type {
	case "transaction.completed", "transaction.paid":
		return action{kind: actionActivate}
	case "subscription.canceled":
		return action{kind: actionSetStatus, status: accounts.StatusCanceled}
	case "subscription.past_due":
		return action{kind: actionSetStatus, status: accounts.StatusPastDue}
	case "subscription.created", "subscription.updated", "subscription.activated", "subscription.resumed", "subscription.paused":
		if strings.TrimSpace(e.Data.Status) == "" {
			return action{kind: actionIgnore}
		}
		status := accounts.ParseSubscriptionStatus(e.Data.Status)
		if status.IsActive() {
			return action{kind: actionActivate}
		}
		return action{kind: actionSetStatus, status: status}
	default:
		return action{kind: actionIgnore}
	}
}
