package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"skills-backend/internal/accounts"
	"skills-backend/internal/shared/metrics"
	"skills-backend/internal/shared/telemetry"
)

// Result describes what the reconciler did with one event.
type Result string

const (
	ResultApplied   Result = "applied"
	ResultIgnored   Result = "ignored"
	ResultDuplicate Result = "duplicate"
)

// Reconciler applies provider events to account subscription state.
type Reconciler struct {
	Accounts accounts.Repo
	Ledger   Ledger
	Now      func() time.Time
}

func NewReconciler(repo accounts.Repo, ledger Ledger) *Reconciler {
	if ledger == nil {
		ledger = NewMemoryLedger(DefaultLedgerTTL)
	}
	return &Reconciler{Accounts: repo, Ledger: ledger, Now: time.Now}
}

// Apply is safe to call again with the same event. An error means the
// provider should redeliver.
func (r *Reconciler) Apply(ctx context.Context, ev Event) (Result, error) {
	result, err := r.apply(ctx, ev)
	outcome := string(result)
	if err != nil {
		outcome = "error"
	}
	metrics.RecordWebhookEvent(ev.Type, outcome)
	return result, err
}

func (r *Reconciler) apply(ctx context.Context, ev Event) (Result, error) {
	act := ev.action()
	if act.kind == actionIgnore {
		telemetry.Info("billing.event.ignored", map[string]any{"event_id": ev.ID, "event_type": ev.Type})
		return ResultIgnored, nil
	}
	accountID, ok := ev.AccountID()
	if !ok {
		telemetry.Warn("billing.event.uncorrelated", map[string]any{"event_id": ev.ID, "event_type": ev.Type})
		return ResultIgnored, nil
	}

	if ev.ID != "" {
		seen, err := r.Ledger.Seen(ctx, ev.ID)
		if err != nil {
			return "", fmt.Errorf("ledger lookup: %w", err)
		}
		if seen {
			return ResultDuplicate, nil
		}
	}

	fields := map[string]any{
		"event_id":   ev.ID,
		"event_type": ev.Type,
		"account_id": accountID,
	}
	switch act.kind {
	case actionActivate:
		res, err := r.Accounts.Activate(ctx, accountID, r.now(), ev.Data.CustomerID)
		if errors.Is(err, accounts.ErrNotFound) {
			telemetry.Warn("billing.event.unknown_account", fields)
			return ResultIgnored, nil
		}
		if err != nil {
			return "", fmt.Errorf("activate: %w", err)
		}
		fields["started"] = res.Started
		fields["status"] = res.Account.SubscriptionStatus.String()
	case actionSetStatus:
		acct, err := r.Accounts.SetStatus(ctx, accountID, act.status, ev.Data.CustomerID)
		if errors.Is(err, accounts.ErrNotFound) {
			telemetry.Warn("billing.event.unknown_account", fields)
			return ResultIgnored, nil
		}
		if err != nil {
			return "", fmt.Errorf("set status: %w", err)
		}
		fields["status"] = acct.SubscriptionStatus.String()
	}

	if ev.ID != "" {
		if err := r.Ledger.Record(ctx, ev.ID); err != nil {
			// The transition already landed and is idempotent; a redelivery
			// would only repeat it.
			telemetry.Warn("billing.ledger.record_failed", map[string]any{"event_id": ev.ID, "error": err.Error()})
		}
	}
	telemetry.Info("billing.event.applied", fields)
	return ResultApplied, nil
}

func (r *Reconciler) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now().UTC()
}
