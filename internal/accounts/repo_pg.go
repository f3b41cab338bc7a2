package accounts

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const accountColumns = `id, email, password_hash, is_verified, verification_token, password_reset_token,
  subscription_status, subscription_start_date, api_calls_this_month, last_api_reset,
  free_trial_calls, billing_customer_id, created_at, updated_at`

// PGRepo is the Postgres-backed Repo.
type PGRepo struct {
	DB *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PGRepo) Create(ctx context.Context, acct Account) (Account, error) {
	query := `
INSERT INTO accounts (email, password_hash, is_verified, verification_token, subscription_status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, now(), now())
RETURNING ` + accountColumns
	created, err := scanAccount(r.DB.QueryRowContext(ctx, query,
		acct.Email,
		acct.PasswordHash,
		acct.IsVerified,
		nullableString(acct.VerificationToken),
		acct.SubscriptionStatus.String(),
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Account{}, ErrEmailTaken
		}
		return Account{}, err
	}
	return created, nil
}

func (r *PGRepo) GetByID(ctx context.Context, id int64) (Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

func (r *PGRepo) GetByEmail(ctx context.Context, email string) (Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
}

func (r *PGRepo) GetByVerificationToken(ctx context.Context, token string) (Account, error) {
	if token == "" {
		return Account{}, ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE verification_token = $1`, token)
}

func (r *PGRepo) GetByPasswordResetToken(ctx context.Context, token string) (Account, error) {
	if token == "" {
		return Account{}, ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE password_reset_token = $1`, token)
}

func (r *PGRepo) SetVerificationToken(ctx context.Context, id int64, token string) error {
	return r.execOne(ctx, `UPDATE accounts SET verification_token = $2, updated_at = now() WHERE id = $1`, id, nullableString(token))
}

func (r *PGRepo) MarkVerified(ctx context.Context, id int64) (Account, error) {
	return r.getOne(ctx, `
UPDATE accounts SET is_verified = TRUE, verification_token = NULL, updated_at = now()
WHERE id = $1
RETURNING `+accountColumns, id)
}

func (r *PGRepo) SetPasswordResetToken(ctx context.Context, id int64, token string) error {
	return r.execOne(ctx, `UPDATE accounts SET password_reset_token = $2, updated_at = now() WHERE id = $1`, id, nullableString(token))
}

func (r *PGRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return r.execOne(ctx, `
UPDATE accounts SET password_hash = $2, password_reset_token = NULL, updated_at = now()
WHERE id = $1`, id, passwordHash)
}

// RolloverIfDue mirrors quota.NeedsRollover in the WHERE clause so the check
// and the reset happen under the same row lock.
func (r *PGRepo) RolloverIfDue(ctx context.Context, id int64, now time.Time, window time.Duration) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
UPDATE accounts
SET api_calls_this_month = 0, last_api_reset = $2, updated_at = now()
WHERE id = $1
  AND subscription_start_date IS NOT NULL
  AND last_api_reset IS NOT NULL
  AND last_api_reset < $3`, id, now.UTC(), now.UTC().Add(-window))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// TryConsume is the compare-and-increment: the row is only touched when the
// limit still holds at write time.
func (r *PGRepo) TryConsume(ctx context.Context, id int64, limit int) (Account, bool, error) {
	acct, err := r.getOne(ctx, `
UPDATE accounts
SET api_calls_this_month = api_calls_this_month + 1, updated_at = now()
WHERE id = $1
  AND is_verified
  AND subscription_status = 'active'
  AND api_calls_this_month < $2
RETURNING `+accountColumns, id, limit)
	if err == nil {
		return acct, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Account{}, false, err
	}
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return Account{}, false, err
	}
	return current, false, nil
}

func (r *PGRepo) Activate(ctx context.Context, id int64, now time.Time, customerID string) (result Activation, err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return Activation{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT subscription_status FROM accounts WHERE id = $1 FOR UPDATE`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrNotFound
		}
		return Activation{}, err
	}

	started := !ParseSubscriptionStatus(status).IsActive()
	var acct Account
	if started {
		acct, err = scanAccount(tx.QueryRowContext(ctx, `
UPDATE accounts
SET subscription_status = 'active',
    subscription_start_date = $2,
    last_api_reset = $2,
    api_calls_this_month = 0,
    billing_customer_id = COALESCE($3, billing_customer_id),
    updated_at = now()
WHERE id = $1
RETURNING `+accountColumns, id, now.UTC(), nullableString(customerID)))
	} else {
		acct, err = scanAccount(tx.QueryRowContext(ctx, `
UPDATE accounts
SET subscription_status = 'active',
    billing_customer_id = COALESCE($2, billing_customer_id),
    updated_at = now()
WHERE id = $1
RETURNING `+accountColumns, id, nullableString(customerID)))
	}
	if err != nil {
		return Activation{}, err
	}
	if err = tx.Commit(); err != nil {
		return Activation{}, err
	}
	return Activation{Account: acct, Started: started}, nil
}

func (r *PGRepo) SetStatus(ctx context.Context, id int64, status SubscriptionStatus, customerID string) (Account, error) {
	return r.getOne(ctx, `
UPDATE accounts
SET subscription_status = $2,
    billing_customer_id = COALESCE($3, billing_customer_id),
    updated_at = now()
WHERE id = $1
RETURNING `+accountColumns, id, status.String(), nullableString(customerID))
}

func (r *PGRepo) ResetAllCounters(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
UPDATE accounts
SET api_calls_this_month = 0,
    last_api_reset = CASE WHEN subscription_start_date IS NOT NULL THEN $1 ELSE last_api_reset END,
    updated_at = now()`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PGRepo) getOne(ctx context.Context, query string, args ...any) (Account, error) {
	acct, err := scanAccount(r.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	return acct, nil
}

func (r *PGRepo) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAccount(row rowScanner) (Account, error) {
	var (
		acct        Account
		verifyToken sql.NullString
		resetToken  sql.NullString
		status      string
		startDate   sql.NullTime
		lastReset   sql.NullTime
		customerID  sql.NullString
	)
	err := row.Scan(
		&acct.ID,
		&acct.Email,
		&acct.PasswordHash,
		&acct.IsVerified,
		&verifyToken,
		&resetToken,
		&status,
		&startDate,
		&acct.APICallsThisMonth,
		&lastReset,
		&acct.FreeTrialCalls,
		&customerID,
		&acct.CreatedAt,
		&acct.UpdatedAt,
	)
	if err != nil {
		return Account{}, err
	}
	acct.VerificationToken = verifyToken.String
	acct.PasswordResetToken = resetToken.String
	acct.SubscriptionStatus = ParseSubscriptionStatus(status)
	acct.BillingCustomerID = customerID.String
	if startDate.Valid {
		t := startDate.Time.UTC()
		acct.SubscriptionStartDate = &t
	}
	if lastReset.Valid {
		t := lastReset.Time.UTC()
		acct.LastAPIReset = &t
	}
	return acct, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

var _ Repo = (*PGRepo)(nil)
