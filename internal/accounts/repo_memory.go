package accounts

import (
	"context"
	"sync"
	"time"

	"skills-backend/internal/quota"
)

// MemoryRepo is an in-process Repo used in dev mode and tests. A single
// mutex serializes all writes, which gives every operation row-lock semantics.
type MemoryRepo struct {
	mu       sync.RWMutex
	nextID   int64
	accounts map[int64]Account
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{accounts: make(map[int64]Account)}
}

func (r *MemoryRepo) Create(ctx context.Context, acct Account) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if existing.Email == acct.Email {
			return Account{}, ErrEmailTaken
		}
	}
	r.nextID++
	now := time.Now().UTC()
	acct.ID = r.nextID
	acct.CreatedAt = now
	acct.UpdatedAt = now
	r.accounts[acct.ID] = acct
	return acct, nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id int64) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	acct, ok := r.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acct, nil
}

func (r *MemoryRepo) GetByEmail(ctx context.Context, email string) (Account, error) {
	return r.find(ctx, func(a Account) bool { return a.Email == email })
}

func (r *MemoryRepo) GetByVerificationToken(ctx context.Context, token string) (Account, error) {
	if token == "" {
		return Account{}, ErrNotFound
	}
	return r.find(ctx, func(a Account) bool { return a.VerificationToken == token })
}

func (r *MemoryRepo) GetByPasswordResetToken(ctx context.Context, token string) (Account, error) {
	if token == "" {
		return Account{}, ErrNotFound
	}
	return r.find(ctx, func(a Account) bool { return a.PasswordResetToken == token })
}

func (r *MemoryRepo) SetVerificationToken(ctx context.Context, id int64, token string) error {
	_, err := r.update(ctx, id, func(a *Account) { a.VerificationToken = token })
	return err
}

func (r *MemoryRepo) MarkVerified(ctx context.Context, id int64) (Account, error) {
	return r.update(ctx, id, func(a *Account) {
		a.IsVerified = true
		a.VerificationToken = ""
	})
}

func (r *MemoryRepo) SetPasswordResetToken(ctx context.Context, id int64, token string) error {
	_, err := r.update(ctx, id, func(a *Account) { a.PasswordResetToken = token })
	return err
}

func (r *MemoryRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	_, err := r.update(ctx, id, func(a *Account) {
		a.PasswordHash = passwordHash
		a.PasswordResetToken = ""
	})
	return err
}

func (r *MemoryRepo) RolloverIfDue(ctx context.Context, id int64, now time.Time, window time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.accounts[id]
	if !ok {
		return false, ErrNotFound
	}
	if !quota.NeedsRollover(acct.Usage(), now, window) {
		return false, nil
	}
	stamp := now.UTC()
	acct.APICallsThisMonth = 0
	acct.LastAPIReset = &stamp
	acct.UpdatedAt = stamp
	r.accounts[id] = acct
	return true, nil
}

func (r *MemoryRepo) TryConsume(ctx context.Context, id int64, limit int) (Account, bool, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.accounts[id]
	if !ok {
		return Account{}, false, ErrNotFound
	}
	if !acct.IsVerified || !acct.SubscriptionStatus.IsActive() || !quota.IsWithinLimit(acct.Usage(), limit) {
		return acct, false, nil
	}
	acct.APICallsThisMonth++
	acct.UpdatedAt = time.Now().UTC()
	r.accounts[id] = acct
	return acct, true, nil
}

func (r *MemoryRepo) Activate(ctx context.Context, id int64, now time.Time, customerID string) (Activation, error) {
	if err := ctx.Err(); err != nil {
		return Activation{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.accounts[id]
	if !ok {
		return Activation{}, ErrNotFound
	}
	started := !acct.SubscriptionStatus.IsActive()
	if started {
		stamp := now.UTC()
		acct.SubscriptionStartDate = &stamp
		acct.LastAPIReset = &stamp
		acct.APICallsThisMonth = 0
	}
	acct.SubscriptionStatus = StatusActive
	if customerID != "" {
		acct.BillingCustomerID = customerID
	}
	acct.UpdatedAt = time.Now().UTC()
	r.accounts[id] = acct
	return Activation{Account: acct, Started: started}, nil
}

func (r *MemoryRepo) SetStatus(ctx context.Context, id int64, status SubscriptionStatus, customerID string) (Account, error) {
	return r.update(ctx, id, func(a *Account) {
		a.SubscriptionStatus = status
		if customerID != "" {
			a.BillingCustomerID = customerID
		}
	})
}

func (r *MemoryRepo) ResetAllCounters(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp := now.UTC()
	var n int64
	for id, acct := range r.accounts {
		acct.APICallsThisMonth = 0
		if acct.SubscriptionStartDate != nil {
			acct.LastAPIReset = &stamp
		}
		acct.UpdatedAt = stamp
		r.accounts[id] = acct
		n++
	}
	return n, nil
}

func (r *MemoryRepo) find(ctx context.Context, match func(Account) bool) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, acct := range r.accounts {
		if match(acct) {
			return acct, nil
		}
	}
	return Account{}, ErrNotFound
}

func (r *MemoryRepo) update(ctx context.Context, id int64, mutate func(*Account)) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	mutate(&acct)
	acct.UpdatedAt = time.Now().UTC()
	r.accounts[id] = acct
	return acct, nil
}

var _ Repo = (*MemoryRepo)(nil)
