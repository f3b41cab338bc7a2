package gate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skills-backend/internal/accounts"
	"skills-backend/internal/quota"
)

type fixture struct {
	repo *accounts.MemoryRepo
	gate *Gate
	now  time.Time
}

func newFixture(t *testing.T, limit int) *fixture {
	t.Helper()
	f := &fixture{
		repo: accounts.NewMemoryRepo(),
		now:  time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	f.gate = New(f.repo, quota.NewPolicy(limit, 30*24*time.Hour))
	f.gate.Now = func() time.Time { return f.now }
	return f
}

func (f *fixture) account(t *testing.T, verified, active bool) accounts.Account {
	t.Helper()
	ctx := context.Background()
	acct, err := f.repo.Create(ctx, accounts.Account{Email: t.Name() + "@example.com", IsVerified: verified})
	require.NoError(t, err)
	if active {
		res, err := f.repo.Activate(ctx, acct.ID, f.now, "")
		require.NoError(t, err)
		acct = res.Account
	}
	return acct
}

func TestAuthorizeOrdersVerificationBeforeSubscription(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	unverified := f.account(t, false, false)
	_, err := f.gate.Authorize(ctx, unverified.ID)
	assert.ErrorIs(t, err, ErrNotVerified)

	inactive, err := f.repo.Create(ctx, accounts.Account{Email: "inactive@example.com", IsVerified: true})
	require.NoError(t, err)
	_, err = f.gate.Authorize(ctx, inactive.ID)
	assert.ErrorIs(t, err, ErrSubscriptionInactive)
}

func TestAdmitConsumesOneCall(t *testing.T) {
	f := newFixture(t, 10)
	acct := f.account(t, true, true)

	admitted, err := f.gate.Admit(context.Background(), acct.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, admitted.APICallsThisMonth)
}

func TestReserveAtLimitReturnsQuotaError(t *testing.T) {
	f := newFixture(t, 2)
	acct := f.account(t, true, true)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.gate.Admit(ctx, acct.ID)
		require.NoError(t, err)
	}

	_, err := f.gate.Admit(ctx, acct.ID)
	require.ErrorIs(t, err, ErrQuotaExceeded)
	var qe *QuotaExceededError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, 2, qe.Limit)
	assert.Equal(t, 2, qe.Used)
	assert.True(t, qe.ResetsAt.Equal(f.now.Add(30*24*time.Hour)))
	assert.Equal(t, 30*24*time.Hour, qe.RetryAfter(f.now))

	stored, err := f.repo.GetByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.APICallsThisMonth)
}

func TestReserveRollsOverElapsedWindow(t *testing.T) {
	f := newFixture(t, 1)
	acct := f.account(t, true, true)
	ctx := context.Background()

	_, err := f.gate.Admit(ctx, acct.ID)
	require.NoError(t, err)
	_, err = f.gate.Admit(ctx, acct.ID)
	require.ErrorIs(t, err, ErrQuotaExceeded)

	f.now = f.now.Add(31 * 24 * time.Hour)
	admitted, err := f.gate.Admit(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, admitted.APICallsThisMonth)
	require.NotNil(t, admitted.LastAPIReset)
	assert.True(t, admitted.LastAPIReset.Equal(f.now))
}

func TestReserveReclassifiesCancellationRace(t *testing.T) {
	f := newFixture(t, 10)
	acct := f.account(t, true, true)
	ctx := context.Background()

	_, err := f.gate.Authorize(ctx, acct.ID)
	require.NoError(t, err)
	_, err = f.repo.SetStatus(ctx, acct.ID, accounts.StatusCanceled, "")
	require.NoError(t, err)

	_, err = f.gate.Reserve(ctx, acct.ID)
	assert.ErrorIs(t, err, ErrSubscriptionInactive)
	stored, err := f.repo.GetByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.APICallsThisMonth)
}

func TestConcurrentAdmitsNeverExceedLimit(t *testing.T) {
	const limit = 1000
	f := newFixture(t, limit)
	acct := f.account(t, true, true)
	ctx := context.Background()

	for i := 0; i < limit-5; i++ {
		_, _, err := f.repo.TryConsume(ctx, acct.ID, limit)
		require.NoError(t, err)
	}

	var admitted, refused atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.gate.Admit(ctx, acct.ID)
			switch {
			case err == nil:
				admitted.Add(1)
			case errors.Is(err, ErrQuotaExceeded):
				refused.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(5), admitted.Load())
	assert.Equal(t, int64(45), refused.Load())
	stored, err := f.repo.GetByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, limit, stored.APICallsThisMonth)
}

func TestOutcomeNames(t *testing.T) {
	assert.Equal(t, "admitted", Outcome(nil))
	assert.Equal(t, "not_verified", Outcome(ErrNotVerified))
	assert.Equal(t, "quota_exceeded", Outcome(&QuotaExceededError{}))
	assert.Equal(t, "error", Outcome(errors.New("boom")))
}
