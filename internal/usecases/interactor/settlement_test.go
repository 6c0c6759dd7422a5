package interactor

import (
	"context"
	"github.com/google/uuid"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSettleDeposit(t *testing.T) {
	ctx := context.Background()

	t.Run("base tier credit and bonus", func(t *testing.T) {
		f := newFixture(t)
		userID := uuid.NewString()
		tx := f.pendingDeposit(t, userID, "inv-50", 50, time.Time{})

		res, err := f.settlement.Settle(ctx, &SettleRequest{TransactionID: tx.ID, To: models.StatusCompleted})
		require.NoError(t, err)
		assert.True(t, res.Applied)
		assert.Equal(t, int64(5000), res.Credit)
		assert.Equal(t, int64(500), res.Bonus)
		assert.Equal(t, int64(5500), f.balance(t, userID))
		assert.Equal(t, int64(5500), res.Transaction.CoinAmount)
		assert.Equal(t, []models.EventKind{models.EventDepositCompleted}, f.notifier.kinds())
	})

	t.Run("gold tier doubles the bonus", func(t *testing.T) {
		f := newFixture(t)
		userID := uuid.NewString()
		f.fund(t, userID, 0)
		require.NoError(t, f.store.Wallets().SetVIPTier(ctx, userID, "gold"))
		tx := f.pendingDeposit(t, userID, "inv-50", 50, time.Time{})

		res, err := f.settlement.Settle(ctx, &SettleRequest{TransactionID: tx.ID, To: models.StatusCompleted})
		require.NoError(t, err)
		assert.Equal(t, int64(1000), res.Bonus)
		assert.Equal(t, int64(6000), f.balance(t, userID))

		// 50 completed is below the silver threshold
		w, err := f.store.Wallets().GetByUserID(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, "bronze", w.VIPTier)
	})

	t.Run("partial then completed credits once", func(t *testing.T) {
		f := newFixture(t)
		userID := uuid.NewString()
		tx := f.pendingDeposit(t, userID, "inv-10", 10, time.Time{})

		for _, to := range []models.Status{models.StatusPartial, models.StatusProcessing, models.StatusCompleted, models.StatusCompleted} {
			_, err := f.settlement.Settle(ctx, &SettleRequest{TransactionID: tx.ID, To: to})
			require.NoError(t, err)
		}
		assert.Equal(t, int64(1100), f.balance(t, userID))
	})

	t.Run("completed is never undone by a late failure", func(t *testing.T) {
		f := newFixture(t)
		userID := uuid.NewString()
		tx := f.pendingDeposit(t, userID, "inv-10", 10, time.Time{})

		_, err := f.settlement.Settle(ctx, &SettleRequest{TransactionID: tx.ID, To: models.StatusCompleted})
		require.NoError(t, err)

		for _, to := range []models.Status{models.StatusFailed, models.StatusPending, models.StatusExpired, models.StatusProcessing} {
			res, err := f.settlement.Settle(ctx, &SettleRequest{TransactionID: tx.ID, To: to})
			require.NoError(t, err)
			assert.False(t, res.Applied, to)
			assert.Equal(t, models.StatusCompleted, res.Transaction.Status)
		}
		assert.Equal(t, int64(1100), f.balance(t, userID))
	})

	t.Run("returned debits the credited coins", func(t *testing.T) {
		f := newFixture(t)
		userID := uuid.NewString()
		tx := f.pendingDeposit(t, userID, "inv-10", 10, time.Time{})

		_, err := f.settlement.Settle(ctx, &SettleRequest{TransactionID: tx.ID, To: models.StatusCompleted})
		require.NoError(t, err)
		res, err := f.settlement.Settle(ctx, &SettleRequest{TransactionID: tx.ID, To: models.StatusReturned})
		require.NoError(t, err)
		assert.True(t, res.Applied)
		assert.Equal(t, int64(0), f.balance(t, userID))
		assert.Contains(t, f.notifier.kinds(), models.EventDepositReturned)
	})

	t.Run("failed deposit moves no coins", func(t *testing.T) {
		f := newFixture(t)
		userID := uuid.NewString()
		tx := f.pendingDeposit(t, userID, "inv-10", 10, time.Time{})

		res, err := f.settlement.Settle(ctx, &SettleRequest{TransactionID: tx.ID, To: models.StatusFailed})
		require.NoError(t, err)
		assert.True(t, res.Applied)
		assert.Equal(t, int64(0), res.Credit)
		assert.Equal(t, []models.EventKind{models.EventDepositFailed}, f.notifier.kinds())
	})

	t.Run("unknown transaction", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.settlement.Settle(ctx, &SettleRequest{TransactionID: uuid.NewString(), To: models.StatusCompleted})
		require.Error(t, err)
	})
}

func TestSettleConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	refereeID, referrerID := uuid.NewString(), uuid.NewString()
	_, err := f.referral.Register(ctx, refereeID, referrerID)
	require.NoError(t, err)
	tx := f.pendingDeposit(t, refereeID, "inv-20", 20, time.Time{})

	const deliveries = 20
	var applied int32
	var wg sync.WaitGroup
	for n := 0; n < deliveries; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.settlement.Settle(ctx, &SettleRequest{TransactionID: tx.ID, To: models.StatusCompleted})
			if assert.NoError(t, err) && res.Applied {
				atomic.AddInt32(&applied, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), applied)
	assert.Equal(t, int64(2200), f.balance(t, refereeID))
	assert.Equal(t, int64(1000), f.balance(t, referrerID))

	kinds := f.notifier.kinds()
	assert.ElementsMatch(t, []models.EventKind{models.EventReferralQualified, models.EventDepositCompleted}, kinds)
}

func TestCumulativeDepositsInReferenceUnits(t *testing.T) {
	ctx := context.Background()

	settle := func(t *testing.T, f *fixture, userID, amount, currency string) *SettlementResult {
		tx := f.pendingDepositIn(t, userID, uuid.NewString(), decimal.RequireFromString(amount), currency, time.Time{})
		res, err := f.settlement.Settle(ctx, &SettleRequest{TransactionID: tx.ID, To: models.StatusCompleted})
		require.NoError(t, err)
		require.True(t, res.Applied)
		return res
	}

	t.Run("yen deposit stays below tier and referral thresholds", func(t *testing.T) {
		f := newFixture(t)
		refereeID, referrerID := uuid.NewString(), uuid.NewString()
		_, err := f.referral.Register(ctx, refereeID, referrerID)
		require.NoError(t, err)

		// 1000 JPY is 6.70 units
		res := settle(t, f, refereeID, "1000", "JPY")
		assert.Equal(t, int64(670), res.Credit)
		assert.Equal(t, int64(67), res.Bonus)

		w, err := f.store.Wallets().GetByUserID(ctx, refereeID)
		require.NoError(t, err)
		assert.Equal(t, "bronze", w.VIPTier)

		ref, err := f.store.Referrals().GetByReferee(ctx, refereeID)
		require.NoError(t, err)
		assert.Equal(t, models.ReferralStatusPending, ref.Status)
		assert.Equal(t, []models.EventKind{models.EventDepositCompleted}, f.notifier.kinds())
	})

	t.Run("euro deposit reaches the referral threshold", func(t *testing.T) {
		f := newFixture(t)
		refereeID, referrerID := uuid.NewString(), uuid.NewString()
		_, err := f.referral.Register(ctx, refereeID, referrerID)
		require.NoError(t, err)

		// 19 EUR is 20.52 units
		res := settle(t, f, refereeID, "19", "EUR")
		assert.Equal(t, int64(2052), res.Credit)
		assert.Equal(t, int64(1000), f.balance(t, referrerID))

		ref, err := f.store.Referrals().GetByReferee(ctx, refereeID)
		require.NoError(t, err)
		assert.Equal(t, models.ReferralStatusQualified, ref.Status)
	})

	t.Run("mixed currencies add up to silver", func(t *testing.T) {
		f := newFixture(t)
		userID := uuid.NewString()

		settle(t, f, userID, "90", "EUR")
		settle(t, f, userID, "1000", "JPY")

		// 97.20 + 6.70 units
		w, err := f.store.Wallets().GetByUserID(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, "silver", w.VIPTier)

		tier, err := f.vip.Recompute(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, "silver", tier.Name)
	})
}

func TestSettleWithdrawal(t *testing.T) {
	ctx := context.Background()

	t.Run("completed keeps the reservation", func(t *testing.T) {
		f := newFixture(t)
		userID := uuid.NewString()
		f.fund(t, userID, 5000)

		resp, err := f.payment.CreateWithdrawal(ctx, userID, withdrawal("40"))
		require.NoError(t, err)
		assert.Equal(t, int64(1000), f.balance(t, userID))

		res, err := f.settlement.Settle(ctx, &SettleRequest{TransactionID: resp.TransactionID, To: models.StatusCompleted})
		require.NoError(t, err)
		assert.True(t, res.Applied)
		assert.Equal(t, int64(1000), f.balance(t, userID))

		req, err := f.store.Transactions().GetWithdrawalByTransactionID(ctx, resp.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, models.WithdrawalStatusProcessed, req.Status)
		assert.Equal(t, []models.EventKind{models.EventWithdrawalProcessed}, f.notifier.kinds())
	})

	t.Run("failed refunds the reservation once", func(t *testing.T) {
		f := newFixture(t)
		userID := uuid.NewString()
		f.fund(t, userID, 5000)

		resp, err := f.payment.CreateWithdrawal(ctx, userID, withdrawal("40"))
		require.NoError(t, err)

		for n := 0; n < 3; n++ {
			_, err = f.settlement.Settle(ctx, &SettleRequest{TransactionID: resp.TransactionID, To: models.StatusFailed})
			require.NoError(t, err)
		}
		assert.Equal(t, int64(5000), f.balance(t, userID))
		assert.Equal(t, []models.EventKind{models.EventWithdrawalRefunded}, f.notifier.kinds())
	})
}

func TestCollaboratorFailureDoesNotUndoSettlement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.notifier.err = assert.AnError

	userID := uuid.NewString()
	tx := f.pendingDeposit(t, userID, "inv-1", 1, time.Time{})

	res, err := f.settlement.Settle(ctx, &SettleRequest{TransactionID: tx.ID, To: models.StatusCompleted})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, int64(110), f.balance(t, userID))
}
