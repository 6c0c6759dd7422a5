package memory

import (
	"context"
	"errors"
	"github.com/google/uuid"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
	apperrors "github.com/mufasadev/coin-settlement/internal/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const userID = "f60ae2e1-ee72-4a6a-bef2-7cde5c83782f"

func newDeposit(provider models.Provider) *models.Transaction {
	return &models.Transaction{
		ID:            uuid.New().String(),
		CorrelationID: uuid.New().String(),
		UserID:        userID,
		Type:          models.TransactionTypeDeposit,
		Amount:        decimal.NewFromInt(20),
		Currency:      "USD",
		Status:        models.StatusPending,
		Provider:      provider,
	}
}

func TestCreateRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	repo := NewStore("COIN").Transactions()

	tx := newDeposit(models.ProviderPayGate)
	require.NoError(t, repo.Create(ctx, tx))

	err := repo.Create(ctx, tx)
	assert.True(t, errors.Is(err, apperrors.NewTransactionDuplicateError()))

	other := newDeposit(models.ProviderPayGate)
	other.CorrelationID = tx.CorrelationID
	err = repo.Create(ctx, other)
	assert.True(t, errors.Is(err, apperrors.NewTransactionDuplicateError()))
}

func TestApplyTransitionCheckAndSet(t *testing.T) {
	ctx := context.Background()
	store := NewStore("COIN")
	repo := store.Transactions()

	tx := newDeposit(models.ProviderPayGate)
	require.NoError(t, repo.Create(ctx, tx))

	res, err := repo.ApplyTransition(ctx, &models.Transition{TransactionID: tx.ID, To: models.StatusCompleted, WalletDelta: 2200, CoinAmount: 2200})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, models.StatusPending, res.Previous)
	assert.Equal(t, int64(2200), res.Balance)
	assert.NotNil(t, res.Transaction.SettledAt)

	res, err = repo.ApplyTransition(ctx, &models.Transition{TransactionID: tx.ID, To: models.StatusCompleted, WalletDelta: 2200})
	require.NoError(t, err)
	assert.False(t, res.Applied)

	res, err = repo.ApplyTransition(ctx, &models.Transition{TransactionID: tx.ID, To: models.StatusFailed})
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, models.StatusCompleted, res.Transaction.Status)

	wallet, err := store.Wallets().GetByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(2200), wallet.Balance)

	_, err = repo.ApplyTransition(ctx, &models.Transition{TransactionID: "missing", To: models.StatusCompleted})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSameStatusMergesMetadataOnlyWhileOpen(t *testing.T) {
	ctx := context.Background()
	repo := NewStore("COIN").Transactions()

	tx := newDeposit(models.ProviderPayGate)
	require.NoError(t, repo.Create(ctx, tx))

	res, err := repo.ApplyTransition(ctx, &models.Transition{
		TransactionID: tx.ID,
		To:            models.StatusPending,
		Metadata:      models.Metadata{PayGate: &models.PayGateMeta{Message: "waiting"}},
	})
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, "waiting", res.Transaction.Metadata.PayGate.Message)

	_, err = repo.ApplyTransition(ctx, &models.Transition{TransactionID: tx.ID, To: models.StatusFailed})
	require.NoError(t, err)

	res, err = repo.ApplyTransition(ctx, &models.Transition{
		TransactionID: tx.ID,
		To:            models.StatusFailed,
		Metadata:      models.Metadata{PayGate: &models.PayGateMeta{Message: "late"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "waiting", res.Transaction.Metadata.PayGate.Message)
}

func TestConcurrentTransitionsApplyOnce(t *testing.T) {
	ctx := context.Background()
	store := NewStore("COIN")
	repo := store.Transactions()

	tx := newDeposit(models.ProviderNowPayments)
	require.NoError(t, repo.Create(ctx, tx))

	var applied int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := repo.ApplyTransition(ctx, &models.Transition{TransactionID: tx.ID, To: models.StatusCompleted, WalletDelta: 2000})
			if assert.NoError(t, err) && res.Applied {
				atomic.AddInt32(&applied, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), applied)
	wallet, err := store.Wallets().GetByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), wallet.Balance)
}

func TestCreateWithdrawalReservesAndRefunds(t *testing.T) {
	ctx := context.Background()
	store := NewStore("COIN")
	repo := store.Transactions()
	wallets := store.Wallets()

	funding := newDeposit(models.ProviderCashBox)
	require.NoError(t, repo.Create(ctx, funding))
	funded, err := repo.ApplyTransition(ctx, &models.Transition{
		TransactionID: funding.ID,
		To:            models.StatusCompleted,
		WalletDelta:   5000,
		CoinAmount:    5000,
	})
	require.NoError(t, err)
	require.True(t, funded.Applied)

	tx := newDeposit(models.ProviderCashBox)
	tx.Type = models.TransactionTypeWithdrawal
	tx.Amount = decimal.NewFromInt(40)
	tx.CoinAmount = 4000
	req := &models.WithdrawalRequest{ID: uuid.New().String(), TransactionID: tx.ID, UserID: userID, CoinAmount: 4000, Status: models.WithdrawalStatusPending}

	balance, err := repo.CreateWithdrawal(ctx, tx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance)

	too := newDeposit(models.ProviderCashBox)
	too.Type = models.TransactionTypeWithdrawal
	too.CoinAmount = 4000
	_, err = repo.CreateWithdrawal(ctx, too, &models.WithdrawalRequest{ID: uuid.New().String(), TransactionID: too.ID})
	assert.True(t, errors.Is(err, apperrors.NewInsufficientFundsError()))
	_, err = repo.GetByID(ctx, too.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	res, err := repo.ApplyTransition(ctx, &models.Transition{
		TransactionID:    tx.ID,
		To:               models.StatusExpired,
		WalletDelta:      4000,
		WithdrawalStatus: models.WithdrawalStatusExpired,
		Reason:           "deadline passed",
	})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, int64(5000), res.Balance)

	w, err := repo.GetWithdrawalByTransactionID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusExpired, w.Status)
	assert.Equal(t, "deadline passed", w.Reason)

	wallet, err := wallets.GetByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), wallet.Balance)
}

func TestListStalePending(t *testing.T) {
	ctx := context.Background()
	repo := NewStore("COIN").Transactions()
	now := time.Now().UTC()

	old := newDeposit(models.ProviderPayGate)
	old.CreatedAt = now.Add(-20 * time.Minute)
	older := newDeposit(models.ProviderPayGate)
	older.CreatedAt = now.Add(-40 * time.Minute)
	fresh := newDeposit(models.ProviderPayGate)
	fresh.CreatedAt = now.Add(-5 * time.Minute)
	done := newDeposit(models.ProviderPayGate)
	done.CreatedAt = now.Add(-time.Hour)
	done.Status = models.StatusCompleted

	for _, tx := range []*models.Transaction{old, older, fresh, done} {
		require.NoError(t, repo.Create(ctx, tx))
	}

	stale, err := repo.ListStalePending(ctx, now.Add(-15*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 2)
	assert.Equal(t, older.ID, stale[0].ID)
	assert.Equal(t, old.ID, stale[1].ID)

	stale, err = repo.ListStalePending(ctx, now.Add(-15*time.Minute), 1)
	require.NoError(t, err)
	assert.Len(t, stale, 1)
}

func TestFindByCorrelation(t *testing.T) {
	ctx := context.Background()
	repo := NewStore("COIN").Transactions()

	tx := newDeposit(models.ProviderStripe)
	tx.GatewayInvoiceID = "cs_1"
	require.NoError(t, repo.Create(ctx, tx))

	found, err := repo.FindByCorrelation(ctx, models.ProviderStripe, []string{"unknown", "cs_1"})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, tx.ID, found.ID)

	found, err = repo.FindByCorrelation(ctx, models.ProviderPayGate, []string{"cs_1"})
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestQualifyCreditsOnce(t *testing.T) {
	ctx := context.Background()
	store := NewStore("COIN")
	referrals := store.Referrals()

	require.NoError(t, referrals.Create(ctx, &models.Referral{ReferrerID: "referrer", RefereeID: userID}))

	ref, ok, err := referrals.Qualify(ctx, userID, 1000)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.ReferralStatusQualified, ref.Status)

	_, ok, err = referrals.Qualify(ctx, userID, 1000)
	require.NoError(t, err)
	assert.False(t, ok)

	wallet, err := store.Wallets().GetByUserID(ctx, "referrer")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), wallet.Balance)

	_, _, err = referrals.Qualify(ctx, "nobody", 1000)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
