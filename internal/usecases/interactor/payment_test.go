package interactor

import (
	"context"
	"github.com/google/uuid"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
	apperrors "github.com/mufasadev/coin-settlement/internal/errors"
	"github.com/mufasadev/coin-settlement/internal/gateways"
	"github.com/mufasadev/coin-settlement/internal/usecases/dtos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"testing"
)

func withdrawal(amount string) *dtos.PaymentDTO {
	return &dtos.PaymentDTO{Amount: amount, Currency: "USD", Provider: "paygate", Destination: "acct-1"}
}

func TestCreateDeposit(t *testing.T) {
	ctx := context.Background()

	t.Run("records a pending deposit", func(t *testing.T) {
		f := newFixture(t)
		userID := uuid.NewString()

		resp, err := f.payment.CreateDeposit(ctx, userID, &dtos.PaymentDTO{Amount: "25.50", Currency: "usd"})
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, resp.Status)
		assert.NotEmpty(t, resp.CheckoutURL)

		tx, err := f.store.Transactions().GetByID(ctx, resp.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, models.ProviderPayGate, tx.Provider)
		assert.Equal(t, "USD", tx.Currency)
		assert.Equal(t, resp.ProviderReference, tx.GatewayInvoiceID)
		assert.Equal(t, "inv-"+tx.CorrelationID, tx.GatewayInvoiceID)
		assert.Equal(t, int64(0), f.balance(t, userID))
	})

	t.Run("validation", func(t *testing.T) {
		f := newFixture(t)
		tests := []struct {
			name string
			dto  *dtos.PaymentDTO
		}{
			{"zero amount", &dtos.PaymentDTO{Amount: "0", Currency: "USD"}},
			{"negative amount", &dtos.PaymentDTO{Amount: "-5", Currency: "USD"}},
			{"garbage amount", &dtos.PaymentDTO{Amount: "ten", Currency: "USD"}},
			{"unsupported currency", &dtos.PaymentDTO{Amount: "5", Currency: "XYZ"}},
			{"unknown provider", &dtos.PaymentDTO{Amount: "5", Currency: "USD", Provider: "acme"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.payment.CreateDeposit(ctx, uuid.NewString(), tt.dto)
				require.Error(t, err)
				assert.Equal(t, http.StatusBadRequest, apperrors.StatusCode(err))
			})
		}
		assert.Equal(t, int32(0), f.gateway.invoices)
	})

	t.Run("provider failure records nothing", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.invoiceErr = apperrors.NewGatewayError("paygate", "create", assert.AnError)
		userID := uuid.NewString()

		_, err := f.payment.CreateDeposit(ctx, userID, &dtos.PaymentDTO{Amount: "5", Currency: "USD"})
		require.Error(t, err)
		assert.Equal(t, http.StatusBadGateway, apperrors.StatusCode(err))

		list, err := f.store.Transactions().ListByUser(ctx, userID, 10)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestCreateWithdrawal(t *testing.T) {
	ctx := context.Background()

	t.Run("reserves coins rounded up", func(t *testing.T) {
		f := newFixture(t)
		userID := uuid.NewString()
		f.fund(t, userID, 5000)

		resp, err := f.payment.CreateWithdrawal(ctx, userID, withdrawal("40.005"))
		require.NoError(t, err)
		assert.Equal(t, int64(4001), resp.CoinAmount)
		require.NotNil(t, resp.Balance)
		assert.Equal(t, int64(999), *resp.Balance)
		assert.Equal(t, models.StatusPending, resp.Status)

		tx, err := f.store.Transactions().GetByID(ctx, resp.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, resp.ProviderReference, tx.GatewayInvoiceID)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		f := newFixture(t)
		userID := uuid.NewString()
		f.fund(t, userID, 100)

		_, err := f.payment.CreateWithdrawal(ctx, userID, withdrawal("40"))
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, apperrors.StatusCode(err))
		assert.Equal(t, int32(0), f.gateway.payouts)
		assert.Equal(t, int64(100), f.balance(t, userID))
	})

	t.Run("destination is required", func(t *testing.T) {
		f := newFixture(t)
		dto := withdrawal("1")
		dto.Destination = " "
		_, err := f.payment.CreateWithdrawal(ctx, uuid.NewString(), dto)
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, apperrors.StatusCode(err))
	})

	t.Run("provider failure refunds the reservation", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.withdrawalErr = apperrors.NewGatewayError("paygate", "create", assert.AnError)
		userID := uuid.NewString()
		f.fund(t, userID, 5000)

		_, err := f.payment.CreateWithdrawal(ctx, userID, withdrawal("40"))
		require.Error(t, err)
		assert.Equal(t, http.StatusBadGateway, apperrors.StatusCode(err))
		assert.Equal(t, int64(5000), f.balance(t, userID))

		list, err := f.store.Transactions().ListByUser(ctx, userID, 10)
		require.NoError(t, err)
		var withdrawals []*models.Transaction
		for _, tx := range list {
			if tx.IsWithdrawal() {
				withdrawals = append(withdrawals, tx)
			}
		}
		require.Len(t, withdrawals, 1)
		assert.Equal(t, models.StatusFailed, withdrawals[0].Status)
	})

	t.Run("unsupported payouts", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.withdrawalErr = gateways.ErrUnsupported
		userID := uuid.NewString()
		f.fund(t, userID, 5000)

		_, err := f.payment.CreateWithdrawal(ctx, userID, withdrawal("40"))
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, apperrors.StatusCode(err))
		assert.Equal(t, int64(5000), f.balance(t, userID))
	})

	t.Run("synchronous payout completion", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.payoutStatus = models.StatusCompleted
		userID := uuid.NewString()
		f.fund(t, userID, 5000)

		resp, err := f.payment.CreateWithdrawal(ctx, userID, withdrawal("10"))
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, resp.Status)
		assert.Equal(t, int64(4000), f.balance(t, userID))
	})
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	resp, err := f.payment.CreateDeposit(ctx, uuid.NewString(), &dtos.PaymentDTO{Amount: "5", Currency: "USD"})
	require.NoError(t, err)

	status, err := f.payment.Status(ctx, resp.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, status.Status)
	assert.Equal(t, models.StatusProcessing, status.ProviderStatus)
	assert.Equal(t, "confirming", status.RawStatus)

	_, err = f.payment.Status(ctx, uuid.NewString())
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, apperrors.StatusCode(err))
}
