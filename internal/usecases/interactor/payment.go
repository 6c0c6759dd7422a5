package interactor

import (
	"context"
	"errors"
	"github.com/mufasadev/coin-settlement/internal/domain/coins"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
	"github.com/mufasadev/coin-settlement/internal/domain/repositories"
	apperrors "github.com/mufasadev/coin-settlement/internal/errors"
	"github.com/mufasadev/coin-settlement/internal/gateways"
	"github.com/mufasadev/coin-settlement/internal/infrastructure/metrics"
	"github.com/mufasadev/coin-settlement/internal/usecases/dtos"
	"github.com/mufasadev/coin-settlement/pkg/ids"
	"github.com/mufasadev/coin-settlement/pkg/log"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"strings"
	"time"
)

// PaymentInteractor opens deposits and withdrawals with the providers.
type PaymentInteractor struct {
	transactionRepository repositories.TransactionRepository
	walletRepository      repositories.WalletRepository
	registry              *gateways.Registry
	converter             *coins.Converter
	settlement            *SettlementInteractor
	walletCurrency        string
	defaultProvider       string
	logger                *zerolog.Logger
}

func NewPaymentInteractor(
	transactionRepository repositories.TransactionRepository,
	walletRepository repositories.WalletRepository,
	registry *gateways.Registry,
	converter *coins.Converter,
	settlement *SettlementInteractor,
	walletCurrency string,
	defaultProvider string,
) *PaymentInteractor {
	l := log.Component("payment")
	return &PaymentInteractor{
		transactionRepository: transactionRepository,
		walletRepository:      walletRepository,
		registry:              registry,
		converter:             converter,
		settlement:            settlement,
		walletCurrency:        walletCurrency,
		defaultProvider:       defaultProvider,
		logger:                &l,
	}
}

type paymentInput struct {
	amount   decimal.Decimal
	currency string
	gateway  gateways.Gateway
}

func (i *PaymentInteractor) validate(dto *dtos.PaymentDTO) (*paymentInput, error) {
	amount, err := decimal.NewFromString(dto.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, apperrors.NewBadRequestError(apperrors.ErrInvalidAmount)
	}

	currency := strings.ToUpper(strings.TrimSpace(dto.Currency))
	if !i.converter.Supports(currency) {
		return nil, apperrors.NewBadRequestError(apperrors.ErrUnsupportedCurrency)
	}

	name := dto.Provider
	if name == "" {
		name = i.defaultProvider
	}
	gw, err := i.registry.Lookup(name)
	if err != nil {
		return nil, apperrors.NewBadRequestError(apperrors.ErrInvalidProvider)
	}
	return &paymentInput{amount: amount, currency: currency, gateway: gw}, nil
}

// CreateDeposit asks the provider for an invoice and records a pending deposit for it. Nothing
// is recorded when the provider call fails.
func (i *PaymentInteractor) CreateDeposit(ctx context.Context, userID string, dto *dtos.PaymentDTO) (*dtos.PaymentResponse, error) {
	in, err := i.validate(dto)
	if err != nil {
		return nil, err
	}

	wallet, err := i.walletRepository.GetOrCreate(ctx, userID, i.walletCurrency)
	if err != nil {
		return nil, err
	}

	correlationID := ids.NewCorrelationID()
	start := time.Now()
	invoice, err := in.gateway.CreateInvoice(ctx, &gateways.InvoiceRequest{
		OrderID:     correlationID,
		UserID:      userID,
		Amount:      in.amount,
		Currency:    in.currency,
		Description: "Coin deposit " + correlationID,
	})
	metrics.GatewayRequestDuration.
		WithLabelValues(string(in.gateway.Name()), "create_invoice", metrics.Outcome(err)).
		Observe(time.Since(start).Seconds())
	if err != nil {
		i.logger.Error().Err(err).Str("provider", string(in.gateway.Name())).Msg(apperrors.ErrFailedCreateDeposit)
		return nil, err
	}

	tx := &models.Transaction{
		ID:               ids.NewTransactionID(),
		GatewayInvoiceID: invoice.ProviderRef,
		CorrelationID:    correlationID,
		UserID:           userID,
		WalletID:         wallet.ID,
		Type:             models.TransactionTypeDeposit,
		Amount:           in.amount,
		Currency:         in.currency,
		Status:           models.StatusPending,
		Provider:         in.gateway.Name(),
		CheckoutURL:      invoice.CheckoutURL,
		Metadata:         invoice.Metadata,
	}
	if err = i.transactionRepository.Create(ctx, tx); err != nil {
		return nil, err
	}

	i.logger.Info().
		Str("transaction_id", tx.ID).
		Str("provider", string(tx.Provider)).
		Str("invoice_id", tx.GatewayInvoiceID).
		Str("amount", tx.Amount.String()).
		Msg("deposit created")

	return &dtos.PaymentResponse{
		TransactionID:     tx.ID,
		CheckoutURL:       tx.CheckoutURL,
		ProviderReference: tx.GatewayInvoiceID,
		Status:            tx.Status,
	}, nil
}

// CreateWithdrawal reserves the coins first and then asks the provider for the payout. A failed
// provider call releases the reservation through the failed transition.
func (i *PaymentInteractor) CreateWithdrawal(ctx context.Context, userID string, dto *dtos.PaymentDTO) (*dtos.PaymentResponse, error) {
	in, err := i.validate(dto)
	if err != nil {
		return nil, err
	}
	destination := strings.TrimSpace(dto.Destination)
	if destination == "" {
		return nil, apperrors.NewBadRequestError("Destination is required")
	}

	coinAmount, err := i.converter.Reserve(in.amount, in.currency)
	if err != nil {
		return nil, apperrors.NewBadRequestError(apperrors.ErrUnsupportedCurrency)
	}

	correlationID := ids.NewCorrelationID()
	tx := &models.Transaction{
		ID:            ids.NewTransactionID(),
		CorrelationID: correlationID,
		UserID:        userID,
		Type:          models.TransactionTypeWithdrawal,
		Amount:        in.amount,
		Currency:      in.currency,
		CoinAmount:    coinAmount,
		Status:        models.StatusPending,
		Provider:      in.gateway.Name(),
	}
	req := &models.WithdrawalRequest{
		ID:            ids.NewTransactionID(),
		TransactionID: tx.ID,
		UserID:        userID,
		Amount:        in.amount,
		Currency:      in.currency,
		CoinAmount:    coinAmount,
		Destination:   destination,
		Status:        models.WithdrawalStatusPending,
	}

	balance, err := i.transactionRepository.CreateWithdrawal(ctx, tx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	payout, err := in.gateway.CreateWithdrawal(ctx, &gateways.WithdrawalRequest{
		OrderID:     correlationID,
		UserID:      userID,
		Amount:      in.amount,
		Currency:    in.currency,
		Destination: destination,
	})
	metrics.GatewayRequestDuration.
		WithLabelValues(string(in.gateway.Name()), "create_withdrawal", metrics.Outcome(err)).
		Observe(time.Since(start).Seconds())
	if err != nil {
		i.logger.Error().Err(err).Str("transaction_id", tx.ID).Msg(apperrors.ErrFailedCreateWithdrawal)
		i.release(ctx, tx, err)
		if errors.Is(err, gateways.ErrUnsupported) {
			return nil, apperrors.NewBadRequestError("Provider does not support withdrawals")
		}
		return nil, err
	}

	if err = i.transactionRepository.AttachGatewayRef(ctx, tx.ID, payout.ProviderRef, payout.CheckoutURL, payout.Metadata); err != nil {
		return nil, err
	}

	status := tx.Status
	if payout.Status != "" && payout.Status != models.StatusPending {
		settled, err := i.settlement.Settle(ctx, &SettleRequest{TransactionID: tx.ID, To: payout.Status, Reason: "payout accepted"})
		if err != nil {
			return nil, err
		}
		status = settled.Transaction.Status
		if settled.Applied && settled.Balance != 0 {
			balance = settled.Balance
		}
	}

	i.logger.Info().
		Str("transaction_id", tx.ID).
		Str("provider", string(tx.Provider)).
		Int64("coins", coinAmount).
		Msg("withdrawal created")

	return &dtos.PaymentResponse{
		TransactionID:     tx.ID,
		ProviderReference: payout.ProviderRef,
		Status:            status,
		CoinAmount:        coinAmount,
		Balance:           &balance,
	}, nil
}

// release fails a withdrawal whose payout could not be requested, refunding the reservation.
func (i *PaymentInteractor) release(ctx context.Context, tx *models.Transaction, cause error) {
	_, err := i.settlement.Settle(context.WithoutCancel(ctx), &SettleRequest{
		TransactionID: tx.ID,
		To:            models.StatusFailed,
		Reason:        cause.Error(),
	})
	if err != nil {
		i.logger.Error().Err(err).Str("transaction_id", tx.ID).Msg("failed to release withdrawal reservation")
	}
}

// Status asks the provider for the current state of a transaction.
func (i *PaymentInteractor) Status(ctx context.Context, transactionID string) (*dtos.StatusResponse, error) {
	tx, err := i.transactionRepository.GetByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewTransactionNotFoundError(transactionID)
		}
		return nil, err
	}

	resp := &dtos.StatusResponse{TransactionID: tx.ID, Status: tx.Status}
	gw, ok := i.registry.Get(tx.Provider)
	if !ok {
		return resp, nil
	}

	var status *gateways.StatusResponse
	if getter, ok := gw.(gateways.TransactionStatusGetter); ok {
		status, err = getter.TransactionStatus(ctx, tx)
	} else {
		ref := tx.GatewayInvoiceID
		if ref == "" {
			ref = tx.CorrelationID
		}
		status, err = gw.GetStatus(ctx, ref)
	}
	if err != nil {
		if errors.Is(err, gateways.ErrUnsupported) {
			return resp, nil
		}
		return nil, err
	}
	resp.ProviderStatus = status.Status
	resp.RawStatus = status.RawStatus
	return resp, nil
}
