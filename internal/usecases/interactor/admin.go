package interactor

import (
	"context"
	"github.com/mufasadev/coin-settlement/internal/domain/coins"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
	"github.com/mufasadev/coin-settlement/internal/domain/repositories"
	apperrors "github.com/mufasadev/coin-settlement/internal/errors"
	"github.com/mufasadev/coin-settlement/internal/usecases/dtos"
	"github.com/mufasadev/coin-settlement/pkg/ids"
	"github.com/mufasadev/coin-settlement/pkg/log"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"strings"
	"time"
)

// AdminInteractor drives the state machine without a live provider.
type AdminInteractor struct {
	transactionRepository repositories.TransactionRepository
	walletRepository      repositories.WalletRepository
	converter             *coins.Converter
	settlement            *SettlementInteractor
	referral              *ReferralInteractor
	walletCurrency        string
	logger                *zerolog.Logger
}

func NewAdminInteractor(
	transactionRepository repositories.TransactionRepository,
	walletRepository repositories.WalletRepository,
	converter *coins.Converter,
	settlement *SettlementInteractor,
	referral *ReferralInteractor,
	walletCurrency string,
) *AdminInteractor {
	l := log.GetLogger()
	return &AdminInteractor{
		transactionRepository: transactionRepository,
		walletRepository:      walletRepository,
		converter:             converter,
		settlement:            settlement,
		referral:              referral,
		walletCurrency:        walletCurrency,
		logger:                &l,
	}
}

// SimulateDeposit records a pending deposit and settles it with a synthetic completed event.
func (i *AdminInteractor) SimulateDeposit(ctx context.Context, dto *dtos.SimulateDepositDTO) (*SettlementResult, error) {
	if !ids.IsUUID(dto.UserID) {
		return nil, apperrors.NewBadRequestError(apperrors.ErrInvalidUserID)
	}
	amount, err := decimal.NewFromString(dto.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, apperrors.NewBadRequestError(apperrors.ErrInvalidAmount)
	}
	currency := strings.ToUpper(strings.TrimSpace(dto.Currency))
	if !i.converter.Supports(currency) {
		return nil, apperrors.NewBadRequestError(apperrors.ErrUnsupportedCurrency)
	}
	provider, ok := models.ParseProvider(strings.ToLower(dto.Provider))
	if !ok {
		return nil, apperrors.NewBadRequestError(apperrors.ErrInvalidProvider)
	}

	wallet, err := i.walletRepository.GetOrCreate(ctx, dto.UserID, i.walletCurrency)
	if err != nil {
		return nil, err
	}

	correlationID := ids.NewCorrelationID()
	tx := &models.Transaction{
		ID:               ids.NewTransactionID(),
		GatewayInvoiceID: "sim-" + correlationID,
		CorrelationID:    correlationID,
		UserID:           dto.UserID,
		WalletID:         wallet.ID,
		Type:             models.TransactionTypeDeposit,
		Amount:           amount,
		Currency:         currency,
		Status:           models.StatusPending,
		Provider:         provider,
		Metadata:         models.Metadata{Admin: &models.AdminMeta{Simulated: true}},
	}
	if err = i.transactionRepository.Create(ctx, tx); err != nil {
		return nil, err
	}

	i.logger.Warn().Str("transaction_id", tx.ID).Str("user_id", tx.UserID).Msg("simulating completed deposit")

	return i.settlement.Settle(ctx, &SettleRequest{
		TransactionID: tx.ID,
		To:            models.StatusCompleted,
		Reason:        "simulated",
		Metadata: models.Metadata{History: []models.EventRecord{{
			Source:     "admin",
			EventID:    ids.NewEventID(),
			RawStatus:  "simulated",
			Status:     models.StatusCompleted,
			ReceivedAt: time.Now().UTC(),
		}}},
	})
}

// Requalify re-runs referral qualification for userID.
func (i *AdminInteractor) Requalify(ctx context.Context, userID string) (*dtos.ReferralResponse, error) {
	ref, qualified, err := i.referral.Requalify(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, apperrors.NewBadRequestError("User has no referrer")
	}
	return &dtos.ReferralResponse{
		RefereeID:  ref.RefereeID,
		ReferrerID: ref.ReferrerID,
		Status:     string(ref.Status),
		Qualified:  qualified,
	}, nil
}
