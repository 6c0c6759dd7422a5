package interactor

import (
	"context"
	"errors"
	"github.com/mufasadev/coin-settlement/internal/domain/bonus"
	"github.com/mufasadev/coin-settlement/internal/domain/coins"
	"github.com/mufasadev/coin-settlement/internal/domain/repositories"
	apperrors "github.com/mufasadev/coin-settlement/internal/errors"
	"github.com/mufasadev/coin-settlement/pkg/log"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// VIPInteractor keeps wallet tiers in line with cumulative completed deposits.
type VIPInteractor struct {
	transactionRepository repositories.TransactionRepository
	walletRepository      repositories.WalletRepository
	converter             *coins.Converter
	calculator            *bonus.Calculator
	logger                *zerolog.Logger
}

func NewVIPInteractor(
	transactionRepository repositories.TransactionRepository,
	walletRepository repositories.WalletRepository,
	converter *coins.Converter,
	calculator *bonus.Calculator,
) *VIPInteractor {
	l := log.GetLogger()
	return &VIPInteractor{
		transactionRepository: transactionRepository,
		walletRepository:      walletRepository,
		converter:             converter,
		calculator:            calculator,
		logger:                &l,
	}
}

// TierOf returns the tier recorded on the user's wallet, or the entry tier when none is.
func (i *VIPInteractor) TierOf(ctx context.Context, userID string) (bonus.Tier, error) {
	wallet, err := i.walletRepository.GetByUserID(ctx, userID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return bonus.Tier{}, err
	}
	if wallet != nil {
		if tier, ok := i.calculator.Tier(wallet.VIPTier); ok {
			return tier, nil
		}
	}
	return i.calculator.TierFor(decimal.Zero), nil
}

// Recompute derives the tier from the completed deposit total and stores it when it changed.
func (i *VIPInteractor) Recompute(ctx context.Context, userID string) (bonus.Tier, error) {
	total, err := cumulativeUnits(ctx, i.transactionRepository, i.converter, userID)
	if err != nil {
		return bonus.Tier{}, err
	}
	tier := i.calculator.TierFor(total)

	wallet, err := i.walletRepository.GetByUserID(ctx, userID)
	if err != nil {
		return bonus.Tier{}, err
	}
	if wallet.VIPTier == tier.Name {
		return tier, nil
	}

	if err = i.walletRepository.SetVIPTier(ctx, userID, tier.Name); err != nil {
		return bonus.Tier{}, err
	}
	i.logger.Info().
		Str("user_id", userID).
		Str("from", wallet.VIPTier).
		Str("to", tier.Name).
		Str("cumulative", total.String()).
		Msg("vip tier changed")
	return tier, nil
}

// cumulativeUnits is the completed deposit total of userID in reference units, each currency
// converted at its own rate.
func cumulativeUnits(ctx context.Context, transactionRepository repositories.TransactionRepository, converter *coins.Converter, userID string) (decimal.Decimal, error) {
	totals, err := transactionRepository.CompletedDepositTotals(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return converter.Total(totals)
}
