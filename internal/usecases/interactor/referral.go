package interactor

import (
	"context"
	"errors"
	"github.com/mufasadev/coin-settlement/internal/domain/coins"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
	"github.com/mufasadev/coin-settlement/internal/domain/repositories"
	apperrors "github.com/mufasadev/coin-settlement/internal/errors"
	"github.com/mufasadev/coin-settlement/internal/infrastructure/notify"
	"github.com/mufasadev/coin-settlement/pkg/ids"
	"github.com/mufasadev/coin-settlement/pkg/log"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"time"
)

// ReferralInteractor rewards a referrer once the referee's completed deposits reach the threshold.
type ReferralInteractor struct {
	referralRepository    repositories.ReferralRepository
	transactionRepository repositories.TransactionRepository
	converter             *coins.Converter
	notifier              notify.Notifier
	threshold             decimal.Decimal
	reward                int64
	logger                *zerolog.Logger
}

func NewReferralInteractor(
	referralRepository repositories.ReferralRepository,
	transactionRepository repositories.TransactionRepository,
	converter *coins.Converter,
	notifier notify.Notifier,
	threshold decimal.Decimal,
	reward int64,
) *ReferralInteractor {
	l := log.Component("referral")
	return &ReferralInteractor{
		referralRepository:    referralRepository,
		transactionRepository: transactionRepository,
		converter:             converter,
		notifier:              notifier,
		threshold:             threshold,
		reward:                reward,
		logger:                &l,
	}
}

// Register links refereeID to referrerID. A user has at most one referrer.
func (i *ReferralInteractor) Register(ctx context.Context, refereeID, referrerID string) (*models.Referral, error) {
	if referrerID == "" || referrerID == refereeID {
		return nil, apperrors.NewBadRequestError("Invalid referrer")
	}
	ref := &models.Referral{
		ReferrerID: referrerID,
		RefereeID:  refereeID,
		Status:     models.ReferralStatusPending,
	}
	if err := i.referralRepository.Create(ctx, ref); err != nil {
		return nil, err
	}
	return ref, nil
}

// Evaluate qualifies the referral of userID when cumulative reaches the threshold. It returns
// false when there is no referral, it is already qualified or the threshold is not met.
func (i *ReferralInteractor) Evaluate(ctx context.Context, userID string, cumulative decimal.Decimal) (*models.Referral, bool, error) {
	ref, err := i.referralRepository.GetByReferee(ctx, userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if ref.Status == models.ReferralStatusQualified || cumulative.LessThan(i.threshold) {
		return ref, false, nil
	}

	ref, ok, err := i.referralRepository.Qualify(ctx, userID, i.reward)
	if err != nil || !ok {
		return ref, false, err
	}

	i.logger.Info().
		Str("referee_id", userID).
		Str("referrer_id", ref.ReferrerID).
		Int64("reward", i.reward).
		Msg("referral qualified")

	event := &models.SettlementEvent{
		ID:         ids.NewEventID(),
		Kind:       models.EventReferralQualified,
		UserID:     ref.ReferrerID,
		Coins:      i.reward,
		OccurredAt: time.Now().UTC(),
	}
	if err = i.notifier.Notify(ctx, event); err != nil {
		i.logger.Warn().Err(err).Str("referee_id", userID).Msg("failed to publish referral event")
	}
	return ref, true, nil
}

// Requalify re-runs Evaluate with the stored completed deposit total of userID.
func (i *ReferralInteractor) Requalify(ctx context.Context, userID string) (*models.Referral, bool, error) {
	total, err := cumulativeUnits(ctx, i.transactionRepository, i.converter, userID)
	if err != nil {
		return nil, false, err
	}
	return i.Evaluate(ctx, userID, total)
}
