package interactor

import (
	"context"
	"fmt"
	"github.com/mufasadev/coin-settlement/internal/domain/bonus"
	"github.com/mufasadev/coin-settlement/internal/domain/coins"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
	"github.com/mufasadev/coin-settlement/internal/domain/repositories"
	"github.com/mufasadev/coin-settlement/internal/infrastructure/metrics"
	"github.com/mufasadev/coin-settlement/internal/infrastructure/notify"
	"github.com/mufasadev/coin-settlement/pkg/ids"
	"github.com/mufasadev/coin-settlement/pkg/keymutex"
	"github.com/mufasadev/coin-settlement/pkg/log"
	"github.com/mufasadev/coin-settlement/pkg/util/repeat"
	"github.com/rs/zerolog"
	"time"
)

const (
	collaboratorAttempts = 3
	collaboratorDelay    = 200 * time.Millisecond
	collaboratorTimeout  = 10 * time.Second
)

// SettleRequest asks for a transaction to be moved to To.
type SettleRequest struct {
	TransactionID        string
	To                   models.Status
	Reason               string
	GatewayTransactionID string
	Metadata             models.Metadata
	At                   time.Time
}

type SettlementResult struct {
	Transaction *models.Transaction
	Previous    models.Status
	Applied     bool
	Credit      int64
	Bonus       int64
	Balance     int64
}

// SettlementInteractor plans the side effects of a status change, hands them to the store as one
// check-and-set and runs the post-commit collaborators.
type SettlementInteractor struct {
	transactionRepository repositories.TransactionRepository
	converter             *coins.Converter
	calculator            *bonus.Calculator
	vip                   *VIPInteractor
	referral              *ReferralInteractor
	notifier              notify.Notifier
	locks                 *keymutex.KeyMutex
	attempts              int
	delay                 time.Duration
	logger                *zerolog.Logger
}

func NewSettlementInteractor(
	transactionRepository repositories.TransactionRepository,
	converter *coins.Converter,
	calculator *bonus.Calculator,
	vip *VIPInteractor,
	referral *ReferralInteractor,
	notifier notify.Notifier,
) *SettlementInteractor {
	l := log.Component("settlement")
	return &SettlementInteractor{
		transactionRepository: transactionRepository,
		converter:             converter,
		calculator:            calculator,
		vip:                   vip,
		referral:              referral,
		notifier:              notifier,
		locks:                 keymutex.New(),
		attempts:              collaboratorAttempts,
		delay:                 collaboratorDelay,
		logger:                &l,
	}
}

// Settle moves a transaction to req.To. Events that are not legal transitions are no-ops and
// come back with Applied=false. Errors mean nothing was committed.
func (i *SettlementInteractor) Settle(ctx context.Context, req *SettleRequest) (*SettlementResult, error) {
	unlock := i.locks.Lock(req.TransactionID)
	result, err := i.apply(ctx, req)
	unlock()
	if err != nil {
		return nil, err
	}

	if result.Applied {
		i.afterCommit(ctx, result)
	}
	return result, nil
}

func (i *SettlementInteractor) apply(ctx context.Context, req *SettleRequest) (*SettlementResult, error) {
	tx, err := i.transactionRepository.GetByID(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}

	result := &SettlementResult{Transaction: tx, Previous: tx.Status}
	if tx.Status != req.To && !models.CanTransition(tx.Status, req.To) {
		i.skipped(tx, req.To)
		return result, nil
	}

	transition := &models.Transition{
		TransactionID:        tx.ID,
		To:                   req.To,
		Reason:               req.Reason,
		GatewayTransactionID: req.GatewayTransactionID,
		Metadata:             req.Metadata,
		At:                   req.At,
	}
	if tx.Status != req.To {
		if err = i.plan(ctx, tx, transition, result); err != nil {
			return nil, err
		}
	}

	applied, err := i.transactionRepository.ApplyTransition(ctx, transition)
	if err != nil {
		return nil, fmt.Errorf("apply %s -> %s: %w", tx.Status, req.To, err)
	}

	result.Transaction = applied.Transaction
	result.Previous = applied.Previous
	result.Applied = applied.Applied
	result.Balance = applied.Balance
	if !applied.Applied {
		if applied.Previous != req.To {
			i.skipped(applied.Transaction, req.To)
		}
		result.Credit, result.Bonus = 0, 0
		return result, nil
	}

	metrics.Transitions.WithLabelValues(string(tx.Type), string(applied.Previous), string(req.To)).Inc()
	i.logger.Info().
		Str("transaction_id", tx.ID).
		Str("provider", string(tx.Provider)).
		Str("from", string(applied.Previous)).
		Str("to", string(req.To)).
		Int64("wallet_delta", transition.WalletDelta).
		Int64("balance", applied.Balance).
		Msg("transaction settled")
	return result, nil
}

// plan fills in the wallet delta, coin amount and withdrawal status of a real status change.
func (i *SettlementInteractor) plan(ctx context.Context, tx *models.Transaction, tr *models.Transition, result *SettlementResult) error {
	if tx.IsWithdrawal() {
		switch tr.To {
		case models.StatusCompleted:
			tr.WithdrawalStatus = models.WithdrawalStatusProcessed
		case models.StatusFailed, models.StatusExpired, models.StatusReturned:
			tr.WalletDelta = tx.CoinAmount
			tr.WithdrawalStatus = models.WithdrawalStatusFor(tr.To)
		}
		return nil
	}

	switch tr.To {
	case models.StatusCompleted:
		credit, err := i.converter.Credit(tx.Amount, tx.Currency)
		if err != nil {
			return fmt.Errorf("credit for %s: %w", tx.ID, err)
		}
		result.Credit = credit
		result.Bonus = i.bonusFor(ctx, tx)
		tr.WalletDelta = credit + result.Bonus
		tr.CoinAmount = credit + result.Bonus
	case models.StatusReturned:
		// the credited coins go back; the balance may go negative when they were already spent
		tr.WalletDelta = -tx.CoinAmount
	}
	return nil
}

// bonusFor never fails the settlement: a broken tier lookup pays no bonus.
func (i *SettlementInteractor) bonusFor(ctx context.Context, tx *models.Transaction) int64 {
	tier, err := i.vip.TierOf(ctx, tx.UserID)
	if err != nil {
		i.logger.Warn().Err(err).Str("transaction_id", tx.ID).Msg("vip tier lookup failed, no bonus")
		return 0
	}
	units, err := i.converter.Units(tx.Amount, tx.Currency)
	if err != nil {
		i.logger.Warn().Err(err).Str("transaction_id", tx.ID).Msg("bonus conversion failed, no bonus")
		return 0
	}
	b, err := i.calculator.Calculate(units, tier.Name)
	if err != nil {
		i.logger.Warn().Err(err).Str("transaction_id", tx.ID).Msg("bonus calculation failed, no bonus")
		return 0
	}
	return b
}

func (i *SettlementInteractor) skipped(tx *models.Transaction, to models.Status) {
	metrics.TransitionsSkipped.WithLabelValues(string(tx.Type), string(tx.Status), string(to)).Inc()
	i.logger.Info().
		Str("transaction_id", tx.ID).
		Str("status", string(tx.Status)).
		Str("event_status", string(to)).
		Msg("event ignored, not a valid transition")
}

// afterCommit runs the collaborators of a committed transition. Their failures are logged and
// counted, never returned.
func (i *SettlementInteractor) afterCommit(ctx context.Context, result *SettlementResult) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), collaboratorTimeout)
	defer cancel()

	tx := result.Transaction
	if !tx.IsWithdrawal() && tx.Status == models.StatusCompleted {
		metrics.CoinsCredited.WithLabelValues("deposit").Add(float64(result.Credit))
		metrics.CoinsCredited.WithLabelValues("bonus").Add(float64(result.Bonus))

		i.collaborate(ctx, "vip", tx, func(ctx context.Context) error {
			_, err := i.vip.Recompute(ctx, tx.UserID)
			return err
		})
		i.collaborate(ctx, "referral", tx, func(ctx context.Context) error {
			total, err := cumulativeUnits(ctx, i.transactionRepository, i.converter, tx.UserID)
			if err != nil {
				return err
			}
			_, _, err = i.referral.Evaluate(ctx, tx.UserID, total)
			return err
		})
	}

	kind, ok := eventKind(tx)
	if !ok {
		return
	}
	event := &models.SettlementEvent{
		ID:            ids.NewEventID(),
		Kind:          kind,
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		Provider:      tx.Provider,
		Status:        tx.Status,
		Coins:         result.Credit,
		Bonus:         result.Bonus,
		Balance:       result.Balance,
		OccurredAt:    time.Now().UTC(),
	}
	if tx.IsWithdrawal() || tx.Status == models.StatusReturned {
		event.Coins = tx.CoinAmount
	}
	i.collaborate(ctx, "notify", tx, func(ctx context.Context) error {
		return i.notifier.Notify(ctx, event)
	})
}

func (i *SettlementInteractor) collaborate(ctx context.Context, step string, tx *models.Transaction, f func(ctx context.Context) error) {
	if err := repeat.WithContext(ctx, f, i.attempts, i.delay); err != nil {
		metrics.CollaboratorFailures.WithLabelValues(step).Inc()
		i.logger.Error().Err(err).
			Str("step", step).
			Str("transaction_id", tx.ID).
			Str("user_id", tx.UserID).
			Msg("post-settlement step failed")
	}
}

func eventKind(tx *models.Transaction) (models.EventKind, bool) {
	if tx.IsWithdrawal() {
		switch tx.Status {
		case models.StatusCompleted:
			return models.EventWithdrawalProcessed, true
		case models.StatusFailed, models.StatusExpired, models.StatusReturned:
			return models.EventWithdrawalRefunded, true
		}
		return "", false
	}
	switch tx.Status {
	case models.StatusCompleted:
		return models.EventDepositCompleted, true
	case models.StatusFailed, models.StatusExpired:
		return models.EventDepositFailed, true
	case models.StatusReturned:
		return models.EventDepositReturned, true
	}
	return "", false
}
