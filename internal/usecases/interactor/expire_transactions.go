package interactor

import (
	"context"
	"fmt"
	"github.com/mufasadev/coin-settlement/internal/config"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
	"github.com/mufasadev/coin-settlement/internal/domain/repositories"
	"github.com/mufasadev/coin-settlement/internal/errors"
	"github.com/mufasadev/coin-settlement/internal/infrastructure/metrics"
	"github.com/mufasadev/coin-settlement/pkg/log"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"sync/atomic"
	"time"
)

type ExpireTransactionsInteractor struct {
	transactionRepository repositories.TransactionRepository
	settlement            *SettlementInteractor
	deadline              time.Duration
	batchSize             int
	workers               int
	terminal              models.Status
	now                   func() time.Time
	logger                *zerolog.Logger
}

// NewExpireTransactionsInteractor creates a new ExpireTransactionsInteractor
func NewExpireTransactionsInteractor(transactionRepository repositories.TransactionRepository, settlement *SettlementInteractor, cfg config.Process) *ExpireTransactionsInteractor {
	l := log.Component("expiry")
	terminal := models.Status(cfg.TerminalStatus)
	if terminal != models.StatusFailed {
		terminal = models.StatusExpired
	}
	batchSize, workers := cfg.BatchLimit(), cfg.WorkerCount()
	if batchSize < 1 {
		batchSize = 100
	}
	if workers < 1 {
		workers = 1
	}
	return &ExpireTransactionsInteractor{
		transactionRepository: transactionRepository,
		settlement:            settlement,
		deadline:              cfg.DeadlineDuration(),
		batchSize:             batchSize,
		workers:               workers,
		terminal:              terminal,
		now:                   time.Now,
		logger:                &l,
	}
}

// Execute closes every transaction still pending after the deadline. It drains full batches
// and returns how many transactions it closed.
func (e *ExpireTransactionsInteractor) Execute(ctx context.Context) (int, error) {
	var closed int64
	for {
		now := e.now().UTC()
		stale, err := e.transactionRepository.ListStalePending(ctx, now.Add(-e.deadline), e.batchSize)
		if err != nil {
			e.logger.Error().Err(err).Msg(errors.ErrFailedExpireTransactions)
			return int(closed), err
		}
		if len(stale) == 0 {
			break
		}

		var batchClosed int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.workers)
		for _, tx := range stale {
			tx := tx
			g.Go(func() error {
				applied, err := e.expire(gctx, tx, now)
				if err != nil {
					return fmt.Errorf("expire %s: %w", tx.ID, err)
				}
				if applied {
					atomic.AddInt64(&batchClosed, 1)
				}
				return nil
			})
		}
		err = g.Wait()
		closed += batchClosed
		if err != nil {
			e.logger.Error().Err(err).Msg(errors.ErrFailedExpireTransactions)
			return int(closed), err
		}

		if len(stale) < e.batchSize || batchClosed == 0 {
			break
		}
	}

	if closed > 0 {
		e.logger.Info().Int64("count", closed).Str("status", string(e.terminal)).Msg("stale transactions closed")
	}
	return int(closed), nil
}

func (e *ExpireTransactionsInteractor) expire(ctx context.Context, tx *models.Transaction, now time.Time) (bool, error) {
	res, err := e.settlement.Settle(ctx, &SettleRequest{
		TransactionID: tx.ID,
		To:            e.terminal,
		Reason:        "no provider confirmation before deadline",
		Metadata: models.Metadata{Expiry: &models.ExpiryMeta{
			Reason:    "deadline",
			Deadline:  e.deadline.String(),
			ExpiredAt: now,
		}},
		At: now,
	})
	if err != nil {
		return false, err
	}
	if res.Applied {
		metrics.TransactionsExpired.WithLabelValues(string(e.terminal)).Inc()
	}
	return res.Applied, nil
}
