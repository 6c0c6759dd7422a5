package app

import (
	"context"
	"github.com/mufasadev/coin-settlement/internal/config"
	"github.com/mufasadev/coin-settlement/internal/errors"
	"github.com/mufasadev/coin-settlement/pkg/log"
	"github.com/rs/zerolog"
	"time"
)

type ExpireTransactionsHandler interface {
	Execute(ctx context.Context) (int, error)
}

// ExpiryProcess runs the expiry reconciler once at start and then on every tick.
type ExpiryProcess struct {
	handler  ExpireTransactionsHandler
	interval time.Duration
	timeout  time.Duration
	logger   *zerolog.Logger
}

func NewExpiryProcess(h ExpireTransactionsHandler, cfg config.Process) *ExpiryProcess {
	l := log.Component("expiry")
	interval := cfg.IntervalDuration()
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ExpiryProcess{handler: h, interval: interval, timeout: interval, logger: &l}
}

// Run blocks until ctx is cancelled.
func (p *ExpiryProcess) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("expiry process stopped")
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *ExpiryProcess) tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	closed, err := p.handler.Execute(ctx)
	if err != nil {
		p.logger.Error().Err(err).Int("closed", closed).Msg(errors.ErrFailedExpireTransactions)
		return
	}
	if closed > 0 {
		p.logger.Info().Int("closed", closed).Msg("stale transactions closed")
	}
}
