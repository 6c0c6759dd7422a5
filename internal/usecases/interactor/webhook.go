package interactor

import (
	"context"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
	"github.com/mufasadev/coin-settlement/internal/domain/repositories"
	apperrors "github.com/mufasadev/coin-settlement/internal/errors"
	"github.com/mufasadev/coin-settlement/internal/gateways"
	"github.com/mufasadev/coin-settlement/internal/infrastructure/cache"
	"github.com/mufasadev/coin-settlement/internal/infrastructure/metrics"
	"github.com/mufasadev/coin-settlement/internal/usecases/dtos"
	"github.com/mufasadev/coin-settlement/pkg/log"
	"github.com/rs/zerolog"
	"time"
)

type WebhookInteractor struct {
	transactionRepository repositories.TransactionRepository
	settlement            *SettlementInteractor
	deduper               cache.Deduper
	now                   func() time.Time
	logger                *zerolog.Logger
}

func NewWebhookInteractor(transactionRepository repositories.TransactionRepository, settlement *SettlementInteractor, deduper cache.Deduper) *WebhookInteractor {
	l := log.Component("webhook")
	if deduper == nil {
		deduper = cache.NopDeduper{}
	}
	return &WebhookInteractor{
		transactionRepository: transactionRepository,
		settlement:            settlement,
		deduper:               deduper,
		now:                   time.Now,
		logger:                &l,
	}
}

// Handle verifies, parses and settles one delivery. Once the signature is valid every outcome
// that leaves the ledger consistent is acknowledged; only storage failures are returned so the
// provider retries.
func (i *WebhookInteractor) Handle(ctx context.Context, gw gateways.Gateway, payload []byte, signature string) (*dtos.WebhookResult, error) {
	provider := string(gw.Name())
	result := &dtos.WebhookResult{Received: true, Provider: provider}

	if signature == "" || !gw.VerifySignature(payload, signature) {
		metrics.WebhooksReceived.WithLabelValues(provider, "invalid_signature").Inc()
		return nil, apperrors.NewSignatureInvalidError(provider)
	}

	event, err := gw.ParseWebhook(payload)
	if err != nil {
		metrics.WebhooksReceived.WithLabelValues(provider, "malformed").Inc()
		i.logger.Warn().Err(err).Str("provider", provider).Msg("malformed webhook payload")
		return nil, apperrors.NewBadRequestError(apperrors.ErrInvalidRequestBody)
	}

	seen, err := i.deduper.Seen(ctx, provider, payload)
	if err != nil {
		i.logger.Warn().Err(err).Str("provider", provider).Msg("dedupe lookup failed")
	}
	if seen {
		metrics.DuplicateDeliveries.WithLabelValues(provider).Inc()
		result.Duplicate = true
		return result, nil
	}

	if event.Status == "" {
		metrics.WebhooksReceived.WithLabelValues(provider, "ignored").Inc()
		i.logger.Warn().
			Str("provider", provider).
			Str("event_id", event.ID).
			Str("raw_status", event.RawStatus).
			Msg("unmapped provider status, acknowledged")
		return result, nil
	}

	tx, err := i.transactionRepository.FindByCorrelation(ctx, gw.Name(), event.CorrelationIDs)
	if err != nil {
		metrics.WebhooksReceived.WithLabelValues(provider, "error").Inc()
		return nil, err
	}
	if tx == nil {
		metrics.WebhooksUnmatched.WithLabelValues(provider).Inc()
		i.logger.Warn().
			Str("provider", provider).
			Str("event_id", event.ID).
			Strs("refs", event.CorrelationIDs).
			Msg(apperrors.NewTransactionNotFoundError(event.CorrelationIDs...).Error())
		return result, nil
	}
	result.Matched = true
	result.TransactionID = tx.ID

	meta := event.Metadata
	meta.History = append(meta.History, models.EventRecord{
		Source:     provider,
		EventID:    event.ID,
		RawStatus:  event.RawStatus,
		Status:     event.Status,
		ReceivedAt: i.now().UTC(),
	})

	settled, err := i.settlement.Settle(ctx, &SettleRequest{
		TransactionID:        tx.ID,
		To:                   event.Status,
		Reason:               event.RawStatus,
		GatewayTransactionID: event.GatewayTransactionID,
		Metadata:             meta,
	})
	if err != nil {
		metrics.WebhooksReceived.WithLabelValues(provider, "error").Inc()
		return nil, err
	}
	result.Applied = settled.Applied
	result.Status = settled.Transaction.Status

	if err = i.deduper.Remember(ctx, provider, payload); err != nil {
		i.logger.Warn().Err(err).Str("provider", provider).Msg("dedupe store failed")
	}
	metrics.WebhooksReceived.WithLabelValues(provider, "ok").Inc()
	return result, nil
}
