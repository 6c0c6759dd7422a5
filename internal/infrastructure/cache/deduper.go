// Package cache fingerprints webhook deliveries in Redis so that provider retries of an already
// handled delivery can be acknowledged without touching the ledger. The ledger stays correct
// without it.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"github.com/mufasadev/coin-settlement/internal/config"
	"github.com/mufasadev/coin-settlement/pkg/log"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"time"
)

const keyPrefix = "idem:v1:"

// Deduper remembers handled deliveries.
type Deduper interface {
	// Seen reports whether the delivery was already handled.
	Seen(ctx context.Context, provider string, payload []byte) (bool, error)
	// Remember marks the delivery as handled.
	Remember(ctx context.Context, provider string, payload []byte) error
}

type WebhookDeduper struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *zerolog.Logger
}

func NewWebhookDeduper(client redis.UniversalClient, ttl time.Duration) *WebhookDeduper {
	l := log.GetLogger()
	return &WebhookDeduper{
		client: client,
		ttl:    ttl,
		logger: &l,
	}
}

// NewClient connects to Redis and pings it.
func NewClient(ctx context.Context, cfg config.Redis) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DBIndex(),
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// Key returns the fingerprint key of a delivery.
func Key(provider string, payload []byte) string {
	sum := sha256.Sum256(payload)
	return keyPrefix + provider + ":" + hex.EncodeToString(sum[:])
}

func (d *WebhookDeduper) Seen(ctx context.Context, provider string, payload []byte) (bool, error) {
	n, err := d.client.Exists(ctx, Key(provider, payload)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *WebhookDeduper) Remember(ctx context.Context, provider string, payload []byte) error {
	ok, err := d.client.SetNX(ctx, Key(provider, payload), time.Now().UTC().Unix(), d.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		d.logger.Debug().Str("provider", provider).Msg("delivery fingerprint already present")
	}
	return nil
}

// NopDeduper never reports a delivery as seen.
type NopDeduper struct{}

func (NopDeduper) Seen(context.Context, string, []byte) (bool, error) { return false, nil }

func (NopDeduper) Remember(context.Context, string, []byte) error { return nil }
