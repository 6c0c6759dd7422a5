// Package notify publishes settlement events for downstream consumers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/mufasadev/coin-settlement/internal/config"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
	"github.com/mufasadev/coin-settlement/pkg/log"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"time"
)

type Notifier interface {
	Notify(ctx context.Context, event *models.SettlementEvent) error
	Close() error
}

// messageWriter is the part of kafka.Writer the notifier uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier writes events as JSON keyed by user id, so the events of one user stay ordered
// within a partition.
type KafkaNotifier struct {
	writer messageWriter
	logger *zerolog.Logger
}

func NewKafkaWriter(cfg config.Kafka) *kafka.Writer {
	l := log.GetLogger()
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.BrokerList()...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			l.Debug().Msgf(msg, args...)
		}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			l.Error().Msgf(msg, args...)
		}),
	}
}

func NewKafkaNotifier(writer messageWriter) *KafkaNotifier {
	l := log.GetLogger()
	return &KafkaNotifier{
		writer: writer,
		logger: &l,
	}
}

func (n *KafkaNotifier) Notify(ctx context.Context, event *models.SettlementEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.UserID),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(event.Kind)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}
	if err = n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.Kind, err)
	}

	n.logger.Debug().Str("event_id", event.ID).Str("kind", string(event.Kind)).Msg("event published")
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

// LogNotifier writes events to the application log.
type LogNotifier struct {
	logger *zerolog.Logger
}

func NewLogNotifier() *LogNotifier {
	l := log.GetLogger()
	return &LogNotifier{logger: &l}
}

func (n *LogNotifier) Notify(_ context.Context, event *models.SettlementEvent) error {
	n.logger.Info().
		Str("event_id", event.ID).
		Str("kind", string(event.Kind)).
		Str("user_id", event.UserID).
		Str("transaction_id", event.TransactionID).
		Int64("coins", event.Coins).
		Int64("bonus", event.Bonus).
		Int64("balance", event.Balance).
		Msg("settlement event")
	return nil
}

func (n *LogNotifier) Close() error {
	return nil
}
