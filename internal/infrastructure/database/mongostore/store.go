// Package mongostore keeps the ledger in MongoDB. Multi-document writes run inside sessions,
// so the server must be a replica set.
package mongostore

import (
	"context"
	"fmt"
	"github.com/mufasadev/coin-settlement/internal/config"
	"github.com/mufasadev/coin-settlement/internal/domain/repositories"
	"github.com/mufasadev/coin-settlement/pkg/log"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"reflect"
	"time"
)

const (
	transactionsCollection = "transactions"
	withdrawalsCollection  = "withdrawal_requests"
	walletsCollection      = "wallets"
	referralsCollection    = "referrals"
)

var (
	_ repositories.TransactionRepository = (*TransactionRepository)(nil)
	_ repositories.WalletRepository      = (*WalletRepository)(nil)
	_ repositories.ReferralRepository    = (*ReferralRepository)(nil)
)

var decimalType = reflect.TypeOf(decimal.Decimal{})

// NewRegistry returns the default registry extended with a string codec for decimal.Decimal.
func NewRegistry() *bsoncodec.Registry {
	reg := bson.NewRegistry()
	reg.RegisterTypeEncoder(decimalType, bsoncodec.ValueEncoderFunc(encodeDecimal))
	reg.RegisterTypeDecoder(decimalType, bsoncodec.ValueDecoderFunc(decodeDecimal))
	return reg
}

func encodeDecimal(_ bsoncodec.EncodeContext, vw bsonrw.ValueWriter, val reflect.Value) error {
	if !val.IsValid() || val.Type() != decimalType {
		return bsoncodec.ValueEncoderError{Name: "DecimalEncodeValue", Types: []reflect.Type{decimalType}, Received: val}
	}
	return vw.WriteString(val.Interface().(decimal.Decimal).String())
}

func decodeDecimal(_ bsoncodec.DecodeContext, vr bsonrw.ValueReader, val reflect.Value) error {
	if !val.CanSet() || val.Type() != decimalType {
		return bsoncodec.ValueDecoderError{Name: "DecimalDecodeValue", Types: []reflect.Type{decimalType}, Received: val}
	}

	switch vr.Type() {
	case bsontype.Null:
		if err := vr.ReadNull(); err != nil {
			return err
		}
		val.Set(reflect.ValueOf(decimal.Zero))
		return nil
	case bsontype.String:
		s, err := vr.ReadString()
		if err != nil {
			return err
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		val.Set(reflect.ValueOf(d))
		return nil
	}
	return fmt.Errorf("cannot decode %v into decimal", vr.Type())
}

// Connect opens a client and pings the primary.
func Connect(ctx context.Context, cfg config.Mongo) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI).SetRegistry(NewRegistry()))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err = client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

type Store struct {
	client         *mongo.Client
	db             *mongo.Database
	walletCurrency string
	logger         *zerolog.Logger
}

func NewStore(client *mongo.Client, database, walletCurrency string) *Store {
	l := log.GetLogger()
	return &Store{
		client:         client,
		db:             client.Database(database),
		walletCurrency: walletCurrency,
		logger:         &l,
	}
}

func (s *Store) Transactions() *TransactionRepository {
	return &TransactionRepository{store: s}
}

func (s *Store) Wallets() *WalletRepository {
	return &WalletRepository{store: s}
}

func (s *Store) Referrals() *ReferralRepository {
	return &ReferralRepository{store: s}
}

func (s *Store) collection(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// EnsureIndexes creates the lookup and uniqueness indexes of every collection.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		transactionsCollection: {
			{
				Keys:    bson.D{{Key: "provider", Value: 1}, {Key: "correlation_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "provider", Value: 1}, {Key: "gateway_invoice_id", Value: 1}}},
			{Keys: bson.D{{Key: "provider", Value: 1}, {Key: "gateway_transaction_id", Value: 1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		withdrawalsCollection: {
			{Keys: bson.D{{Key: "transaction_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		walletsCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	for name, idx := range indexes {
		if _, err := s.collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
	}
	return nil
}

// withTransaction runs fn in a snapshot transaction. The driver retries fn on transient
// errors such as write conflicts, so fn must re-read everything it depends on.
func (s *Store) withTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)

	opts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	}, opts)
	return err
}

// creditWallet adds delta to the wallet of userID, creating the wallet when missing.
func (s *Store) creditWallet(ctx context.Context, userID, walletID string, delta int64, at time.Time) (int64, error) {
	var wallet struct {
		Balance int64 `bson:"balance"`
	}
	err := s.collection(walletsCollection).FindOneAndUpdate(ctx,
		bson.M{"user_id": userID},
		bson.M{
			"$inc": bson.M{"balance": delta},
			"$set": bson.M{"updated_at": at},
			"$setOnInsert": bson.M{
				"_id":        walletID,
				"currency":   s.walletCurrency,
				"vip_tier":   "",
				"created_at": at,
			},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&wallet)
	return wallet.Balance, err
}
