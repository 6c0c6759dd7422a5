package mongostore

import (
	"context"
	"errors"
	"github.com/google/uuid"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
	apperrors "github.com/mufasadev/coin-settlement/internal/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"time"
)

type WalletRepository struct {
	store *Store
}

func (r *WalletRepository) wallets() *mongo.Collection {
	return r.store.collection(walletsCollection)
}

func (r *WalletRepository) GetOrCreate(ctx context.Context, userID, currency string) (*models.Wallet, error) {
	now := time.Now().UTC()
	w := &models.Wallet{}
	err := r.wallets().FindOneAndUpdate(ctx,
		bson.M{"user_id": userID},
		bson.M{"$setOnInsert": bson.M{
			"_id":        uuid.New().String(),
			"balance":    int64(0),
			"currency":   currency,
			"vip_tier":   "",
			"created_at": now,
			"updated_at": now,
		}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(w)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (r *WalletRepository) GetByUserID(ctx context.Context, userID string) (*models.Wallet, error) {
	w := &models.Wallet{}
	if err := r.wallets().FindOne(ctx, bson.M{"user_id": userID}).Decode(w); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return w, nil
}

func (r *WalletRepository) SetVIPTier(ctx context.Context, userID, tier string) error {
	res, err := r.wallets().UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{"vip_tier": tier, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
