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

type ReferralRepository struct {
	store *Store
}

func (r *ReferralRepository) referrals() *mongo.Collection {
	return r.store.collection(referralsCollection)
}

func (r *ReferralRepository) Create(ctx context.Context, ref *models.Referral) error {
	if ref.CreatedAt.IsZero() {
		ref.CreatedAt = time.Now().UTC()
	}
	if ref.Status == "" {
		ref.Status = models.ReferralStatusPending
	}
	if _, err := r.referrals().InsertOne(ctx, ref); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.NewTransactionDuplicateError()
		}
		return err
	}
	return nil
}

func (r *ReferralRepository) GetByReferee(ctx context.Context, refereeID string) (*models.Referral, error) {
	ref := &models.Referral{}
	if err := r.referrals().FindOne(ctx, bson.M{"_id": refereeID}).Decode(ref); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return ref, nil
}

// Qualify flips the referral from pending and credits the referrer in one session transaction.
func (r *ReferralRepository) Qualify(ctx context.Context, refereeID string, reward int64) (*models.Referral, bool, error) {
	var (
		ref       *models.Referral
		qualified bool
	)
	err := r.store.withTransaction(ctx, func(sc mongo.SessionContext) error {
		now := time.Now().UTC()
		ref, qualified = &models.Referral{}, false

		err := r.referrals().FindOneAndUpdate(sc,
			bson.M{"_id": refereeID, "status": models.ReferralStatusPending},
			bson.M{"$set": bson.M{"status": models.ReferralStatusQualified, "reward_coins": reward, "qualified_at": now}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(ref)
		if errors.Is(err, mongo.ErrNoDocuments) {
			ref, err = r.GetByReferee(sc, refereeID)
			return err
		}
		if err != nil {
			return err
		}

		if _, err = r.store.creditWallet(sc, ref.ReferrerID, uuid.New().String(), reward, now); err != nil {
			return err
		}
		qualified = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return ref, qualified, nil
}
