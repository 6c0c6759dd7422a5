package repositories

import (
	"context"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
)

type ReferralRepository interface {
	Create(ctx context.Context, referral *models.Referral) error
	GetByReferee(ctx context.Context, refereeID string) (*models.Referral, error)
	// Qualify marks the pending referral of refereeID qualified and credits the referrer
	// reward in one unit of work. ok is false when it was already qualified.
	Qualify(ctx context.Context, refereeID string, reward int64) (referral *models.Referral, ok bool, err error)
}
