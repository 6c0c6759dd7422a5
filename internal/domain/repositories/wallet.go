package repositories

import (
	"context"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
)

type WalletRepository interface {
	GetOrCreate(ctx context.Context, userID, currency string) (*models.Wallet, error)
	GetByUserID(ctx context.Context, userID string) (*models.Wallet, error)
	SetVIPTier(ctx context.Context, userID, tier string) error
}
