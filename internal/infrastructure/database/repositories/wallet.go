package repositories

import (
	"context"
	"errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
	"github.com/mufasadev/coin-settlement/internal/domain/repositories"
	apperrors "github.com/mufasadev/coin-settlement/internal/errors"
)

type WalletRepositoryImpl struct {
	db *pgxpool.Pool
}

func NewWalletRepositoryImpl(db *pgxpool.Pool) repositories.WalletRepository {
	return &WalletRepositoryImpl{
		db: db,
	}
}

const walletColumns = "id, user_id, balance, currency, vip_tier, created_at, updated_at"

func scanWallet(row scanner) (*models.Wallet, error) {
	w := &models.Wallet{}
	if err := row.Scan(&w.ID, &w.UserID, &w.Balance, &w.Currency, &w.VIPTier, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	return w, nil
}

// GetOrCreate returns the wallet of userID, creating an empty one on first use.
func (r *WalletRepositoryImpl) GetOrCreate(ctx context.Context, userID, currency string) (*models.Wallet, error) {
	return scanWallet(r.db.QueryRow(ctx, `
INSERT INTO wallets (id, user_id, balance, currency)
VALUES ($1, $2, 0, $3)
ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
RETURNING `+walletColumns,
		uuid.New().String(), userID, currency,
	))
}

func (r *WalletRepositoryImpl) GetByUserID(ctx context.Context, userID string) (*models.Wallet, error) {
	w, err := scanWallet(r.db.QueryRow(ctx, "SELECT "+walletColumns+" FROM wallets WHERE user_id = $1", userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return w, nil
}

func (r *WalletRepositoryImpl) SetVIPTier(ctx context.Context, userID, tier string) error {
	tag, err := r.db.Exec(ctx, "UPDATE wallets SET vip_tier = $2, updated_at = now() WHERE user_id = $1", userID, tier)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
