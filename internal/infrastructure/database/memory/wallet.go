package memory

import (
	"context"
	"github.com/google/uuid"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
	apperrors "github.com/mufasadev/coin-settlement/internal/errors"
	"time"
)

type WalletRepository struct {
	store *Store
}

func (r *WalletRepository) GetOrCreate(_ context.Context, userID, currency string) (*models.Wallet, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := s.wallets[userID]; ok {
		c := *w
		return &c, nil
	}
	now := time.Now().UTC()
	w := &models.Wallet{
		ID:        uuid.New().String(),
		UserID:    userID,
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.wallets[userID] = w
	c := *w
	return &c, nil
}

func (r *WalletRepository) GetByUserID(_ context.Context, userID string) (*models.Wallet, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wallets[userID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	c := *w
	return &c, nil
}

func (r *WalletRepository) SetVIPTier(_ context.Context, userID, tier string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[userID]
	if !ok {
		return apperrors.ErrNotFound
	}
	w.VIPTier = tier
	w.UpdatedAt = time.Now().UTC()
	return nil
}
