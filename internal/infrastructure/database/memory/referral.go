package memory

import (
	"context"
	"github.com/google/uuid"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
	apperrors "github.com/mufasadev/coin-settlement/internal/errors"
	"time"
)

type ReferralRepository struct {
	store *Store
}

func (r *ReferralRepository) Create(_ context.Context, referral *models.Referral) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.referrals[referral.RefereeID]; ok {
		return apperrors.NewTransactionDuplicateError()
	}
	c := *referral
	if c.Status == "" {
		c.Status = models.ReferralStatusPending
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.referrals[referral.RefereeID] = &c
	return nil
}

func (r *ReferralRepository) GetByReferee(_ context.Context, refereeID string) (*models.Referral, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	ref, ok := s.referrals[refereeID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	c := *ref
	return &c, nil
}

func (r *ReferralRepository) Qualify(_ context.Context, refereeID string, reward int64) (*models.Referral, bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	ref, ok := s.referrals[refereeID]
	if !ok {
		return nil, false, apperrors.ErrNotFound
	}
	if ref.Status == models.ReferralStatusQualified {
		c := *ref
		return &c, false, nil
	}

	now := time.Now().UTC()
	ref.Status = models.ReferralStatusQualified
	ref.RewardCoins = reward
	ref.QualifiedAt = &now

	w, ok := s.wallets[ref.ReferrerID]
	if !ok {
		w = &models.Wallet{ID: uuid.New().String(), UserID: ref.ReferrerID, Currency: s.walletCurrency, CreatedAt: now}
		s.wallets[ref.ReferrerID] = w
	}
	w.Balance += reward
	w.UpdatedAt = now

	c := *ref
	return &c, true, nil
}
