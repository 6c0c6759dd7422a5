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
	"time"
)

type ReferralRepositoryImpl struct {
	db             *pgxpool.Pool
	walletCurrency string
}

func NewReferralRepositoryImpl(db *pgxpool.Pool, walletCurrency string) repositories.ReferralRepository {
	return &ReferralRepositoryImpl{
		db:             db,
		walletCurrency: walletCurrency,
	}
}

const referralColumns = "referee_id, referrer_id, status, reward_coins, created_at, qualified_at"

func scanReferral(row scanner) (*models.Referral, error) {
	ref := &models.Referral{}
	if err := row.Scan(&ref.RefereeID, &ref.ReferrerID, &ref.Status, &ref.RewardCoins, &ref.CreatedAt, &ref.QualifiedAt); err != nil {
		return nil, err
	}
	return ref, nil
}

func (r *ReferralRepositoryImpl) Create(ctx context.Context, ref *models.Referral) error {
	if ref.CreatedAt.IsZero() {
		ref.CreatedAt = time.Now().UTC()
	}
	if ref.Status == "" {
		ref.Status = models.ReferralStatusPending
	}
	_, err := r.db.Exec(ctx,
		"INSERT INTO referrals ("+referralColumns+") VALUES ($1, $2, $3, $4, $5, $6)",
		ref.RefereeID, ref.ReferrerID, ref.Status, ref.RewardCoins, ref.CreatedAt, ref.QualifiedAt,
	)
	if isUniqueViolation(err) {
		return apperrors.NewTransactionDuplicateError()
	}
	return err
}

func (r *ReferralRepositoryImpl) GetByReferee(ctx context.Context, refereeID string) (*models.Referral, error) {
	ref, err := scanReferral(r.db.QueryRow(ctx, "SELECT "+referralColumns+" FROM referrals WHERE referee_id = $1", refereeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return ref, nil
}

const qualifyReferral = `
WITH qualified AS (
  UPDATE referrals
  SET status = 'qualified', reward_coins = $2, qualified_at = now()
  WHERE referee_id = $1 AND status = 'pending'
  RETURNING ` + referralColumns + `
),
credited AS (
  INSERT INTO wallets (id, user_id, balance, currency)
  SELECT $3, qualified.referrer_id, $2, $4 FROM qualified
  ON CONFLICT (user_id) DO UPDATE SET balance = wallets.balance + EXCLUDED.balance, updated_at = now()
  RETURNING user_id
)
SELECT ` + referralColumns + ` FROM qualified, credited`

// Qualify flips a pending referral and credits the referrer in one statement. The reward
// is paid at most once per referee.
func (r *ReferralRepositoryImpl) Qualify(ctx context.Context, refereeID string, reward int64) (*models.Referral, bool, error) {
	ref, err := scanReferral(r.db.QueryRow(ctx, qualifyReferral, refereeID, reward, uuid.New().String(), r.walletCurrency))
	if err == nil {
		return ref, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	ref, err = r.GetByReferee(ctx, refereeID)
	if err != nil {
		return nil, false, err
	}
	return ref, false, nil
}
