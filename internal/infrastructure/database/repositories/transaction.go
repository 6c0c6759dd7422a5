package repositories

import (
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
	"github.com/mufasadev/coin-settlement/internal/domain/repositories"
	apperrors "github.com/mufasadev/coin-settlement/internal/errors"
	"github.com/mufasadev/coin-settlement/pkg/log"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"time"
)

type TransactionRepositoryImpl struct {
	db             *pgxpool.Pool
	walletCurrency string
	logger         *zerolog.Logger
}

// NewTransactionRepositoryImpl creates new instance of TransactionRepositoryImpl.
func NewTransactionRepositoryImpl(db *pgxpool.Pool, walletCurrency string) repositories.TransactionRepository {
	l := log.GetLogger()
	return &TransactionRepositoryImpl{
		db:             db,
		walletCurrency: walletCurrency,
		logger:         &l,
	}
}

const transactionColumns = `id, gateway_invoice_id, gateway_transaction_id, correlation_id, user_id, wallet_id, type,
  amount, currency, coin_amount, status, status_reason, provider, checkout_url, metadata, created_at, updated_at, settled_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row scanner) (*models.Transaction, error) {
	tx := &models.Transaction{}
	err := row.Scan(
		&tx.ID, &tx.GatewayInvoiceID, &tx.GatewayTransactionID, &tx.CorrelationID, &tx.UserID, &tx.WalletID, &tx.Type,
		&tx.Amount, &tx.Currency, &tx.CoinAmount, &tx.Status, &tx.StatusReason, &tx.Provider, &tx.CheckoutURL,
		&tx.Metadata, &tx.CreatedAt, &tx.UpdatedAt, &tx.SettledAt,
	)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

const insertTransaction = `
INSERT INTO transactions (` + transactionColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

func transactionArgs(tx *models.Transaction) []interface{} {
	return []interface{}{
		tx.ID, tx.GatewayInvoiceID, tx.GatewayTransactionID, tx.CorrelationID, tx.UserID, tx.WalletID, tx.Type,
		tx.Amount, tx.Currency, tx.CoinAmount, tx.Status, tx.StatusReason, tx.Provider, tx.CheckoutURL,
		tx.Metadata, tx.CreatedAt, tx.UpdatedAt, tx.SettledAt,
	}
}

func stamp(tx *models.Transaction) {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	if tx.UpdatedAt.IsZero() {
		tx.UpdatedAt = tx.CreatedAt
	}
}

// Create inserts a transaction. A repeated id or correlation id is a TransactionDuplicateError.
func (r *TransactionRepositoryImpl) Create(ctx context.Context, tx *models.Transaction) error {
	stamp(tx)
	if _, err := r.db.Exec(ctx, insertTransaction, transactionArgs(tx)...); err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewTransactionDuplicateError()
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

const reserveWithdrawal = `
WITH reserved AS (
  UPDATE wallets
  SET balance = balance - $9, updated_at = now()
  WHERE user_id = $5 AND balance - $9 >= 0
  RETURNING id, balance
),
new_transaction AS (
  INSERT INTO transactions (id, gateway_invoice_id, gateway_transaction_id, correlation_id, user_id, wallet_id, type,
    amount, currency, coin_amount, status, status_reason, provider, checkout_url, metadata, created_at, updated_at)
  SELECT $1, $2, $3, $4, $5, reserved.id, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
  FROM reserved
  RETURNING id
),
new_request AS (
  INSERT INTO withdrawal_requests (id, transaction_id, user_id, amount, currency, coin_amount, destination, status, created_at, updated_at)
  SELECT $17, new_transaction.id, $5, $7, $8, $9, $18, $19, $15, $16
  FROM new_transaction
  RETURNING id
)
SELECT reserved.id, reserved.balance FROM reserved, new_request;`

// CreateWithdrawal reserves the coins and records the withdrawal in one statement. When the
// wallet cannot cover the reservation nothing is written.
func (r *TransactionRepositoryImpl) CreateWithdrawal(ctx context.Context, tx *models.Transaction, req *models.WithdrawalRequest) (int64, error) {
	stamp(tx)
	req.CreatedAt, req.UpdatedAt = tx.CreatedAt, tx.UpdatedAt

	for {
		var (
			walletID string
			balance  int64
		)
		err := r.inTx(ctx, pgx.RepeatableRead, func(dbTx pgx.Tx) error {
			return dbTx.QueryRow(ctx, reserveWithdrawal,
				tx.ID, tx.GatewayInvoiceID, tx.GatewayTransactionID, tx.CorrelationID, tx.UserID, tx.Type,
				tx.Amount, tx.Currency, tx.CoinAmount, tx.Status, tx.StatusReason, tx.Provider, tx.CheckoutURL,
				tx.Metadata, tx.CreatedAt, tx.UpdatedAt,
				req.ID, req.Destination, req.Status,
			).Scan(&walletID, &balance)
		})
		if err == nil {
			tx.WalletID = walletID
			return balance, nil
		}

		if isSerializationError(err) && ctx.Err() == nil {
			// retry transaction if serialization error occurs (SQLSTATE 40001)
			continue
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.NewInsufficientFundsError()
		}
		if isUniqueViolation(err) {
			return 0, apperrors.NewTransactionDuplicateError()
		}
		return 0, fmt.Errorf("transaction error: %w", err)
	}
}

func (r *TransactionRepositoryImpl) AttachGatewayRef(ctx context.Context, id, invoiceID, checkoutURL string, metadata models.Metadata) error {
	for {
		err := r.inTx(ctx, pgx.RepeatableRead, func(dbTx pgx.Tx) error {
			current, err := scanTransaction(dbTx.QueryRow(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = $1 FOR UPDATE", id))
			if err != nil {
				return err
			}
			if invoiceID == "" {
				invoiceID = current.GatewayInvoiceID
			}
			if checkoutURL == "" {
				checkoutURL = current.CheckoutURL
			}
			_, err = dbTx.Exec(ctx,
				"UPDATE transactions SET gateway_invoice_id = $2, checkout_url = $3, metadata = $4, updated_at = now() WHERE id = $1",
				id, invoiceID, checkoutURL, current.Metadata.Merge(metadata),
			)
			return err
		})
		if err == nil {
			return nil
		}
		if isSerializationError(err) && ctx.Err() == nil {
			continue
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("attach gateway ref: %w", err)
	}
}

// GetByID returns transaction by id.
func (r *TransactionRepositoryImpl) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	tx, err := scanTransaction(r.db.QueryRow(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return tx, nil
}

const findByCorrelation = `
SELECT ` + transactionColumns + `
FROM transactions
WHERE provider = $1
  AND (correlation_id = ANY($2) OR gateway_invoice_id = ANY($2) OR gateway_transaction_id = ANY($2))
ORDER BY created_at
LIMIT 1`

// FindByCorrelation returns nil without error when no transaction matches.
func (r *TransactionRepositoryImpl) FindByCorrelation(ctx context.Context, provider models.Provider, refs []string) (*models.Transaction, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	tx, err := scanTransaction(r.db.QueryRow(ctx, findByCorrelation, provider, refs))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return tx, nil
}

// ApplyTransition locks the row, checks the predecessor and commits status, wallet delta and
// withdrawal status together.
func (r *TransactionRepositoryImpl) ApplyTransition(ctx context.Context, tr *models.Transition) (*models.TransitionResult, error) {
	for {
		var result *models.TransitionResult
		err := r.inTx(ctx, pgx.RepeatableRead, func(dbTx pgx.Tx) error {
			var err error
			result, err = r.applyTransition(ctx, dbTx, tr)
			return err
		})
		if err == nil {
			return result, nil
		}

		if isSerializationError(err) && ctx.Err() == nil {
			// retry transaction if serialization error occurs (SQLSTATE 40001)
			r.logger.Debug().Str("transaction_id", tr.TransactionID).Msg("serialization conflict, retrying transition")
			continue
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("transaction error: %w", err)
	}
}

const updateTransition = `
UPDATE transactions
SET status = $2, status_reason = $3, gateway_transaction_id = $4, coin_amount = $5, metadata = $6, updated_at = $7, settled_at = $8
WHERE id = $1`

const upsertWalletBalance = `
INSERT INTO wallets (id, user_id, balance, currency)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE SET balance = wallets.balance + EXCLUDED.balance, updated_at = now()
RETURNING balance`

func (r *TransactionRepositoryImpl) applyTransition(ctx context.Context, dbTx pgx.Tx, tr *models.Transition) (*models.TransitionResult, error) {
	current, err := scanTransaction(dbTx.QueryRow(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = $1 FOR UPDATE", tr.TransactionID))
	if err != nil {
		return nil, err
	}

	result := &models.TransitionResult{Previous: current.Status, Transaction: current}
	at := tr.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	if current.Status == tr.To {
		if current.Status.IsTerminal() {
			return result, nil
		}
		current.Metadata = current.Metadata.Merge(tr.Metadata)
		current.UpdatedAt = at
		_, err = dbTx.Exec(ctx, "UPDATE transactions SET metadata = $2, updated_at = $3 WHERE id = $1", current.ID, current.Metadata, at)
		return result, err
	}

	if !models.CanTransition(current.Status, tr.To) {
		return result, nil
	}

	current.Status = tr.To
	current.StatusReason = tr.Reason
	if tr.GatewayTransactionID != "" {
		current.GatewayTransactionID = tr.GatewayTransactionID
	}
	if tr.CoinAmount != 0 {
		current.CoinAmount = tr.CoinAmount
	}
	current.Metadata = current.Metadata.Merge(tr.Metadata)
	current.UpdatedAt = at
	if tr.To.IsTerminal() && current.SettledAt == nil {
		settled := at
		current.SettledAt = &settled
	}

	_, err = dbTx.Exec(ctx, updateTransition,
		current.ID, current.Status, current.StatusReason, current.GatewayTransactionID, current.CoinAmount,
		current.Metadata, current.UpdatedAt, current.SettledAt,
	)
	if err != nil {
		return nil, err
	}

	walletID := current.WalletID
	if walletID == "" {
		walletID = uuid.New().String()
	}
	err = dbTx.QueryRow(ctx, upsertWalletBalance, walletID, current.UserID, tr.WalletDelta, r.walletCurrency).Scan(&result.Balance)
	if err != nil {
		return nil, err
	}

	if tr.WithdrawalStatus != "" && current.IsWithdrawal() {
		_, err = dbTx.Exec(ctx,
			"UPDATE withdrawal_requests SET status = $2, reason = $3, updated_at = $4 WHERE transaction_id = $1",
			current.ID, tr.WithdrawalStatus, tr.Reason, at,
		)
		if err != nil {
			return nil, err
		}
	}

	result.Applied = true
	return result, nil
}

func (r *TransactionRepositoryImpl) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*models.Transaction, error) {
	return r.list(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE status = 'pending' AND created_at < $1 ORDER BY created_at LIMIT $2",
		createdBefore, limit,
	)
}

func (r *TransactionRepositoryImpl) ListByUser(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	return r.list(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2",
		userID, limit,
	)
}

func (r *TransactionRepositoryImpl) list(ctx context.Context, query string, args ...interface{}) ([]*models.Transaction, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*models.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *TransactionRepositoryImpl) CompletedDepositTotals(ctx context.Context, userID string) (map[string]decimal.Decimal, error) {
	rows, err := r.db.Query(ctx, `
SELECT upper(currency), SUM(amount) FROM transactions
WHERE user_id = $1 AND type = 'deposit' AND status = 'completed'
GROUP BY upper(currency)`, userID)
	if err != nil {
		return nil, fmt.Errorf("sum completed deposits: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]decimal.Decimal)
	for rows.Next() {
		var currency string
		var amount decimal.Decimal
		if err = rows.Scan(&currency, &amount); err != nil {
			return nil, err
		}
		totals[currency] = amount
	}
	return totals, rows.Err()
}

func (r *TransactionRepositoryImpl) GetWithdrawalByTransactionID(ctx context.Context, transactionID string) (*models.WithdrawalRequest, error) {
	w := &models.WithdrawalRequest{}
	err := r.db.QueryRow(ctx, `
SELECT id, transaction_id, user_id, amount, currency, coin_amount, destination, status, reason, created_at, updated_at
FROM withdrawal_requests WHERE transaction_id = $1`, transactionID,
	).Scan(&w.ID, &w.TransactionID, &w.UserID, &w.Amount, &w.Currency, &w.CoinAmount, &w.Destination, &w.Status, &w.Reason, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return w, nil
}

// inTx runs fn in a transaction at the given isolation level, committing when fn succeeds.
func (r *TransactionRepositoryImpl) inTx(ctx context.Context, level pgx.TxIsoLevel, fn func(pgx.Tx) error) error {
	return runInTx(ctx, r.db, level, fn)
}

func runInTx(ctx context.Context, db *pgxpool.Pool, level pgx.TxIsoLevel, fn func(pgx.Tx) error) error {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{IsoLevel: level})
	if err != nil {
		return err
	}

	if err = fn(tx); err != nil {
		tx.Rollback(ctx)
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		tx.Rollback(ctx)
		return err
	}
	return nil
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.SQLState() == repositories.SerializationError
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.SQLState() == repositories.UniqueViolationError
}
