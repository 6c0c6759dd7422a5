package memory

import (
	"context"
	"github.com/google/uuid"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
	apperrors "github.com/mufasadev/coin-settlement/internal/errors"
	"github.com/shopspring/decimal"
	"sort"
	"strings"
	"time"
)

type TransactionRepository struct {
	store *Store
}

func (r *TransactionRepository) Create(_ context.Context, tx *models.Transaction) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertTransaction(tx)
}

func (s *Store) insertTransaction(tx *models.Transaction) error {
	if _, ok := s.transactions[tx.ID]; ok {
		return apperrors.NewTransactionDuplicateError()
	}
	for _, existing := range s.transactions {
		if existing.Provider == tx.Provider && existing.CorrelationID == tx.CorrelationID {
			return apperrors.NewTransactionDuplicateError()
		}
	}
	now := time.Now().UTC()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	if tx.UpdatedAt.IsZero() {
		tx.UpdatedAt = tx.CreatedAt
	}
	s.transactions[tx.ID] = copyTransaction(tx)
	return nil
}

func (r *TransactionRepository) CreateWithdrawal(_ context.Context, tx *models.Transaction, req *models.WithdrawalRequest) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	wallet, ok := s.wallets[tx.UserID]
	if !ok || wallet.Balance < tx.CoinAmount {
		return 0, apperrors.NewInsufficientFundsError()
	}
	if err := s.insertTransaction(tx); err != nil {
		return 0, err
	}

	wallet.Balance -= tx.CoinAmount
	wallet.UpdatedAt = time.Now().UTC()

	w := *req
	if w.CreatedAt.IsZero() {
		w.CreatedAt = tx.CreatedAt
		w.UpdatedAt = tx.CreatedAt
	}
	s.withdrawals[tx.ID] = &w
	return wallet.Balance, nil
}

func (r *TransactionRepository) AttachGatewayRef(_ context.Context, id, invoiceID, checkoutURL string, metadata models.Metadata) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if invoiceID != "" {
		tx.GatewayInvoiceID = invoiceID
	}
	if checkoutURL != "" {
		tx.CheckoutURL = checkoutURL
	}
	tx.Metadata = tx.Metadata.Merge(metadata)
	tx.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *TransactionRepository) GetByID(_ context.Context, id string) (*models.Transaction, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return copyTransaction(tx), nil
}

func (r *TransactionRepository) FindByCorrelation(_ context.Context, provider models.Provider, refs []string) (*models.Transaction, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ref := range refs {
		for _, tx := range s.transactions {
			if tx.Provider == provider && tx.Matches(ref) {
				return copyTransaction(tx), nil
			}
		}
	}
	return nil, nil
}

func (r *TransactionRepository) ApplyTransition(_ context.Context, tr *models.Transition) (*models.TransitionResult, error) {
	s := r.store
	unlock := s.locks.Lock(tr.TransactionID)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[tr.TransactionID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	result := &models.TransitionResult{Previous: tx.Status}

	at := tr.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	if tx.Status == tr.To {
		if !tx.Status.IsTerminal() {
			tx.Metadata = tx.Metadata.Merge(tr.Metadata)
			tx.UpdatedAt = at
		}
		result.Transaction = copyTransaction(tx)
		return result, nil
	}

	if !models.CanTransition(tx.Status, tr.To) {
		result.Transaction = copyTransaction(tx)
		return result, nil
	}

	wallet, ok := s.wallets[tx.UserID]
	if !ok {
		walletID := tx.WalletID
		if walletID == "" {
			walletID = uuid.New().String()
		}
		wallet = &models.Wallet{
			ID:        walletID,
			UserID:    tx.UserID,
			Currency:  s.walletCurrency,
			CreatedAt: at,
		}
		s.wallets[tx.UserID] = wallet
	}
	if tr.WalletDelta != 0 {
		wallet.Balance += tr.WalletDelta
		wallet.UpdatedAt = at
	}

	tx.Status = tr.To
	tx.StatusReason = tr.Reason
	if tr.GatewayTransactionID != "" {
		tx.GatewayTransactionID = tr.GatewayTransactionID
	}
	if tr.CoinAmount != 0 {
		tx.CoinAmount = tr.CoinAmount
	}
	tx.Metadata = tx.Metadata.Merge(tr.Metadata)
	tx.UpdatedAt = at
	if tr.To.IsTerminal() && tx.SettledAt == nil {
		settled := at
		tx.SettledAt = &settled
	}

	if w, ok := s.withdrawals[tx.ID]; ok && tr.WithdrawalStatus != "" {
		w.Status = tr.WithdrawalStatus
		w.Reason = tr.Reason
		w.UpdatedAt = at
	}

	result.Transaction = copyTransaction(tx)
	result.Applied = true
	result.Balance = wallet.Balance
	return result, nil
}

func (r *TransactionRepository) ListStalePending(_ context.Context, createdBefore time.Time, limit int) ([]*models.Transaction, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Transaction, 0)
	for _, tx := range s.transactions {
		if tx.Status == models.StatusPending && tx.CreatedAt.Before(createdBefore) {
			out = append(out, copyTransaction(tx))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *TransactionRepository) ListByUser(_ context.Context, userID string, limit int) ([]*models.Transaction, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Transaction, 0)
	for _, tx := range s.transactions {
		if tx.UserID == userID {
			out = append(out, copyTransaction(tx))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *TransactionRepository) CompletedDepositTotals(_ context.Context, userID string) (map[string]decimal.Decimal, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make(map[string]decimal.Decimal)
	for _, tx := range s.transactions {
		if tx.UserID == userID && tx.Type == models.TransactionTypeDeposit && tx.Status == models.StatusCompleted {
			currency := strings.ToUpper(tx.Currency)
			totals[currency] = totals[currency].Add(tx.Amount)
		}
	}
	return totals, nil
}

func (r *TransactionRepository) GetWithdrawalByTransactionID(_ context.Context, transactionID string) (*models.WithdrawalRequest, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.withdrawals[transactionID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	c := *w
	return &c, nil
}
