// Package memory is an in-process ledger used for local runs and tests.
package memory

import (
	"github.com/mufasadev/coin-settlement/internal/domain/models"
	"github.com/mufasadev/coin-settlement/internal/domain/repositories"
	"github.com/mufasadev/coin-settlement/pkg/keymutex"
	"sync"
)

var (
	_ repositories.TransactionRepository = (*TransactionRepository)(nil)
	_ repositories.WalletRepository      = (*WalletRepository)(nil)
	_ repositories.ReferralRepository    = (*ReferralRepository)(nil)
)

// Store holds every record behind one mutex. Transitions additionally take a per-transaction
// lock so the check-and-set of one transaction never interleaves with another attempt on it.
type Store struct {
	mu             sync.RWMutex
	locks          *keymutex.KeyMutex
	walletCurrency string

	transactions map[string]*models.Transaction
	withdrawals  map[string]*models.WithdrawalRequest
	wallets      map[string]*models.Wallet
	referrals    map[string]*models.Referral
}

func NewStore(walletCurrency string) *Store {
	return &Store{
		locks:          keymutex.New(),
		walletCurrency: walletCurrency,
		transactions:   make(map[string]*models.Transaction),
		withdrawals:    make(map[string]*models.WithdrawalRequest),
		wallets:        make(map[string]*models.Wallet),
		referrals:      make(map[string]*models.Referral),
	}
}

func (s *Store) Transactions() *TransactionRepository {
	return &TransactionRepository{store: s}
}

func (s *Store) Wallets() *WalletRepository {
	return &WalletRepository{store: s}
}

func (s *Store) Referrals() *ReferralRepository {
	return &ReferralRepository{store: s}
}

func copyTransaction(tx *models.Transaction) *models.Transaction {
	c := *tx
	if tx.SettledAt != nil {
		at := *tx.SettledAt
		c.SettledAt = &at
	}
	return &c
}
