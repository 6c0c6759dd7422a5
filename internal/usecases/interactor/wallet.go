package interactor

import (
	"context"
	"errors"
	"github.com/mufasadev/coin-settlement/internal/domain/repositories"
	apperrors "github.com/mufasadev/coin-settlement/internal/errors"
	"github.com/mufasadev/coin-settlement/internal/usecases/dtos"
	"github.com/mufasadev/coin-settlement/pkg/log"
	"github.com/rs/zerolog"
)

const defaultHistoryLimit = 50

type WalletInteractor struct {
	walletRepository      repositories.WalletRepository
	transactionRepository repositories.TransactionRepository
	walletCurrency        string
	logger                *zerolog.Logger
}

func NewWalletInteractor(walletRepository repositories.WalletRepository, transactionRepository repositories.TransactionRepository, walletCurrency string) *WalletInteractor {
	l := log.GetLogger()
	return &WalletInteractor{
		walletRepository:      walletRepository,
		transactionRepository: transactionRepository,
		walletCurrency:        walletCurrency,
		logger:                &l,
	}
}

// GetBalance returns the wallet of userID. A user without a wallet has a zero balance.
func (i *WalletInteractor) GetBalance(ctx context.Context, userID string) (*dtos.BalanceResponse, error) {
	wallet, err := i.walletRepository.GetByUserID(ctx, userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return &dtos.BalanceResponse{UserID: userID, Currency: i.walletCurrency}, nil
	}
	if err != nil {
		return nil, err
	}
	return &dtos.BalanceResponse{
		UserID:   userID,
		Balance:  wallet.Balance,
		Currency: wallet.Currency,
		VIPTier:  wallet.VIPTier,
	}, nil
}

// ListTransactions returns the newest transactions of userID first.
func (i *WalletInteractor) ListTransactions(ctx context.Context, userID string, limit int) ([]dtos.TransactionView, error) {
	if limit <= 0 || limit > 500 {
		limit = defaultHistoryLimit
	}
	txs, err := i.transactionRepository.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]dtos.TransactionView, 0, len(txs))
	for _, tx := range txs {
		out = append(out, dtos.NewTransactionView(tx))
	}
	return out, nil
}
