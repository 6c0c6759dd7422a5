package repositories

import (
	"context"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
	"github.com/shopspring/decimal"
	"time"
)

const (
	SerializationError   = "40001"
	UniqueViolationError = "23505"
)

// TransactionRepository is the ledger: transactions and their withdrawal requests.
type TransactionRepository interface {
	Create(ctx context.Context, transaction *models.Transaction) error
	// CreateWithdrawal persists a withdrawal transaction and its request, reserving
	// transaction.CoinAmount from the owner's wallet in the same unit of work.
	CreateWithdrawal(ctx context.Context, transaction *models.Transaction, request *models.WithdrawalRequest) (int64, error)
	// AttachGatewayRef records the provider references once a gateway call succeeded.
	AttachGatewayRef(ctx context.Context, id, invoiceID, checkoutURL string, metadata models.Metadata) error
	GetByID(ctx context.Context, id string) (*models.Transaction, error)
	// FindByCorrelation returns the transaction of provider matching any of refs,
	// or nil when none matches.
	FindByCorrelation(ctx context.Context, provider models.Provider, refs []string) (*models.Transaction, error)
	// ApplyTransition is the atomic check-and-set of the state machine. A transition whose
	// predecessor check fails is returned with Applied=false and no error.
	ApplyTransition(ctx context.Context, transition *models.Transition) (*models.TransitionResult, error)
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*models.Transaction, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.Transaction, error)
	// CompletedDepositTotals sums the completed deposit amounts of userID per currency.
	CompletedDepositTotals(ctx context.Context, userID string) (map[string]decimal.Decimal, error)
	GetWithdrawalByTransactionID(ctx context.Context, transactionID string) (*models.WithdrawalRequest, error)
}
