package mongostore

import (
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
	apperrors "github.com/mufasadev/coin-settlement/internal/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"strings"
	"time"
)

type TransactionRepository struct {
	store *Store
}

func (r *TransactionRepository) transactions() *mongo.Collection {
	return r.store.collection(transactionsCollection)
}

func (r *TransactionRepository) withdrawals() *mongo.Collection {
	return r.store.collection(withdrawalsCollection)
}

func stamp(tx *models.Transaction) {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	if tx.UpdatedAt.IsZero() {
		tx.UpdatedAt = tx.CreatedAt
	}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	stamp(tx)
	if _, err := r.transactions().InsertOne(ctx, tx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.NewTransactionDuplicateError()
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// CreateWithdrawal reserves the coins and stores the transaction and its request in one
// session transaction.
func (r *TransactionRepository) CreateWithdrawal(ctx context.Context, tx *models.Transaction, req *models.WithdrawalRequest) (int64, error) {
	stamp(tx)
	req.CreatedAt, req.UpdatedAt = tx.CreatedAt, tx.UpdatedAt

	var balance int64
	err := r.store.withTransaction(ctx, func(sc mongo.SessionContext) error {
		var wallet models.Wallet
		err := r.store.collection(walletsCollection).FindOneAndUpdate(sc,
			bson.M{"user_id": tx.UserID, "balance": bson.M{"$gte": tx.CoinAmount}},
			bson.M{"$inc": bson.M{"balance": -tx.CoinAmount}, "$set": bson.M{"updated_at": tx.CreatedAt}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&wallet)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return apperrors.NewInsufficientFundsError()
			}
			return err
		}

		tx.WalletID = wallet.ID
		if _, err = r.transactions().InsertOne(sc, tx); err != nil {
			return err
		}
		if _, err = r.withdrawals().InsertOne(sc, req); err != nil {
			return err
		}
		balance = wallet.Balance
		return nil
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return 0, apperrors.NewTransactionDuplicateError()
		}
		return 0, err
	}
	return balance, nil
}

func (r *TransactionRepository) AttachGatewayRef(ctx context.Context, id, invoiceID, checkoutURL string, metadata models.Metadata) error {
	return r.store.withTransaction(ctx, func(sc mongo.SessionContext) error {
		current, err := r.get(sc, id)
		if err != nil {
			return err
		}

		set := bson.M{
			"metadata":   current.Metadata.Merge(metadata),
			"updated_at": time.Now().UTC(),
		}
		if invoiceID != "" {
			set["gateway_invoice_id"] = invoiceID
		}
		if checkoutURL != "" {
			set["checkout_url"] = checkoutURL
		}
		_, err = r.transactions().UpdateByID(sc, id, bson.M{"$set": set})
		return err
	})
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	return r.get(ctx, id)
}

func (r *TransactionRepository) get(ctx context.Context, id string) (*models.Transaction, error) {
	tx := &models.Transaction{}
	if err := r.transactions().FindOne(ctx, bson.M{"_id": id}).Decode(tx); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return tx, nil
}

func (r *TransactionRepository) FindByCorrelation(ctx context.Context, provider models.Provider, refs []string) (*models.Transaction, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	filter := bson.M{
		"provider": provider,
		"$or": bson.A{
			bson.M{"correlation_id": bson.M{"$in": refs}},
			bson.M{"gateway_invoice_id": bson.M{"$in": refs}},
			bson.M{"gateway_transaction_id": bson.M{"$in": refs}},
		},
	}

	tx := &models.Transaction{}
	err := r.transactions().FindOne(ctx, filter, options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}})).Decode(tx)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return tx, nil
}

// ApplyTransition updates the transaction only while it still holds the status it was read
// with, and moves the wallet and withdrawal request in the same session transaction.
func (r *TransactionRepository) ApplyTransition(ctx context.Context, tr *models.Transition) (*models.TransitionResult, error) {
	var result *models.TransitionResult
	err := r.store.withTransaction(ctx, func(sc mongo.SessionContext) error {
		var err error
		result, err = r.applyTransition(sc, tr)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *TransactionRepository) applyTransition(sc mongo.SessionContext, tr *models.Transition) (*models.TransitionResult, error) {
	current, err := r.get(sc, tr.TransactionID)
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
		_, err = r.transactions().UpdateByID(sc, current.ID, bson.M{"$set": bson.M{"metadata": current.Metadata, "updated_at": at}})
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
	set := bson.M{
		"status":                 current.Status,
		"status_reason":          current.StatusReason,
		"gateway_transaction_id": current.GatewayTransactionID,
		"coin_amount":            current.CoinAmount,
		"metadata":               current.Metadata,
		"updated_at":             at,
	}
	if tr.To.IsTerminal() && current.SettledAt == nil {
		settled := at
		current.SettledAt = &settled
		set["settled_at"] = settled
	}

	res, err := r.transactions().UpdateOne(sc, bson.M{"_id": current.ID, "status": result.Previous}, bson.M{"$set": set})
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		fresh, err := r.get(sc, current.ID)
		if err != nil {
			return nil, err
		}
		return &models.TransitionResult{Previous: fresh.Status, Transaction: fresh}, nil
	}

	walletID := current.WalletID
	if walletID == "" {
		walletID = uuid.New().String()
	}
	if result.Balance, err = r.store.creditWallet(sc, current.UserID, walletID, tr.WalletDelta, at); err != nil {
		return nil, err
	}

	if tr.WithdrawalStatus != "" && current.IsWithdrawal() {
		_, err = r.withdrawals().UpdateOne(sc,
			bson.M{"transaction_id": current.ID},
			bson.M{"$set": bson.M{"status": tr.WithdrawalStatus, "reason": tr.Reason, "updated_at": at}},
		)
		if err != nil {
			return nil, err
		}
	}

	result.Applied = true
	return result, nil
}

func (r *TransactionRepository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*models.Transaction, error) {
	return r.list(ctx,
		bson.M{"status": models.StatusPending, "created_at": bson.M{"$lt": createdBefore}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}).SetLimit(int64(limit)),
	)
}

func (r *TransactionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	return r.list(ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(int64(limit)),
	)
}

func (r *TransactionRepository) list(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.Transaction, error) {
	cursor, err := r.transactions().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := make([]*models.Transaction, 0)
	if err = cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CompletedDepositTotals adds up amounts client side since they are stored as decimal strings.
func (r *TransactionRepository) CompletedDepositTotals(ctx context.Context, userID string) (map[string]decimal.Decimal, error) {
	cursor, err := r.transactions().Find(ctx,
		bson.M{"user_id": userID, "type": models.TransactionTypeDeposit, "status": models.StatusCompleted},
		options.Find().SetProjection(bson.M{"amount": 1, "currency": 1}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	totals := make(map[string]decimal.Decimal)
	for cursor.Next(ctx) {
		var row struct {
			Amount   decimal.Decimal `bson:"amount"`
			Currency string          `bson:"currency"`
		}
		if err = cursor.Decode(&row); err != nil {
			return nil, err
		}
		currency := strings.ToUpper(row.Currency)
		totals[currency] = totals[currency].Add(row.Amount)
	}
	return totals, cursor.Err()
}

func (r *TransactionRepository) GetWithdrawalByTransactionID(ctx context.Context, transactionID string) (*models.WithdrawalRequest, error) {
	w := &models.WithdrawalRequest{}
	if err := r.withdrawals().FindOne(ctx, bson.M{"transaction_id": transactionID}).Decode(w); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return w, nil
}
