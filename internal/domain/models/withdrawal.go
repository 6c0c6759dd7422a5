package models

import (
	"github.com/shopspring/decimal"
	"time"
)

// WithdrawalRequest is the user-facing record of a redemption, linked 1:1 to its Transaction.
type WithdrawalRequest struct {
	ID            string           `json:"id" bson:"_id"`
	TransactionID string           `json:"transactionId" bson:"transaction_id"`
	UserID        string           `json:"userId" bson:"user_id"`
	Amount        decimal.Decimal  `json:"amount" bson:"amount"`
	Currency      string           `json:"currency" bson:"currency"`
	CoinAmount    int64            `json:"coinAmount" bson:"coin_amount"`
	Destination   string           `json:"destination" bson:"destination"`
	Status        WithdrawalStatus `json:"status" bson:"status"`
	Reason        string           `json:"reason,omitempty" bson:"reason,omitempty"`
	CreatedAt     time.Time        `json:"createdAt" bson:"created_at"`
	UpdatedAt     time.Time        `json:"updatedAt" bson:"updated_at"`
}
