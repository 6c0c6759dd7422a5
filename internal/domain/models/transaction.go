package models

import (
	"github.com/shopspring/decimal"
	"time"
)

type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
)

// Provider names one of the external money-movement gateways.
type Provider string

const (
	ProviderNowPayments  Provider = "nowpayments"
	ProviderCoinPayments Provider = "coinpayments"
	ProviderStripe       Provider = "stripe"
	ProviderPayGate      Provider = "paygate"
	ProviderLinkPay      Provider = "linkpay"
	ProviderCashBox      Provider = "cashbox"
)

var Providers = []Provider{
	ProviderNowPayments,
	ProviderCoinPayments,
	ProviderStripe,
	ProviderPayGate,
	ProviderLinkPay,
	ProviderCashBox,
}

// ParseProvider returns the provider for name, case-sensitive.
func ParseProvider(name string) (Provider, bool) {
	for _, p := range Providers {
		if string(p) == name {
			return p, true
		}
	}
	return "", false
}

type Transaction struct {
	ID                   string          `db:"id" json:"id" bson:"_id"`
	GatewayInvoiceID     string          `db:"gateway_invoice_id" json:"gatewayInvoiceId" bson:"gateway_invoice_id"`
	GatewayTransactionID string          `db:"gateway_transaction_id" json:"gatewayTransactionId,omitempty" bson:"gateway_transaction_id"`
	CorrelationID        string          `db:"correlation_id" json:"correlationId" bson:"correlation_id"`
	UserID               string          `db:"user_id" json:"userId" bson:"user_id"`
	WalletID             string          `db:"wallet_id" json:"walletId" bson:"wallet_id"`
	Type                 TransactionType `db:"type" json:"type" bson:"type"`
	Amount               decimal.Decimal `db:"amount" json:"amount" bson:"amount"`
	Currency             string          `db:"currency" json:"currency" bson:"currency"`
	CoinAmount           int64           `db:"coin_amount" json:"coinAmount" bson:"coin_amount"`
	Status               Status          `db:"status" json:"status" bson:"status"`
	StatusReason         string          `db:"status_reason" json:"statusReason,omitempty" bson:"status_reason"`
	Provider             Provider        `db:"provider" json:"provider" bson:"provider"`
	CheckoutURL          string          `db:"checkout_url" json:"checkoutUrl,omitempty" bson:"checkout_url"`
	Metadata             Metadata        `db:"metadata" json:"metadata" bson:"metadata"`
	CreatedAt            time.Time       `db:"created_at" json:"createdAt" bson:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updatedAt" bson:"updated_at"`
	SettledAt            *time.Time      `db:"settled_at" json:"settledAt,omitempty" bson:"settled_at,omitempty"`
}

// IsWithdrawal reports whether the transaction reserves coins instead of crediting them.
func (t *Transaction) IsWithdrawal() bool {
	return t.Type == TransactionTypeWithdrawal
}

// Matches reports whether ref is one of the provider references of the transaction.
func (t *Transaction) Matches(ref string) bool {
	if ref == "" {
		return false
	}
	return ref == t.GatewayInvoiceID || ref == t.GatewayTransactionID || ref == t.CorrelationID
}

// Transition is a requested move of a transaction to a new status together with the effects
// that must commit atomically with it.
type Transition struct {
	TransactionID        string
	To                   Status
	Reason               string
	GatewayTransactionID string
	Metadata             Metadata
	// WalletDelta is applied to the owner's wallet only when the status actually changes.
	WalletDelta int64
	// CoinAmount, when non-zero, replaces the recorded coin amount (deposit credit + bonus).
	CoinAmount       int64
	WithdrawalStatus WithdrawalStatus
	At               time.Time
}

// TransitionResult describes what the store did with a Transition.
type TransitionResult struct {
	Transaction *Transaction
	Previous    Status
	// Applied is true when the status changed and the effects were committed.
	Applied bool
	// Balance is the owner's balance after a committed wallet delta.
	Balance int64
}
