package dtos

import (
	"encoding/json"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
	"strings"
	"time"
)

// PaymentDTO is the body of a deposit or withdrawal request. Amount is accepted both as a JSON
// string and as a number and is copied into Amount by the handler.
type PaymentDTO struct {
	Amount      string          `json:"-"`
	RawAmount   json.RawMessage `json:"amount"`
	Currency    string          `json:"currency"`
	Provider    string          `json:"provider"`
	Destination string          `json:"destination,omitempty"`
}

// ParseAmount copies RawAmount into Amount.
func (d *PaymentDTO) ParseAmount() bool {
	raw := strings.TrimSpace(string(d.RawAmount))
	if raw == "" || raw == "null" {
		return false
	}
	var s string
	if err := json.Unmarshal(d.RawAmount, &s); err == nil {
		d.Amount = strings.TrimSpace(s)
		return d.Amount != ""
	}
	var n json.Number
	if err := json.Unmarshal(d.RawAmount, &n); err != nil {
		return false
	}
	d.Amount = n.String()
	return true
}

type PaymentResponse struct {
	TransactionID     string        `json:"transactionId"`
	CheckoutURL       string        `json:"checkoutUrl,omitempty"`
	ProviderReference string        `json:"providerReference"`
	Status            models.Status `json:"status"`
	CoinAmount        int64         `json:"coinAmount,omitempty"`
	Balance           *int64        `json:"balance,omitempty"`
}

type StatusResponse struct {
	TransactionID  string        `json:"transactionId"`
	Status         models.Status `json:"status"`
	ProviderStatus models.Status `json:"providerStatus,omitempty"`
	RawStatus      string        `json:"rawStatus,omitempty"`
}

type TransactionView struct {
	ID          string                 `json:"id"`
	Type        models.TransactionType `json:"type"`
	Provider    models.Provider        `json:"provider"`
	Amount      string                 `json:"amount"`
	Currency    string                 `json:"currency"`
	CoinAmount  int64                  `json:"coinAmount"`
	Status      models.Status          `json:"status"`
	CheckoutURL string                 `json:"checkoutUrl,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
	SettledAt   *time.Time             `json:"settledAt,omitempty"`
}

func NewTransactionView(tx *models.Transaction) TransactionView {
	return TransactionView{
		ID:          tx.ID,
		Type:        tx.Type,
		Provider:    tx.Provider,
		Amount:      tx.Amount.String(),
		Currency:    tx.Currency,
		CoinAmount:  tx.CoinAmount,
		Status:      tx.Status,
		CheckoutURL: tx.CheckoutURL,
		CreatedAt:   tx.CreatedAt,
		SettledAt:   tx.SettledAt,
	}
}

// WebhookResult is the acknowledgement returned to providers.
type WebhookResult struct {
	Received      bool          `json:"received"`
	Provider      string        `json:"provider"`
	TransactionID string        `json:"transactionId,omitempty"`
	Status        models.Status `json:"status,omitempty"`
	Applied       bool          `json:"applied"`
	Matched       bool          `json:"matched"`
	Duplicate     bool          `json:"duplicate,omitempty"`
}
