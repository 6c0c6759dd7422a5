// Package gateways holds one adapter per payment provider behind the Gateway interface.
package gateways

import (
	"context"
	"errors"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
	"github.com/shopspring/decimal"
)

// ErrUnsupported is returned by adapters for operations their provider does not offer.
var ErrUnsupported = errors.New("operation not supported by provider")

// Gateway is the uniform view of a payment provider.
type Gateway interface {
	Name() models.Provider
	// SignatureHeader is the request header carrying the webhook signature.
	SignatureHeader() string
	CreateInvoice(ctx context.Context, req *InvoiceRequest) (*InvoiceResponse, error)
	CreateWithdrawal(ctx context.Context, req *WithdrawalRequest) (*InvoiceResponse, error)
	GetStatus(ctx context.Context, providerRef string) (*StatusResponse, error)
	VerifySignature(payload []byte, signature string) bool
	ParseWebhook(payload []byte) (*Event, error)
}

// TransactionStatusGetter is implemented by adapters whose status endpoint depends on what the
// transaction is rather than on a single reference.
type TransactionStatusGetter interface {
	TransactionStatus(ctx context.Context, tx *models.Transaction) (*StatusResponse, error)
}

type InvoiceRequest struct {
	// OrderID is our correlation id, echoed back by the provider in webhooks.
	OrderID     string
	UserID      string
	Amount      decimal.Decimal
	Currency    string
	Description string
}

type WithdrawalRequest struct {
	OrderID     string
	UserID      string
	Amount      decimal.Decimal
	Currency    string
	Destination string
}

type InvoiceResponse struct {
	ProviderRef string
	CheckoutURL string
	Status      models.Status
	Metadata    models.Metadata
}

type StatusResponse struct {
	ProviderRef string
	Status      models.Status
	RawStatus   string
}

// Event is a verified webhook normalised to our vocabulary. Status is empty when the
// provider reported something we do not act on.
type Event struct {
	ID                   string
	CorrelationIDs       []string
	GatewayTransactionID string
	Status               models.Status
	RawStatus            string
	Amount               decimal.Decimal
	Currency             string
	Metadata             models.Metadata
}

// refs drops empty references and duplicates, keeping order.
func refs(values ...string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
