package gateways

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const PayGateSignatureHeader = "X-Paygate-Signature"

type PayGateConfig struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	CallbackURL   string
	ReturnURL     string
	Timeout       time.Duration
}

type PayGate struct {
	cfg    PayGateConfig
	client *client
}

func NewPayGate(cfg PayGateConfig) *PayGate {
	return &PayGate{cfg: cfg, client: newClient(models.ProviderPayGate, cfg.BaseURL, cfg.Timeout)}
}

func (g *PayGate) Name() models.Provider {
	return models.ProviderPayGate
}

func (g *PayGate) SignatureHeader() string {
	return PayGateSignatureHeader
}

func (g *PayGate) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + g.cfg.APIKey}
}

type payGateOrder struct {
	TransactionID string `json:"transaction_id"`
	OrderNumber   string `json:"order_number"`
	PaymentURL    string `json:"payment_url"`
	Status        string `json:"status"`
}

func (g *PayGate) CreateInvoice(ctx context.Context, in *InvoiceRequest) (*InvoiceResponse, error) {
	req, err := jsonRequest("create invoice", http.MethodPost, "/orders", map[string]interface{}{
		"order_number": in.OrderID,
		"amount":       in.Amount.StringFixed(2),
		"currency":     strings.ToUpper(in.Currency),
		"description":  in.Description,
		"callback_url": g.cfg.CallbackURL,
		"return_url":   g.cfg.ReturnURL,
	}, g.headers())
	if err != nil {
		return nil, err
	}

	var out payGateOrder
	if err = g.client.do(ctx, req, &out); err != nil {
		return nil, err
	}

	status, ok := payGateStatus(out.Status)
	if !ok {
		status = models.StatusPending
	}
	return &InvoiceResponse{
		ProviderRef: out.TransactionID,
		CheckoutURL: out.PaymentURL,
		Status:      status,
		Metadata: models.Metadata{PayGate: &models.PayGateMeta{
			OrderNumber:   in.OrderID,
			TransactionID: out.TransactionID,
			Status:        out.Status,
		}},
	}, nil
}

func (g *PayGate) CreateWithdrawal(ctx context.Context, in *WithdrawalRequest) (*InvoiceResponse, error) {
	req, err := jsonRequest("create withdrawal", http.MethodPost, "/payouts", map[string]interface{}{
		"order_number": in.OrderID,
		"amount":       in.Amount.StringFixed(2),
		"currency":     strings.ToUpper(in.Currency),
		"destination":  in.Destination,
		"callback_url": g.cfg.CallbackURL,
	}, g.headers())
	if err != nil {
		return nil, err
	}

	var out payGateOrder
	if err = g.client.do(ctx, req, &out); err != nil {
		return nil, err
	}

	status, ok := payGateStatus(out.Status)
	if !ok {
		status = models.StatusPending
	}
	return &InvoiceResponse{
		ProviderRef: out.TransactionID,
		Status:      status,
		Metadata: models.Metadata{PayGate: &models.PayGateMeta{
			OrderNumber:   in.OrderID,
			TransactionID: out.TransactionID,
			Status:        out.Status,
		}},
	}, nil
}

func (g *PayGate) GetStatus(ctx context.Context, providerRef string) (*StatusResponse, error) {
	req, err := jsonRequest("get status", http.MethodGet, "/orders/"+url.PathEscape(providerRef), nil, g.headers())
	if err != nil {
		return nil, err
	}

	var out payGateOrder
	if err = g.client.do(ctx, req, &out); err != nil {
		return nil, err
	}

	status, _ := payGateStatus(out.Status)
	return &StatusResponse{ProviderRef: providerRef, Status: status, RawStatus: out.Status}, nil
}

// VerifySignature checks the HMAC-SHA256 of the raw body.
func (g *PayGate) VerifySignature(payload []byte, signature string) bool {
	if g.cfg.WebhookSecret == "" {
		return false
	}
	return equalHex(signSHA256(g.cfg.WebhookSecret, payload), signature)
}

type payGateCallback struct {
	EventID       string      `json:"event_id"`
	OrderNumber   string      `json:"order_number"`
	TransactionID string      `json:"transaction_id"`
	Status        string      `json:"status"`
	Message       string      `json:"message"`
	Amount        json.Number `json:"amount"`
	PaidAmount    json.Number `json:"paid_amount"`
	Currency      string      `json:"currency"`
}

func (g *PayGate) ParseWebhook(payload []byte) (*Event, error) {
	var cb payGateCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return nil, fmt.Errorf("paygate callback: %w", err)
	}
	if cb.Status == "" {
		return nil, fmt.Errorf("paygate callback: missing status")
	}

	correlation := refs(cb.OrderNumber, cb.TransactionID)
	if len(correlation) == 0 {
		return nil, fmt.Errorf("paygate callback: no transaction reference")
	}

	status, _ := payGateStatus(cb.Status)
	id := cb.EventID
	if id == "" {
		id = cb.TransactionID + ":" + strings.ToUpper(cb.Status)
	}
	amount := numberToDecimal(cb.Amount)
	if amount.IsZero() {
		amount = numberToDecimal(cb.PaidAmount)
	}

	return &Event{
		ID:                   id,
		CorrelationIDs:       correlation,
		GatewayTransactionID: cb.TransactionID,
		Status:               status,
		RawStatus:            cb.Status,
		Amount:               amount,
		Currency:             strings.ToUpper(cb.Currency),
		Metadata: models.Metadata{PayGate: &models.PayGateMeta{
			OrderNumber:   cb.OrderNumber,
			TransactionID: cb.TransactionID,
			Status:        cb.Status,
			Message:       cb.Message,
			PaidAmount:    cb.PaidAmount.String(),
		}},
	}, nil
}

func payGateStatus(raw string) (models.Status, bool) {
	switch strings.ToUpper(raw) {
	case "NEW":
		return models.StatusPending, true
	case "PROCESSING":
		return models.StatusProcessing, true
	case "PARTIAL":
		return models.StatusPartial, true
	case "SUCCESS":
		return models.StatusCompleted, true
	case "DECLINED", "ERROR":
		return models.StatusFailed, true
	case "EXPIRED":
		return models.StatusExpired, true
	case "REFUNDED":
		return models.StatusReturned, true
	}
	return "", false
}
