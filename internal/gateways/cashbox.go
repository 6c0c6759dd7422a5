package gateways

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"fmt"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CashBoxTokenHeader carries the shared callback token. CashBox does not sign callbacks.
const CashBoxTokenHeader = "X-Cashbox-Token"

type CashBoxConfig struct {
	BaseURL       string
	MerchantID    string
	APIKey        string
	CallbackToken string
	CallbackURL   string
	ReturnURL     string
	Timeout       time.Duration
}

type CashBox struct {
	cfg    CashBoxConfig
	client *client
}

func NewCashBox(cfg CashBoxConfig) *CashBox {
	return &CashBox{cfg: cfg, client: newClient(models.ProviderCashBox, cfg.BaseURL, cfg.Timeout)}
}

func (g *CashBox) Name() models.Provider {
	return models.ProviderCashBox
}

func (g *CashBox) SignatureHeader() string {
	return CashBoxTokenHeader
}

func (g *CashBox) headers() map[string]string {
	return map[string]string{"X-Api-Key": g.cfg.APIKey}
}

type cashBoxOrder struct {
	TransID    string `json:"transid"`
	OrderID    string `json:"orderid"`
	PaymentURL string `json:"payment_url"`
	Status     string `json:"status"`
}

func (g *CashBox) CreateInvoice(ctx context.Context, in *InvoiceRequest) (*InvoiceResponse, error) {
	req, err := jsonRequest("create invoice", http.MethodPost, "/orders", map[string]interface{}{
		"merchant_id":  g.cfg.MerchantID,
		"orderid":      in.OrderID,
		"amount":       in.Amount.StringFixed(2),
		"currency":     strings.ToUpper(in.Currency),
		"callback_url": g.cfg.CallbackURL,
		"return_url":   g.cfg.ReturnURL,
	}, g.headers())
	if err != nil {
		return nil, err
	}

	var out cashBoxOrder
	if err = g.client.do(ctx, req, &out); err != nil {
		return nil, err
	}

	return &InvoiceResponse{
		ProviderRef: out.TransID,
		CheckoutURL: out.PaymentURL,
		Status:      models.StatusPending,
		Metadata: models.Metadata{CashBox: &models.CashBoxMeta{
			OrderID: in.OrderID,
			TransID: out.TransID,
			Status:  out.Status,
			Amount:  in.Amount.StringFixed(2),
		}},
	}, nil
}

func (g *CashBox) CreateWithdrawal(ctx context.Context, in *WithdrawalRequest) (*InvoiceResponse, error) {
	req, err := jsonRequest("create withdrawal", http.MethodPost, "/payouts", map[string]interface{}{
		"merchant_id":  g.cfg.MerchantID,
		"orderid":      in.OrderID,
		"amount":       in.Amount.StringFixed(2),
		"currency":     strings.ToUpper(in.Currency),
		"account":      in.Destination,
		"callback_url": g.cfg.CallbackURL,
	}, g.headers())
	if err != nil {
		return nil, err
	}

	var out cashBoxOrder
	if err = g.client.do(ctx, req, &out); err != nil {
		return nil, err
	}

	status, ok := cashBoxStatus(out.Status)
	if !ok {
		status = models.StatusPending
	}
	return &InvoiceResponse{
		ProviderRef: out.TransID,
		Status:      status,
		Metadata: models.Metadata{CashBox: &models.CashBoxMeta{
			OrderID: in.OrderID,
			TransID: out.TransID,
			Status:  out.Status,
		}},
	}, nil
}

func (g *CashBox) GetStatus(ctx context.Context, providerRef string) (*StatusResponse, error) {
	req, err := jsonRequest("get status", http.MethodGet, "/orders/"+url.PathEscape(providerRef), nil, g.headers())
	if err != nil {
		return nil, err
	}

	var out cashBoxOrder
	if err = g.client.do(ctx, req, &out); err != nil {
		return nil, err
	}

	status, _ := cashBoxStatus(out.Status)
	return &StatusResponse{ProviderRef: providerRef, Status: status, RawStatus: out.Status}, nil
}

// VerifySignature compares the shared callback token in constant time.
func (g *CashBox) VerifySignature(_ []byte, token string) bool {
	if g.cfg.CallbackToken == "" || token == "" {
		return false
	}
	return hmac.Equal([]byte(g.cfg.CallbackToken), []byte(strings.TrimSpace(token)))
}

type cashBoxCallback struct {
	OrderID  string      `json:"orderid"`
	TransID  string      `json:"transid"`
	Status   string      `json:"status"`
	Amount   json.Number `json:"amount"`
	Currency string      `json:"currency"`
}

func (g *CashBox) ParseWebhook(payload []byte) (*Event, error) {
	var cb cashBoxCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return nil, fmt.Errorf("cashbox callback: %w", err)
	}
	if cb.Status == "" {
		return nil, fmt.Errorf("cashbox callback: missing status")
	}
	correlation := refs(cb.OrderID, cb.TransID)
	if len(correlation) == 0 {
		return nil, fmt.Errorf("cashbox callback: no transaction reference")
	}

	status, _ := cashBoxStatus(cb.Status)
	return &Event{
		ID:                   cb.TransID + ":" + strings.ToLower(cb.Status),
		CorrelationIDs:       correlation,
		GatewayTransactionID: cb.TransID,
		Status:               status,
		RawStatus:            cb.Status,
		Amount:               numberToDecimal(cb.Amount),
		Currency:             strings.ToUpper(cb.Currency),
		Metadata: models.Metadata{CashBox: &models.CashBoxMeta{
			OrderID: cb.OrderID,
			TransID: cb.TransID,
			Status:  cb.Status,
			Amount:  cb.Amount.String(),
		}},
	}, nil
}

func cashBoxStatus(raw string) (models.Status, bool) {
	switch strings.ToLower(raw) {
	case "created", "pending":
		return models.StatusPending, true
	case "processing":
		return models.StatusProcessing, true
	case "partial":
		return models.StatusPartial, true
	case "success", "paid":
		return models.StatusCompleted, true
	case "fail", "failed", "declined", "canceled", "cancelled":
		return models.StatusFailed, true
	case "expired":
		return models.StatusExpired, true
	case "refund", "refunded", "chargeback":
		return models.StatusReturned, true
	}
	return "", false
}
