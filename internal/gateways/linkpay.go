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

const LinkPaySignatureHeader = "signature"

type LinkPayConfig struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	CallbackURL   string
	RedirectURL   string
	Timeout       time.Duration
}

// LinkPay collects deposits through hosted payment links. It has no payouts.
type LinkPay struct {
	cfg    LinkPayConfig
	client *client
}

func NewLinkPay(cfg LinkPayConfig) *LinkPay {
	return &LinkPay{cfg: cfg, client: newClient(models.ProviderLinkPay, cfg.BaseURL, cfg.Timeout)}
}

func (g *LinkPay) Name() models.Provider {
	return models.ProviderLinkPay
}

func (g *LinkPay) SignatureHeader() string {
	return LinkPaySignatureHeader
}

func (g *LinkPay) headers() map[string]string {
	return map[string]string{"X-Api-Key": g.cfg.APIKey}
}

type linkPayLink struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Status    string `json:"status"`
	Reference string `json:"reference"`
}

func (g *LinkPay) CreateInvoice(ctx context.Context, in *InvoiceRequest) (*InvoiceResponse, error) {
	req, err := jsonRequest("create invoice", http.MethodPost, "/payment-links", map[string]interface{}{
		"amount":      in.Amount.String(),
		"currency":    strings.ToUpper(in.Currency),
		"reference":   in.OrderID,
		"description": in.Description,
		"redirectUrl": g.cfg.RedirectURL,
		"webhookUrl":  g.cfg.CallbackURL,
	}, g.headers())
	if err != nil {
		return nil, err
	}

	var out linkPayLink
	if err = g.client.do(ctx, req, &out); err != nil {
		return nil, err
	}

	return &InvoiceResponse{
		ProviderRef: out.ID,
		CheckoutURL: out.URL,
		Status:      models.StatusPending,
		Metadata: models.Metadata{LinkPay: &models.LinkPayMeta{
			PaymentLinkID: out.ID,
			Status:        out.Status,
			Amount:        in.Amount.String(),
		}},
	}, nil
}

func (g *LinkPay) CreateWithdrawal(context.Context, *WithdrawalRequest) (*InvoiceResponse, error) {
	return nil, ErrUnsupported
}

func (g *LinkPay) GetStatus(ctx context.Context, providerRef string) (*StatusResponse, error) {
	req, err := jsonRequest("get status", http.MethodGet, "/payment-links/"+url.PathEscape(providerRef), nil, g.headers())
	if err != nil {
		return nil, err
	}

	var out linkPayLink
	if err = g.client.do(ctx, req, &out); err != nil {
		return nil, err
	}

	status := models.StatusPending
	switch strings.ToLower(out.Status) {
	case "paid":
		status = models.StatusCompleted
	case "expired":
		status = models.StatusExpired
	case "cancelled", "canceled":
		status = models.StatusFailed
	}
	return &StatusResponse{ProviderRef: providerRef, Status: status, RawStatus: out.Status}, nil
}

// VerifySignature checks the HMAC-SHA512 of the raw body.
func (g *LinkPay) VerifySignature(payload []byte, signature string) bool {
	if g.cfg.WebhookSecret == "" {
		return false
	}
	return equalHex(signSHA512(g.cfg.WebhookSecret, payload), signature)
}

type linkPayWebhook struct {
	ID      string `json:"id"`
	Event   string `json:"event"`
	Payload struct {
		PaymentLink struct {
			ID        string `json:"id"`
			Reference string `json:"reference"`
			Status    string `json:"status"`
		} `json:"paymentLink"`
		Payment struct {
			ID       string      `json:"id"`
			Status   string      `json:"status"`
			Amount   json.Number `json:"amount"`
			Currency string      `json:"currency"`
		} `json:"payment"`
	} `json:"payload"`
}

func (g *LinkPay) ParseWebhook(payload []byte) (*Event, error) {
	var wh linkPayWebhook
	if err := json.Unmarshal(payload, &wh); err != nil {
		return nil, fmt.Errorf("linkpay webhook: %w", err)
	}
	if wh.Event == "" {
		return nil, fmt.Errorf("linkpay webhook: missing event")
	}

	link, payment := wh.Payload.PaymentLink, wh.Payload.Payment
	correlation := refs(link.ID, payment.ID, link.Reference)
	if len(correlation) == 0 {
		return nil, fmt.Errorf("linkpay webhook: no transaction reference")
	}

	id := wh.ID
	if id == "" {
		id = link.ID + ":" + payment.ID + ":" + wh.Event
	}

	return &Event{
		ID:                   id,
		CorrelationIDs:       correlation,
		GatewayTransactionID: payment.ID,
		Status:               linkPayStatus(wh.Event),
		RawStatus:            wh.Event,
		Amount:               numberToDecimal(payment.Amount),
		Currency:             strings.ToUpper(payment.Currency),
		Metadata: models.Metadata{LinkPay: &models.LinkPayMeta{
			EventType:     wh.Event,
			PaymentLinkID: link.ID,
			PaymentID:     payment.ID,
			Status:        payment.Status,
			Amount:        payment.Amount.String(),
		}},
	}, nil
}

func linkPayStatus(event string) models.Status {
	switch event {
	case "payment.pending", "payment.created":
		return models.StatusPending
	case "payment.processing":
		return models.StatusProcessing
	case "payment.succeeded", "payment_link.paid":
		return models.StatusCompleted
	case "payment.failed", "payment_link.cancelled":
		return models.StatusFailed
	case "payment_link.expired":
		return models.StatusExpired
	case "payment.refunded":
		return models.StatusReturned
	}
	return ""
}
