package gateways

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
	"github.com/shopspring/decimal"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const StripeSignatureHeader = "Stripe-Signature"

type StripeConfig struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	Tolerance     time.Duration
	Timeout       time.Duration
}

// Stripe settles deposits through Checkout Sessions. It has no payouts here.
type Stripe struct {
	cfg    StripeConfig
	client *client
	now    func() time.Time
}

func NewStripe(cfg StripeConfig) *Stripe {
	return &Stripe{cfg: cfg, client: newClient(models.ProviderStripe, cfg.BaseURL, cfg.Timeout), now: time.Now}
}

func (g *Stripe) Name() models.Provider {
	return models.ProviderStripe
}

func (g *Stripe) SignatureHeader() string {
	return StripeSignatureHeader
}

func (g *Stripe) formRequest(op, method, path string, form url.Values) *request {
	req := &request{
		op:      op,
		method:  method,
		path:    path,
		headers: map[string]string{"Authorization": "Bearer " + g.cfg.SecretKey},
	}
	if form != nil {
		req.body = []byte(form.Encode())
		req.contentType = "application/x-www-form-urlencoded"
	}
	return req
}

type stripeSession struct {
	ID                string `json:"id"`
	URL               string `json:"url"`
	Status            string `json:"status"`
	PaymentStatus     string `json:"payment_status"`
	PaymentIntent     string `json:"payment_intent"`
	ClientReferenceID string `json:"client_reference_id"`
	AmountTotal       int64  `json:"amount_total"`
	Currency          string `json:"currency"`
}

func (g *Stripe) CreateInvoice(ctx context.Context, in *InvoiceRequest) (*InvoiceResponse, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", g.cfg.SuccessURL)
	form.Set("cancel_url", g.cfg.CancelURL)
	form.Set("client_reference_id", in.OrderID)
	form.Set("metadata[order_id]", in.OrderID)
	form.Set("metadata[user_id]", in.UserID)
	form.Set("payment_intent_data[metadata][order_id]", in.OrderID)
	form.Set("payment_intent_data[metadata][user_id]", in.UserID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(in.Currency))
	form.Set("line_items[0][price_data][unit_amount]", in.Amount.Shift(2).Round(0).String())
	form.Set("line_items[0][price_data][product_data][name]", in.Description)

	var out stripeSession
	if err := g.client.do(ctx, g.formRequest("create invoice", http.MethodPost, "/checkout/sessions", form), &out); err != nil {
		return nil, err
	}

	return &InvoiceResponse{
		ProviderRef: out.ID,
		CheckoutURL: out.URL,
		Status:      models.StatusPending,
		Metadata: models.Metadata{Stripe: &models.StripeMeta{
			SessionID:         out.ID,
			ClientReferenceID: in.OrderID,
			PaymentStatus:     out.PaymentStatus,
			AmountTotal:       out.AmountTotal,
		}},
	}, nil
}

func (g *Stripe) CreateWithdrawal(context.Context, *WithdrawalRequest) (*InvoiceResponse, error) {
	return nil, ErrUnsupported
}

func (g *Stripe) GetStatus(ctx context.Context, providerRef string) (*StatusResponse, error) {
	var out stripeSession
	if err := g.client.do(ctx, g.formRequest("get status", http.MethodGet, "/checkout/sessions/"+url.PathEscape(providerRef), nil), &out); err != nil {
		return nil, err
	}

	status := models.StatusPending
	switch {
	case out.Status == "expired":
		status = models.StatusExpired
	case out.Status == "complete" && out.PaymentStatus == "paid":
		status = models.StatusCompleted
	case out.Status == "complete":
		status = models.StatusProcessing
	}
	return &StatusResponse{ProviderRef: providerRef, Status: status, RawStatus: out.Status + "/" + out.PaymentStatus}, nil
}

func (g *Stripe) VerifySignature(payload []byte, signature string) bool {
	return verifyStripe(g.cfg.WebhookSecret, payload, signature, g.cfg.Tolerance, g.now())
}

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID                string            `json:"id"`
			Object            string            `json:"object"`
			ClientReferenceID string            `json:"client_reference_id"`
			PaymentIntent     string            `json:"payment_intent"`
			PaymentStatus     string            `json:"payment_status"`
			Status            string            `json:"status"`
			AmountTotal       int64             `json:"amount_total"`
			Amount            int64             `json:"amount"`
			AmountRefunded    int64             `json:"amount_refunded"`
			Currency          string            `json:"currency"`
			Metadata          map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

func (g *Stripe) ParseWebhook(payload []byte) (*Event, error) {
	var ev stripeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("stripe event: %w", err)
	}
	if ev.ID == "" || ev.Type == "" {
		return nil, fmt.Errorf("stripe event: missing id or type")
	}

	obj := ev.Data.Object
	meta := &models.StripeMeta{
		EventID:           ev.ID,
		EventType:         ev.Type,
		ClientReferenceID: obj.ClientReferenceID,
		PaymentIntentID:   obj.PaymentIntent,
		PaymentStatus:     obj.PaymentStatus,
		AmountTotal:       obj.AmountTotal,
	}
	event := &Event{
		ID:        ev.ID,
		RawStatus: ev.Type,
		Currency:  strings.ToUpper(obj.Currency),
	}

	switch ev.Type {
	case "checkout.session.completed":
		meta.SessionID = obj.ID
		event.Status = models.StatusProcessing
		if obj.PaymentStatus == "paid" || obj.PaymentStatus == "no_payment_required" {
			event.Status = models.StatusCompleted
		}
		event.CorrelationIDs = refs(obj.ID, obj.ClientReferenceID, obj.Metadata["order_id"], obj.PaymentIntent)
		event.GatewayTransactionID = obj.PaymentIntent
		event.Amount = decimal.New(obj.AmountTotal, -2)
	case "checkout.session.async_payment_succeeded":
		meta.SessionID = obj.ID
		event.Status = models.StatusCompleted
		event.CorrelationIDs = refs(obj.ID, obj.ClientReferenceID, obj.Metadata["order_id"], obj.PaymentIntent)
		event.GatewayTransactionID = obj.PaymentIntent
		event.Amount = decimal.New(obj.AmountTotal, -2)
	case "checkout.session.async_payment_failed":
		meta.SessionID = obj.ID
		event.Status = models.StatusFailed
		event.CorrelationIDs = refs(obj.ID, obj.ClientReferenceID, obj.Metadata["order_id"], obj.PaymentIntent)
	case "checkout.session.expired":
		meta.SessionID = obj.ID
		event.Status = models.StatusExpired
		event.CorrelationIDs = refs(obj.ID, obj.ClientReferenceID, obj.Metadata["order_id"])
	case "payment_intent.payment_failed":
		meta.PaymentIntentID = obj.ID
		event.Status = models.StatusFailed
		event.CorrelationIDs = refs(obj.ID, obj.Metadata["order_id"])
		event.GatewayTransactionID = obj.ID
		event.Amount = decimal.New(obj.Amount, -2)
	case "charge.refunded":
		event.Status = models.StatusReturned
		event.CorrelationIDs = refs(obj.PaymentIntent, obj.Metadata["order_id"])
		event.Amount = decimal.New(obj.AmountRefunded, -2)
	default:
		event.CorrelationIDs = refs(obj.ID, obj.ClientReferenceID, obj.Metadata["order_id"], obj.PaymentIntent)
	}

	event.Metadata = models.Metadata{Stripe: meta}
	return event, nil
}
