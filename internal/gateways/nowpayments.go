package gateways

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
	apperrors "github.com/mufasadev/coin-settlement/internal/errors"
	"github.com/shopspring/decimal"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const NowPaymentsSignatureHeader = "x-nowpayments-sig"

type NowPaymentsConfig struct {
	BaseURL     string
	APIKey      string
	IPNSecret   string
	CallbackURL string
	SuccessURL  string
	CancelURL   string
	Timeout     time.Duration
}

type NowPayments struct {
	cfg    NowPaymentsConfig
	client *client
}

func NewNowPayments(cfg NowPaymentsConfig) *NowPayments {
	return &NowPayments{cfg: cfg, client: newClient(models.ProviderNowPayments, cfg.BaseURL, cfg.Timeout)}
}

func (g *NowPayments) Name() models.Provider {
	return models.ProviderNowPayments
}

func (g *NowPayments) SignatureHeader() string {
	return NowPaymentsSignatureHeader
}

func (g *NowPayments) headers() map[string]string {
	return map[string]string{"x-api-key": g.cfg.APIKey}
}

type nowPaymentsInvoice struct {
	ID         flexString `json:"id"`
	OrderID    string     `json:"order_id"`
	InvoiceURL string     `json:"invoice_url"`
}

func (g *NowPayments) CreateInvoice(ctx context.Context, in *InvoiceRequest) (*InvoiceResponse, error) {
	req, err := jsonRequest("create invoice", http.MethodPost, "/invoice", map[string]interface{}{
		"price_amount":      in.Amount.String(),
		"price_currency":    strings.ToLower(in.Currency),
		"order_id":          in.OrderID,
		"order_description": in.Description,
		"ipn_callback_url":  g.cfg.CallbackURL,
		"success_url":       g.cfg.SuccessURL,
		"cancel_url":        g.cfg.CancelURL,
	}, g.headers())
	if err != nil {
		return nil, err
	}

	var out nowPaymentsInvoice
	if err = g.client.do(ctx, req, &out); err != nil {
		return nil, err
	}

	return &InvoiceResponse{
		ProviderRef: out.ID.String(),
		CheckoutURL: out.InvoiceURL,
		Status:      models.StatusPending,
		Metadata: models.Metadata{NowPayments: &models.NowPaymentsMeta{
			InvoiceID: out.ID.String(),
			OrderID:   in.OrderID,
		}},
	}, nil
}

type nowPaymentsPayout struct {
	ID          flexString `json:"id"`
	Withdrawals []struct {
		ID     flexString `json:"id"`
		Status string     `json:"status"`
	} `json:"withdrawals"`
}

func (g *NowPayments) CreateWithdrawal(ctx context.Context, in *WithdrawalRequest) (*InvoiceResponse, error) {
	req, err := jsonRequest("create payout", http.MethodPost, "/payout", map[string]interface{}{
		"ipn_callback_url": g.cfg.CallbackURL,
		"withdrawals": []map[string]interface{}{{
			"address":            in.Destination,
			"currency":           strings.ToLower(in.Currency),
			"amount":             in.Amount.String(),
			"unique_external_id": in.OrderID,
		}},
	}, g.headers())
	if err != nil {
		return nil, err
	}

	var out nowPaymentsPayout
	if err = g.client.do(ctx, req, &out); err != nil {
		return nil, err
	}

	ref := out.ID.String()
	status := models.StatusPending
	if len(out.Withdrawals) > 0 {
		if out.Withdrawals[0].ID != "" {
			ref = out.Withdrawals[0].ID.String()
		}
		if s, ok := nowPaymentsPayoutStatus(out.Withdrawals[0].Status); ok {
			status = s
		}
	}

	return &InvoiceResponse{
		ProviderRef: ref,
		Status:      status,
		Metadata: models.Metadata{NowPayments: &models.NowPaymentsMeta{
			PayoutID: ref,
			OrderID:  in.OrderID,
		}},
	}, nil
}

func (g *NowPayments) GetStatus(ctx context.Context, providerRef string) (*StatusResponse, error) {
	req, err := jsonRequest("get status", http.MethodGet, "/payment/"+url.PathEscape(providerRef), nil, g.headers())
	if err != nil {
		return nil, err
	}

	var out struct {
		PaymentID     flexString `json:"payment_id"`
		PaymentStatus string     `json:"payment_status"`
	}
	if err = g.client.do(ctx, req, &out); err != nil {
		return nil, err
	}

	status, _ := nowPaymentsStatus(out.PaymentStatus)
	return &StatusResponse{ProviderRef: providerRef, Status: status, RawStatus: out.PaymentStatus}, nil
}

// TransactionStatus queries the payout of a withdrawal, the payment of a deposit once an IPN
// recorded one, and otherwise the payments made against the deposit invoice.
func (g *NowPayments) TransactionStatus(ctx context.Context, tx *models.Transaction) (*StatusResponse, error) {
	meta := tx.Metadata.NowPayments
	switch {
	case tx.IsWithdrawal():
		ref := tx.GatewayInvoiceID
		if meta != nil && meta.PayoutID != "" {
			ref = meta.PayoutID
		}
		return g.payoutStatus(ctx, ref)
	case meta != nil && meta.PaymentID != "":
		return g.GetStatus(ctx, meta.PaymentID)
	case tx.GatewayTransactionID != "":
		return g.GetStatus(ctx, tx.GatewayTransactionID)
	}
	return g.invoiceStatus(ctx, tx.GatewayInvoiceID)
}

func (g *NowPayments) invoiceStatus(ctx context.Context, invoiceID string) (*StatusResponse, error) {
	query := url.Values{"invoiceId": {invoiceID}, "limit": {"1"}, "sortBy": {"updated_at"}, "orderBy": {"desc"}}
	req, err := jsonRequest("get invoice status", http.MethodGet, "/payment/?"+query.Encode(), nil, g.headers())
	if err != nil {
		return nil, err
	}

	var out struct {
		Data []struct {
			PaymentID     flexString `json:"payment_id"`
			PaymentStatus string     `json:"payment_status"`
		} `json:"data"`
	}
	if err = g.client.do(ctx, req, &out); err != nil {
		return nil, err
	}

	// no payment against the invoice yet
	if len(out.Data) == 0 {
		return &StatusResponse{ProviderRef: invoiceID, Status: models.StatusPending, RawStatus: "waiting"}, nil
	}
	status, _ := nowPaymentsStatus(out.Data[0].PaymentStatus)
	return &StatusResponse{ProviderRef: invoiceID, Status: status, RawStatus: out.Data[0].PaymentStatus}, nil
}

func (g *NowPayments) payoutStatus(ctx context.Context, payoutID string) (*StatusResponse, error) {
	req, err := jsonRequest("get payout status", http.MethodGet, "/payout/"+url.PathEscape(payoutID), nil, g.headers())
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err = g.client.do(ctx, req, &raw); err != nil {
		return nil, err
	}
	// a bare list of withdrawals or a batch object wrapping them
	var out nowPaymentsPayout
	if err = json.Unmarshal(raw, &out.Withdrawals); err != nil {
		if err = json.Unmarshal(raw, &out); err != nil {
			return nil, apperrors.NewGatewayError(string(g.Name()), "get payout status", fmt.Errorf("decode response: %w", err))
		}
	}
	if len(out.Withdrawals) == 0 {
		return nil, apperrors.NewGatewayError(string(g.Name()), "get payout status", fmt.Errorf("payout %s has no withdrawals", payoutID))
	}

	w := out.Withdrawals[0]
	for _, candidate := range out.Withdrawals {
		if candidate.ID.String() == payoutID {
			w = candidate
			break
		}
	}
	status, _ := nowPaymentsPayoutStatus(w.Status)
	return &StatusResponse{ProviderRef: payoutID, Status: status, RawStatus: w.Status}, nil
}

// VerifySignature checks the HMAC-SHA512 of the key-sorted IPN body.
func (g *NowPayments) VerifySignature(payload []byte, signature string) bool {
	if g.cfg.IPNSecret == "" {
		return false
	}
	sorted, err := sortedJSON(payload)
	if err != nil {
		return false
	}
	return equalHex(signSHA512(g.cfg.IPNSecret, sorted), signature)
}

type nowPaymentsIPN struct {
	PaymentID        flexString  `json:"payment_id"`
	InvoiceID        flexString  `json:"invoice_id"`
	OrderID          string      `json:"order_id"`
	PaymentStatus    string      `json:"payment_status"`
	PayAddress       string      `json:"pay_address"`
	PriceAmount      json.Number `json:"price_amount"`
	PriceCurrency    string      `json:"price_currency"`
	PayAmount        json.Number `json:"pay_amount"`
	ActuallyPaid     json.Number `json:"actually_paid"`
	PayCurrency      string      `json:"pay_currency"`
	OutcomeAmount    json.Number `json:"outcome_amount"`
	ID               flexString  `json:"id"`
	Status           string      `json:"status"`
	UniqueExternalID string      `json:"unique_external_id"`
	Amount           json.Number `json:"amount"`
	Currency         string      `json:"currency"`
}

func (g *NowPayments) ParseWebhook(payload []byte) (*Event, error) {
	var ipn nowPaymentsIPN
	if err := json.Unmarshal(payload, &ipn); err != nil {
		return nil, fmt.Errorf("nowpayments ipn: %w", err)
	}

	// payout notifications carry status/id instead of payment_status/payment_id
	if ipn.PaymentStatus == "" && ipn.Status != "" {
		status, _ := nowPaymentsPayoutStatus(ipn.Status)
		return &Event{
			ID:                   ipn.ID.String() + ":" + strings.ToLower(ipn.Status),
			CorrelationIDs:       refs(ipn.UniqueExternalID, ipn.ID.String()),
			GatewayTransactionID: ipn.ID.String(),
			Status:               status,
			RawStatus:            ipn.Status,
			Amount:               numberToDecimal(ipn.Amount),
			Currency:             strings.ToUpper(ipn.Currency),
			Metadata: models.Metadata{NowPayments: &models.NowPaymentsMeta{
				PayoutID:      ipn.ID.String(),
				OrderID:       ipn.UniqueExternalID,
				PaymentStatus: ipn.Status,
			}},
		}, nil
	}

	if ipn.PaymentStatus == "" {
		return nil, fmt.Errorf("nowpayments ipn: missing payment_status")
	}

	status, _ := nowPaymentsStatus(ipn.PaymentStatus)
	return &Event{
		ID:                   ipn.PaymentID.String() + ":" + ipn.PaymentStatus,
		CorrelationIDs:       refs(ipn.OrderID, ipn.PaymentID.String(), ipn.InvoiceID.String()),
		GatewayTransactionID: ipn.PaymentID.String(),
		Status:               status,
		RawStatus:            ipn.PaymentStatus,
		Amount:               numberToDecimal(ipn.PriceAmount),
		Currency:             strings.ToUpper(ipn.PriceCurrency),
		Metadata: models.Metadata{NowPayments: &models.NowPaymentsMeta{
			PaymentID:     ipn.PaymentID.String(),
			InvoiceID:     ipn.InvoiceID.String(),
			OrderID:       ipn.OrderID,
			PaymentStatus: ipn.PaymentStatus,
			PayAddress:    ipn.PayAddress,
			PayCurrency:   ipn.PayCurrency,
			PayAmount:     ipn.PayAmount.String(),
			ActuallyPaid:  ipn.ActuallyPaid.String(),
			OutcomeAmount: ipn.OutcomeAmount.String(),
		}},
	}, nil
}

func nowPaymentsStatus(raw string) (models.Status, bool) {
	switch strings.ToLower(raw) {
	case "waiting":
		return models.StatusPending, true
	case "confirming", "confirmed", "sending":
		return models.StatusProcessing, true
	case "partially_paid":
		return models.StatusPartial, true
	case "finished":
		return models.StatusCompleted, true
	case "failed":
		return models.StatusFailed, true
	case "refunded":
		return models.StatusReturned, true
	case "expired":
		return models.StatusExpired, true
	}
	return "", false
}

func nowPaymentsPayoutStatus(raw string) (models.Status, bool) {
	switch strings.ToLower(raw) {
	case "creating", "waiting":
		return models.StatusPending, true
	case "processing", "sending":
		return models.StatusProcessing, true
	case "finished":
		return models.StatusCompleted, true
	case "failed", "rejected":
		return models.StatusFailed, true
	}
	return "", false
}

func numberToDecimal(n json.Number) decimal.Decimal {
	if n == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}
