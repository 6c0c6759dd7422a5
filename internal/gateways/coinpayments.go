package gateways

import (
	"context"
	"fmt"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
	apperrors "github.com/mufasadev/coin-settlement/internal/errors"
	"github.com/shopspring/decimal"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const CoinPaymentsSignatureHeader = "HMAC"

type CoinPaymentsConfig struct {
	BaseURL     string
	PublicKey   string
	PrivateKey  string
	IPNSecret   string
	CallbackURL string
	// PayCurrency is what the buyer pays in; the invoice currency is the price currency.
	PayCurrency string
	Timeout     time.Duration
}

type CoinPayments struct {
	cfg    CoinPaymentsConfig
	client *client
}

func NewCoinPayments(cfg CoinPaymentsConfig) *CoinPayments {
	if cfg.PayCurrency == "" {
		cfg.PayCurrency = "BTC"
	}
	return &CoinPayments{cfg: cfg, client: newClient(models.ProviderCoinPayments, cfg.BaseURL, cfg.Timeout)}
}

func (g *CoinPayments) Name() models.Provider {
	return models.ProviderCoinPayments
}

func (g *CoinPayments) SignatureHeader() string {
	return CoinPaymentsSignatureHeader
}

type coinPaymentsResponse[T any] struct {
	Error  string `json:"error"`
	Result T      `json:"result"`
}

// call posts a signed API command; the API answers 200 with error != "ok" on failure.
func (g *CoinPayments) call(ctx context.Context, op, cmd string, form url.Values, out interface{}) error {
	form.Set("version", "1")
	form.Set("cmd", cmd)
	form.Set("key", g.cfg.PublicKey)
	form.Set("format", "json")
	body := []byte(form.Encode())

	req := &request{
		op:          op,
		method:      http.MethodPost,
		body:        body,
		contentType: "application/x-www-form-urlencoded",
		headers:     map[string]string{CoinPaymentsSignatureHeader: signSHA512(g.cfg.PrivateKey, body)},
	}
	return g.client.do(ctx, req, out)
}

func (g *CoinPayments) CreateInvoice(ctx context.Context, in *InvoiceRequest) (*InvoiceResponse, error) {
	form := url.Values{}
	form.Set("amount", in.Amount.String())
	form.Set("currency1", strings.ToUpper(in.Currency))
	form.Set("currency2", g.cfg.PayCurrency)
	form.Set("custom", in.OrderID)
	form.Set("item_name", in.Description)
	form.Set("ipn_url", g.cfg.CallbackURL)

	var out coinPaymentsResponse[struct {
		TxnID       string `json:"txn_id"`
		CheckoutURL string `json:"checkout_url"`
		StatusURL   string `json:"status_url"`
		Amount      string `json:"amount"`
	}]
	if err := g.call(ctx, "create invoice", "create_transaction", form, &out); err != nil {
		return nil, err
	}
	if out.Error != "ok" {
		return nil, apperrors.NewGatewayError(string(g.Name()), "create invoice", fmt.Errorf("%s", out.Error))
	}

	return &InvoiceResponse{
		ProviderRef: out.Result.TxnID,
		CheckoutURL: out.Result.CheckoutURL,
		Status:      models.StatusPending,
		Metadata: models.Metadata{CoinPayments: &models.CoinPaymentsMeta{
			TxnID:     out.Result.TxnID,
			Currency1: strings.ToUpper(in.Currency),
			Currency2: g.cfg.PayCurrency,
			Amount1:   in.Amount.String(),
			Amount2:   out.Result.Amount,
			Custom:    in.OrderID,
		}},
	}, nil
}

func (g *CoinPayments) CreateWithdrawal(ctx context.Context, in *WithdrawalRequest) (*InvoiceResponse, error) {
	form := url.Values{}
	form.Set("amount", in.Amount.String())
	form.Set("currency", strings.ToUpper(in.Currency))
	form.Set("address", in.Destination)
	form.Set("ipn_url", g.cfg.CallbackURL)
	form.Set("note", in.OrderID)
	form.Set("auto_confirm", "1")

	var out coinPaymentsResponse[struct {
		ID     string `json:"id"`
		Status int    `json:"status"`
	}]
	if err := g.call(ctx, "create withdrawal", "create_withdrawal", form, &out); err != nil {
		return nil, err
	}
	if out.Error != "ok" {
		return nil, apperrors.NewGatewayError(string(g.Name()), "create withdrawal", fmt.Errorf("%s", out.Error))
	}

	return &InvoiceResponse{
		ProviderRef: out.Result.ID,
		Status:      coinPaymentsStatus(out.Result.Status),
		Metadata: models.Metadata{CoinPayments: &models.CoinPaymentsMeta{
			TxnID:  out.Result.ID,
			Custom: in.OrderID,
		}},
	}, nil
}

func (g *CoinPayments) GetStatus(ctx context.Context, providerRef string) (*StatusResponse, error) {
	form := url.Values{}
	form.Set("txid", providerRef)

	var out coinPaymentsResponse[struct {
		Status     int    `json:"status"`
		StatusText string `json:"status_text"`
	}]
	if err := g.call(ctx, "get status", "get_tx_info", form, &out); err != nil {
		return nil, err
	}
	if out.Error != "ok" {
		return nil, apperrors.NewGatewayError(string(g.Name()), "get status", fmt.Errorf("%s", out.Error))
	}

	return &StatusResponse{
		ProviderRef: providerRef,
		Status:      coinPaymentsStatus(out.Result.Status),
		RawStatus:   strconv.Itoa(out.Result.Status),
	}, nil
}

// VerifySignature checks the HMAC-SHA512 of the raw form body.
func (g *CoinPayments) VerifySignature(payload []byte, signature string) bool {
	if g.cfg.IPNSecret == "" {
		return false
	}
	return equalHex(signSHA512(g.cfg.IPNSecret, payload), signature)
}

func (g *CoinPayments) ParseWebhook(payload []byte) (*Event, error) {
	form, err := url.ParseQuery(string(payload))
	if err != nil {
		return nil, fmt.Errorf("coinpayments ipn: %w", err)
	}

	rawStatus := form.Get("status")
	code, err := strconv.Atoi(rawStatus)
	if err != nil {
		return nil, fmt.Errorf("coinpayments ipn: invalid status %q", rawStatus)
	}

	var event *Event
	switch form.Get("ipn_type") {
	case "withdrawal":
		amount, _ := decimal.NewFromString(form.Get("amount"))
		event = &Event{
			CorrelationIDs:       refs(form.Get("id"), form.Get("note")),
			GatewayTransactionID: form.Get("id"),
			Amount:               amount,
			Currency:             strings.ToUpper(form.Get("currency")),
			Metadata: models.Metadata{CoinPayments: &models.CoinPaymentsMeta{
				TxnID:      form.Get("id"),
				Status:     rawStatus,
				StatusText: form.Get("status_text"),
				Currency1:  strings.ToUpper(form.Get("currency")),
				Amount1:    form.Get("amount"),
			}},
		}
	default:
		amount, _ := decimal.NewFromString(form.Get("amount1"))
		event = &Event{
			CorrelationIDs:       refs(form.Get("custom"), form.Get("txn_id")),
			GatewayTransactionID: form.Get("txn_id"),
			Amount:               amount,
			Currency:             strings.ToUpper(form.Get("currency1")),
			Metadata: models.Metadata{CoinPayments: &models.CoinPaymentsMeta{
				TxnID:          form.Get("txn_id"),
				Status:         rawStatus,
				StatusText:     form.Get("status_text"),
				Currency1:      form.Get("currency1"),
				Currency2:      form.Get("currency2"),
				Amount1:        form.Get("amount1"),
				Amount2:        form.Get("amount2"),
				ReceivedAmount: form.Get("received_amount"),
				Custom:         form.Get("custom"),
			}},
		}
	}

	if len(event.CorrelationIDs) == 0 {
		return nil, fmt.Errorf("coinpayments ipn: no transaction reference")
	}
	event.ID = form.Get("ipn_id")
	event.Status = coinPaymentsStatus(code)
	event.RawStatus = rawStatus
	return event, nil
}

// coinPaymentsStatus maps the numeric status: negative is failure, 100 (and the
// queued-for-payout 2) is complete, 0 waiting, anything in between in progress.
func coinPaymentsStatus(code int) models.Status {
	switch {
	case code < 0:
		return models.StatusFailed
	case code == 0:
		return models.StatusPending
	case code >= 100 || code == 2:
		return models.StatusCompleted
	}
	return models.StatusProcessing
}
