package gateways

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/mufasadev/coin-settlement/internal/config"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
	apperrors "github.com/mufasadev/coin-settlement/internal/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestNowPaymentsCreateInvoice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/invoice", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "corr", body["order_id"])
		assert.Equal(t, "usd", body["price_currency"])
		assert.Equal(t, "http://cb/nowpayments", body["ipn_callback_url"])

		w.Write([]byte(`{"id":"4522625843","order_id":"corr","invoice_url":"https://nowpayments.io/payment/?iid=4522625843"}`))
	}))
	defer server.Close()

	g := NewNowPayments(NowPaymentsConfig{BaseURL: server.URL, APIKey: "key", CallbackURL: "http://cb/nowpayments", Timeout: time.Second})
	resp, err := g.CreateInvoice(context.Background(), &InvoiceRequest{OrderID: "corr", Amount: decimal.NewFromInt(50), Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, "4522625843", resp.ProviderRef)
	assert.Equal(t, "https://nowpayments.io/payment/?iid=4522625843", resp.CheckoutURL)
	assert.Equal(t, models.StatusPending, resp.Status)
	require.NotNil(t, resp.Metadata.NowPayments)
	assert.Equal(t, "corr", resp.Metadata.NowPayments.OrderID)
}

func TestNowPaymentsTransactionStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		switch r.URL.Path {
		case "/payment/5077125051":
			w.Write([]byte(`{"payment_id":5077125051,"payment_status":"confirming"}`))
		case "/payment/":
			assert.Equal(t, "1", r.URL.Query().Get("limit"))
			switch r.URL.Query().Get("invoiceId") {
			case "4522625843":
				w.Write([]byte(`{"data":[],"limit":1,"page":0,"total":0}`))
			default:
				w.Write([]byte(`{"data":[{"payment_id":77,"payment_status":"partially_paid"}]}`))
			}
		case "/payout/5000000713":
			w.Write([]byte(`[{"id":"5000000713","status":"FINISHED"}]`))
		case "/payout/5000000714":
			w.Write([]byte(`{"id":"5000000001","withdrawals":[{"id":"5000000714","status":"REJECTED"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	g := NewNowPayments(NowPaymentsConfig{BaseURL: server.URL, APIKey: "key", Timeout: time.Second})
	ctx := context.Background()

	tests := []struct {
		name   string
		tx     *models.Transaction
		status models.Status
		raw    string
	}{
		{
			name: "deposit with a reported payment",
			tx: &models.Transaction{Type: models.TransactionTypeDeposit, GatewayInvoiceID: "4522625843",
				Metadata: models.Metadata{NowPayments: &models.NowPaymentsMeta{PaymentID: "5077125051"}}},
			status: models.StatusProcessing,
			raw:    "confirming",
		},
		{
			name:   "deposit with a gateway transaction id",
			tx:     &models.Transaction{Type: models.TransactionTypeDeposit, GatewayInvoiceID: "4522625843", GatewayTransactionID: "5077125051"},
			status: models.StatusProcessing,
			raw:    "confirming",
		},
		{
			name:   "invoice nobody paid yet",
			tx:     &models.Transaction{Type: models.TransactionTypeDeposit, GatewayInvoiceID: "4522625843"},
			status: models.StatusPending,
			raw:    "waiting",
		},
		{
			name:   "invoice with a payment",
			tx:     &models.Transaction{Type: models.TransactionTypeDeposit, GatewayInvoiceID: "4522625844"},
			status: models.StatusPartial,
			raw:    "partially_paid",
		},
		{
			name:   "payout listed bare",
			tx:     &models.Transaction{Type: models.TransactionTypeWithdrawal, GatewayInvoiceID: "5000000713"},
			status: models.StatusCompleted,
			raw:    "FINISHED",
		},
		{
			name: "payout inside a batch",
			tx: &models.Transaction{Type: models.TransactionTypeWithdrawal, GatewayInvoiceID: "other",
				Metadata: models.Metadata{NowPayments: &models.NowPaymentsMeta{PayoutID: "5000000714"}}},
			status: models.StatusFailed,
			raw:    "REJECTED",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := g.TransactionStatus(ctx, tt.tx)
			require.NoError(t, err)
			assert.Equal(t, tt.status, status.Status)
			assert.Equal(t, tt.raw, status.RawStatus)
		})
	}

	_, err := g.TransactionStatus(ctx, &models.Transaction{Type: models.TransactionTypeWithdrawal, GatewayInvoiceID: "missing"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, apperrors.StatusCode(err))
}

func TestCoinPaymentsSignsRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.True(t, equalHex(signSHA512("private", body), r.Header.Get(CoinPaymentsSignatureHeader)))

		form, err := url.ParseQuery(string(body))
		require.NoError(t, err)
		assert.Equal(t, "create_transaction", form.Get("cmd"))
		assert.Equal(t, "corr", form.Get("custom"))
		w.Write([]byte(`{"error":"ok","result":{"txn_id":"CP1","checkout_url":"https://cp/checkout","amount":"0.001"}}`))
	}))
	defer server.Close()

	g := NewCoinPayments(CoinPaymentsConfig{BaseURL: server.URL, PublicKey: "public", PrivateKey: "private", Timeout: time.Second})
	resp, err := g.CreateInvoice(context.Background(), &InvoiceRequest{OrderID: "corr", Amount: decimal.NewFromInt(20), Currency: "usd"})
	require.NoError(t, err)
	assert.Equal(t, "CP1", resp.ProviderRef)
	assert.Equal(t, "https://cp/checkout", resp.CheckoutURL)
}

func TestCoinPaymentsApiError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"Invalid amount","result":{}}`))
	}))
	defer server.Close()

	g := NewCoinPayments(CoinPaymentsConfig{BaseURL: server.URL, Timeout: time.Second})
	_, err := g.CreateInvoice(context.Background(), &InvoiceRequest{OrderID: "corr", Amount: decimal.NewFromInt(20), Currency: "usd"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrGatewayUnavailable))
}

func TestStripeCreateInvoice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "5000", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		assert.Equal(t, "corr", r.PostForm.Get("client_reference_id"))
		assert.Equal(t, "corr", r.PostForm.Get("metadata[order_id]"))
		// payment intent events carry only the intent's own metadata
		assert.Equal(t, "corr", r.PostForm.Get("payment_intent_data[metadata][order_id]"))
		assert.Equal(t, "user-1", r.PostForm.Get("payment_intent_data[metadata][user_id]"))

		w.Write([]byte(`{"id":"cs_1","url":"https://checkout.stripe.com/c/cs_1","status":"open","payment_status":"unpaid"}`))
	}))
	defer server.Close()

	g := NewStripe(StripeConfig{BaseURL: server.URL, SecretKey: "sk_test", Timeout: time.Second})
	resp, err := g.CreateInvoice(context.Background(), &InvoiceRequest{OrderID: "corr", UserID: "user-1", Amount: decimal.NewFromInt(50), Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, "cs_1", resp.ProviderRef)
	assert.Equal(t, "https://checkout.stripe.com/c/cs_1", resp.CheckoutURL)
}

func TestPayGateStatusAndFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/orders/pg-1":
			w.Write([]byte(`{"transaction_id":"pg-1","order_number":"corr","status":"PROCESSING"}`))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`maintenance`))
		}
	}))
	defer server.Close()

	g := NewPayGate(PayGateConfig{BaseURL: server.URL, Timeout: time.Second})

	status, err := g.GetStatus(context.Background(), "pg-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, status.Status)
	assert.Equal(t, "PROCESSING", status.RawStatus)

	_, err = g.CreateInvoice(context.Background(), &InvoiceRequest{OrderID: "corr", Amount: decimal.NewFromInt(20), Currency: "USD"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrGatewayUnavailable))
	var gwErr *apperrors.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, "paygate", gwErr.Provider)
	assert.Equal(t, http.StatusBadGateway, apperrors.StatusCode(err))
}

func TestUnreachableProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	g := NewCashBox(CashBoxConfig{BaseURL: server.URL, Timeout: time.Second})
	_, err := g.CreateWithdrawal(context.Background(), &WithdrawalRequest{OrderID: "corr", Amount: decimal.NewFromInt(40), Currency: "USD"})
	assert.True(t, errors.Is(err, apperrors.ErrGatewayUnavailable))
}

func TestPayoutsUnsupported(t *testing.T) {
	for _, g := range []Gateway{NewStripe(StripeConfig{}), NewLinkPay(LinkPayConfig{})} {
		_, err := g.CreateWithdrawal(context.Background(), &WithdrawalRequest{})
		assert.ErrorIs(t, err, ErrUnsupported)
	}
}

func TestRegistryFromConfig(t *testing.T) {
	registry := NewRegistryFromConfig(config.Gateways{
		CallbackBaseURL:      "http://localhost/api/v1/webhooks/",
		PayGateWebhookSecret: "pg",
		CashBoxCallbackToken: "cb",
	})

	assert.Equal(t, []models.Provider{models.ProviderCashBox, models.ProviderPayGate}, registry.Names())

	g, err := registry.Lookup("PayGate")
	require.NoError(t, err)
	assert.Equal(t, models.ProviderPayGate, g.Name())

	_, err = registry.Lookup("stripe")
	var unknown *apperrors.UnknownProviderError
	assert.True(t, errors.As(err, &unknown))

	_, err = registry.Lookup("venmo")
	assert.True(t, errors.As(err, &unknown))
}
