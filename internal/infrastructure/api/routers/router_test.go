package routers

import (
	"bytes"
	"context"
	"encoding/json"
	"github.com/google/uuid"
	"github.com/mufasadev/coin-settlement/internal/config"
	"github.com/mufasadev/coin-settlement/internal/di"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
	"github.com/mufasadev/coin-settlement/internal/gateways"
	"github.com/mufasadev/coin-settlement/internal/infrastructure/database/memory"
	"github.com/mufasadev/coin-settlement/internal/usecases/dtos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

const (
	adminToken    = "admin-secret"
	webhookSecret = "whsec"
)

// stubGateway signs with a shared token and carries {"id","ref","status"} payloads.
type stubGateway struct{}

func (stubGateway) Name() models.Provider   { return models.ProviderLinkPay }
func (stubGateway) SignatureHeader() string { return "X-Stub-Signature" }

func (stubGateway) CreateInvoice(_ context.Context, req *gateways.InvoiceRequest) (*gateways.InvoiceResponse, error) {
	return &gateways.InvoiceResponse{ProviderRef: "ref-" + req.OrderID, CheckoutURL: "https://pay.example/" + req.OrderID}, nil
}

func (stubGateway) CreateWithdrawal(_ context.Context, req *gateways.WithdrawalRequest) (*gateways.InvoiceResponse, error) {
	return &gateways.InvoiceResponse{ProviderRef: "payout-" + req.OrderID}, nil
}

func (stubGateway) GetStatus(context.Context, string) (*gateways.StatusResponse, error) {
	return nil, gateways.ErrUnsupported
}

func (stubGateway) VerifySignature(_ []byte, signature string) bool {
	return signature == webhookSecret
}

func (stubGateway) ParseWebhook(payload []byte) (*gateways.Event, error) {
	var p struct {
		ID     string `json:"id"`
		Ref    string `json:"ref"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}
	return &gateways.Event{ID: p.ID, CorrelationIDs: []string{p.Ref}, Status: models.Status(p.Status), RawStatus: p.Status}, nil
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := *config.Load()
	cfg.Admin.Token = adminToken
	cfg.Settlement.DefaultProvider = string(models.ProviderLinkPay)

	store := memory.NewStore(cfg.Settlement.WalletCurrency)
	container, err := di.Build(&cfg, di.Dependencies{
		Storage: &di.Storage{
			Transactions: store.Transactions(),
			Wallets:      store.Wallets(),
			Referrals:    store.Referrals(),
		},
		Registry: gateways.NewRegistry(stubGateway{}),
	})
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(container))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body interface{}, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/health", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	resp, body = do(t, http.MethodGet, srv.URL+"/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestDepositWebhookFlow(t *testing.T) {
	srv := newServer(t)
	userID := uuid.NewString()
	api := srv.URL + "/api/v1"

	resp, body := do(t, http.MethodPost, api+"/users/"+userID+"/deposits",
		map[string]interface{}{"amount": 20, "currency": "USD"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var deposit dtos.PaymentResponse
	require.NoError(t, json.Unmarshal(body, &deposit))
	assert.Equal(t, models.StatusPending, deposit.Status)

	payload := []byte(`{"id":"evt-1","ref":"` + deposit.ProviderReference + `","status":"completed"}`)

	resp, _ = do(t, http.MethodPost, api+"/webhooks/linkpay", payload, map[string]string{"X-Stub-Signature": "forged"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, api+"/webhooks/acme", payload, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	for n := 0; n < 2; n++ {
		resp, body = do(t, http.MethodPost, api+"/webhooks/linkpay", payload, map[string]string{"X-Stub-Signature": webhookSecret})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		var ack dtos.WebhookResult
		require.NoError(t, json.Unmarshal(body, &ack))
		assert.True(t, ack.Received)
		assert.Equal(t, deposit.TransactionID, ack.TransactionID)
		assert.Equal(t, n == 0, ack.Applied)
	}

	resp, body = do(t, http.MethodGet, api+"/users/"+userID+"/balance", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var balance dtos.BalanceResponse
	require.NoError(t, json.Unmarshal(body, &balance))
	assert.Equal(t, int64(2200), balance.Balance)

	resp, body = do(t, http.MethodGet, api+"/users/"+userID+"/transactions?limit=10", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []dtos.TransactionView
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, models.StatusCompleted, list[0].Status)

	resp, body = do(t, http.MethodGet, api+"/transactions/"+deposit.TransactionID+"/status", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status dtos.StatusResponse
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, models.StatusCompleted, status.Status)
}

func TestUserRoutesValidation(t *testing.T) {
	srv := newServer(t)
	api := srv.URL + "/api/v1"

	resp, _ := do(t, http.MethodGet, api+"/users/not-a-uuid/balance", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	userID := uuid.NewString()
	resp, _ = do(t, http.MethodPost, api+"/users/"+userID+"/deposits", []byte("{"), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, api+"/users/"+userID+"/deposits", map[string]interface{}{"currency": "USD"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, api+"/users/"+userID+"/withdrawals",
		map[string]interface{}{"amount": "5", "currency": "USD", "destination": "acct"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, api+"/users/"+userID+"/transactions?limit=abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, api+"/transactions/"+uuid.NewString()+"/status", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminRoutes(t *testing.T) {
	srv := newServer(t)
	api := srv.URL + "/api/v1"
	refereeID, referrerID := uuid.NewString(), uuid.NewString()

	resp, body := do(t, http.MethodPost, api+"/users/"+refereeID+"/referrer", map[string]string{"referrerId": referrerID}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	sim := map[string]interface{}{"userId": refereeID, "amount": "25", "currency": "USD", "provider": "linkpay"}
	resp, _ = do(t, http.MethodPost, api+"/admin/deposits/simulate", sim, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, api+"/admin/deposits/simulate", sim, map[string]string{"X-Admin-Token": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = do(t, http.MethodPost, api+"/admin/deposits/simulate", sim, map[string]string{"X-Admin-Token": adminToken})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var settled dtos.SettlementResponse
	require.NoError(t, json.Unmarshal(body, &settled))
	assert.True(t, settled.Applied)
	assert.Equal(t, int64(2500), settled.Credit)
	assert.Equal(t, int64(250), settled.Bonus)

	// the simulated deposit already qualified the referral
	resp, body = do(t, http.MethodPost, api+"/admin/referrals/"+refereeID+"/requalify", nil, map[string]string{"X-Admin-Token": adminToken})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var ref dtos.ReferralResponse
	require.NoError(t, json.Unmarshal(body, &ref))
	assert.False(t, ref.Qualified)
	assert.Equal(t, string(models.ReferralStatusQualified), ref.Status)

	resp, body = do(t, http.MethodGet, api+"/users/"+referrerID+"/balance", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var balance dtos.BalanceResponse
	require.NoError(t, json.Unmarshal(body, &balance))
	assert.Equal(t, int64(1000), balance.Balance)
}
