package interactor

import (
	"context"
	"encoding/json"
	"github.com/mufasadev/coin-settlement/internal/config"
	"github.com/mufasadev/coin-settlement/internal/domain/bonus"
	"github.com/mufasadev/coin-settlement/internal/domain/coins"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
	"github.com/mufasadev/coin-settlement/internal/gateways"
	"github.com/mufasadev/coin-settlement/internal/infrastructure/database/memory"
	"github.com/mufasadev/coin-settlement/pkg/ids"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const (
	testSecret   = "whsec_test"
	testCurrency = "COIN"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []*models.SettlementEvent
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, event *models.SettlementEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) Close() error {
	return nil
}

func (n *recordingNotifier) kinds() []models.EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.EventKind, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Kind)
	}
	return out
}

// fakeGateway accepts payloads of the form {"id":"evt","ref":"X","status":"completed"} signed
// with testSecret.
type fakeGateway struct {
	name          models.Provider
	invoiceErr    error
	withdrawalErr error
	payoutStatus  models.Status
	invoices      int32
	payouts       int32
}

type fakePayload struct {
	ID     string `json:"id"`
	Ref    string `json:"ref"`
	Status string `json:"status"`
	TxID   string `json:"txId"`
}

func (g *fakeGateway) Name() models.Provider   { return g.name }
func (g *fakeGateway) SignatureHeader() string { return "X-Test-Signature" }

func (g *fakeGateway) CreateInvoice(_ context.Context, req *gateways.InvoiceRequest) (*gateways.InvoiceResponse, error) {
	atomic.AddInt32(&g.invoices, 1)
	if g.invoiceErr != nil {
		return nil, g.invoiceErr
	}
	return &gateways.InvoiceResponse{
		ProviderRef: "inv-" + req.OrderID,
		CheckoutURL: "https://pay.example/" + req.OrderID,
		Status:      models.StatusPending,
	}, nil
}

func (g *fakeGateway) CreateWithdrawal(_ context.Context, req *gateways.WithdrawalRequest) (*gateways.InvoiceResponse, error) {
	atomic.AddInt32(&g.payouts, 1)
	if g.withdrawalErr != nil {
		return nil, g.withdrawalErr
	}
	return &gateways.InvoiceResponse{ProviderRef: "payout-" + req.OrderID, Status: g.payoutStatus}, nil
}

func (g *fakeGateway) GetStatus(_ context.Context, ref string) (*gateways.StatusResponse, error) {
	return &gateways.StatusResponse{ProviderRef: ref, Status: models.StatusProcessing, RawStatus: "confirming"}, nil
}

func (g *fakeGateway) VerifySignature(_ []byte, signature string) bool {
	return signature == testSecret
}

func (g *fakeGateway) ParseWebhook(payload []byte) (*gateways.Event, error) {
	var p fakePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}
	status := models.Status(p.Status)
	if _, ok := models.ValidStatuses[status]; !ok {
		status = ""
	}
	return &gateways.Event{
		ID:                   p.ID,
		CorrelationIDs:       []string{p.Ref},
		GatewayTransactionID: p.TxID,
		Status:               status,
		RawStatus:            p.Status,
	}, nil
}

func webhookPayload(t *testing.T, id, ref, status string) []byte {
	b, err := json.Marshal(fakePayload{ID: id, Ref: ref, Status: status})
	require.NoError(t, err)
	return b
}

type fixture struct {
	store      *memory.Store
	notifier   *recordingNotifier
	gateway    *fakeGateway
	registry   *gateways.Registry
	converter  *coins.Converter
	calculator *bonus.Calculator
	vip        *VIPInteractor
	referral   *ReferralInteractor
	settlement *SettlementInteractor
	webhook    *WebhookInteractor
	payment    *PaymentInteractor
	wallet     *WalletInteractor
	expire     *ExpireTransactionsInteractor
	admin      *AdminInteractor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	tiers, err := bonus.ParseTiers("bronze:0:1,silver:100:1.5,gold:500:2,platinum:2000:3")
	require.NoError(t, err)
	rates := map[string]decimal.Decimal{
		"USD": decimal.NewFromInt(1),
		"EUR": decimal.RequireFromString("1.08"),
		"JPY": decimal.RequireFromString("0.0067"),
	}

	f := &fixture{
		store:      memory.NewStore(testCurrency),
		notifier:   &recordingNotifier{},
		gateway:    &fakeGateway{name: models.ProviderPayGate},
		converter:  coins.NewConverter(decimal.NewFromInt(100), rates),
		calculator: bonus.NewCalculator(decimal.NewFromInt(10), tiers),
	}
	f.registry = gateways.NewRegistry(f.gateway)

	transactions, wallets := f.store.Transactions(), f.store.Wallets()
	f.vip = NewVIPInteractor(transactions, wallets, f.converter, f.calculator)
	f.referral = NewReferralInteractor(f.store.Referrals(), transactions, f.converter, f.notifier, decimal.NewFromInt(20), 1000)
	f.settlement = NewSettlementInteractor(transactions, f.converter, f.calculator, f.vip, f.referral, f.notifier)
	f.settlement.delay = time.Millisecond
	f.webhook = NewWebhookInteractor(transactions, f.settlement, nil)
	f.payment = NewPaymentInteractor(transactions, wallets, f.registry, f.converter, f.settlement, testCurrency, "paygate")
	f.wallet = NewWalletInteractor(wallets, transactions, testCurrency)
	f.expire = NewExpireTransactionsInteractor(transactions, f.settlement, config.Process{
		Deadline:       "15m",
		BatchSize:      "2",
		Workers:        "2",
		TerminalStatus: "expired",
	})
	f.admin = NewAdminInteractor(transactions, wallets, f.converter, f.settlement, f.referral, testCurrency)
	return f
}

func (f *fixture) balance(t *testing.T, userID string) int64 {
	t.Helper()
	w, err := f.store.Wallets().GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	return w.Balance
}

// fund credits coins to userID through a settled zero-amount deposit, leaving the cumulative
// deposit total untouched.
func (f *fixture) fund(t *testing.T, userID string, coins int64) {
	t.Helper()
	tx := f.pendingDeposit(t, userID, "fund-"+ids.NewCorrelationID(), 0, time.Time{})
	res, err := f.store.Transactions().ApplyTransition(context.Background(), &models.Transition{
		TransactionID: tx.ID,
		To:            models.StatusCompleted,
		WalletDelta:   coins,
		CoinAmount:    coins,
	})
	require.NoError(t, err)
	require.True(t, res.Applied)
}

// pendingDeposit stores a pending USD deposit whose invoice id is invoiceID.
func (f *fixture) pendingDeposit(t *testing.T, userID, invoiceID string, amount int64, createdAt time.Time) *models.Transaction {
	t.Helper()
	return f.pendingDepositIn(t, userID, invoiceID, decimal.NewFromInt(amount), "USD", createdAt)
}

func (f *fixture) pendingDepositIn(t *testing.T, userID, invoiceID string, amount decimal.Decimal, currency string, createdAt time.Time) *models.Transaction {
	t.Helper()
	tx := &models.Transaction{
		ID:               ids.NewTransactionID(),
		GatewayInvoiceID: invoiceID,
		CorrelationID:    ids.NewCorrelationID(),
		UserID:           userID,
		Type:             models.TransactionTypeDeposit,
		Amount:           amount,
		Currency:         currency,
		Status:           models.StatusPending,
		Provider:         f.gateway.name,
		CreatedAt:        createdAt,
	}
	require.NoError(t, f.store.Transactions().Create(context.Background(), tx))
	return tx
}
