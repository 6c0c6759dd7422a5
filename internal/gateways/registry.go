package gateways

import (
	"fmt"
	"github.com/mufasadev/coin-settlement/internal/config"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
	apperrors "github.com/mufasadev/coin-settlement/internal/errors"
	"sort"
	"strings"
	"time"
)

// Registry is the fixed set of gateways built at startup.
type Registry struct {
	gateways map[models.Provider]Gateway
}

func NewRegistry(gws ...Gateway) *Registry {
	r := &Registry{gateways: make(map[models.Provider]Gateway, len(gws))}
	for _, g := range gws {
		r.gateways[g.Name()] = g
	}
	return r
}

// NewRegistryFromConfig registers every provider whose webhook secret is configured.
func NewRegistryFromConfig(cfg config.Gateways) *Registry {
	timeout := cfg.Timeout()
	callback := func(p models.Provider) string {
		return strings.TrimRight(cfg.CallbackBaseURL, "/") + "/" + string(p)
	}

	gws := make([]Gateway, 0, len(models.Providers))
	if cfg.NowPaymentsIPNSecret != "" {
		gws = append(gws, NewNowPayments(NowPaymentsConfig{
			BaseURL:     cfg.NowPaymentsBaseURL,
			APIKey:      cfg.NowPaymentsAPIKey,
			IPNSecret:   cfg.NowPaymentsIPNSecret,
			CallbackURL: callback(models.ProviderNowPayments),
			SuccessURL:  cfg.SuccessURL,
			CancelURL:   cfg.CancelURL,
			Timeout:     timeout,
		}))
	}
	if cfg.CoinPaymentsIPNSecret != "" {
		gws = append(gws, NewCoinPayments(CoinPaymentsConfig{
			BaseURL:     cfg.CoinPaymentsBaseURL,
			PublicKey:   cfg.CoinPaymentsPublicKey,
			PrivateKey:  cfg.CoinPaymentsPrivateKey,
			IPNSecret:   cfg.CoinPaymentsIPNSecret,
			CallbackURL: callback(models.ProviderCoinPayments),
			Timeout:     timeout,
		}))
	}
	if cfg.StripeWebhookSecret != "" {
		gws = append(gws, NewStripe(StripeConfig{
			BaseURL:       cfg.StripeBaseURL,
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			SuccessURL:    cfg.SuccessURL,
			CancelURL:     cfg.CancelURL,
			Tolerance:     cfg.StripeToleranceDuration(),
			Timeout:       timeout,
		}))
	}
	if cfg.PayGateWebhookSecret != "" {
		gws = append(gws, NewPayGate(PayGateConfig{
			BaseURL:       cfg.PayGateBaseURL,
			APIKey:        cfg.PayGateAPIKey,
			WebhookSecret: cfg.PayGateWebhookSecret,
			CallbackURL:   callback(models.ProviderPayGate),
			ReturnURL:     cfg.SuccessURL,
			Timeout:       timeout,
		}))
	}
	if cfg.LinkPayWebhookSecret != "" {
		gws = append(gws, NewLinkPay(LinkPayConfig{
			BaseURL:       cfg.LinkPayBaseURL,
			APIKey:        cfg.LinkPayAPIKey,
			WebhookSecret: cfg.LinkPayWebhookSecret,
			CallbackURL:   callback(models.ProviderLinkPay),
			RedirectURL:   cfg.SuccessURL,
			Timeout:       timeout,
		}))
	}
	if cfg.CashBoxCallbackToken != "" {
		gws = append(gws, NewCashBox(CashBoxConfig{
			BaseURL:       cfg.CashBoxBaseURL,
			MerchantID:    cfg.CashBoxMerchantID,
			APIKey:        cfg.CashBoxAPIKey,
			CallbackToken: cfg.CashBoxCallbackToken,
			CallbackURL:   callback(models.ProviderCashBox),
			ReturnURL:     cfg.SuccessURL,
			Timeout:       timeout,
		}))
	}

	return NewRegistry(gws...)
}

func (r *Registry) Get(provider models.Provider) (Gateway, bool) {
	g, ok := r.gateways[provider]
	return g, ok
}

// Lookup resolves a provider name from a URL, unknown or unregistered names are an UnknownProviderError.
func (r *Registry) Lookup(name string) (Gateway, error) {
	provider, ok := models.ParseProvider(strings.ToLower(name))
	if !ok {
		return nil, apperrors.NewUnknownProviderError(name)
	}
	g, ok := r.gateways[provider]
	if !ok {
		return nil, apperrors.NewUnknownProviderError(name)
	}
	return g, nil
}

func (r *Registry) Names() []models.Provider {
	out := make([]models.Provider, 0, len(r.gateways))
	for p := range r.gateways {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SignWebhook produces the header value a provider would send for payload. The replay
// tool and tests use it to forge valid deliveries.
func SignWebhook(provider models.Provider, secret string, payload []byte) (string, error) {
	switch provider {
	case models.ProviderNowPayments:
		sorted, err := sortedJSON(payload)
		if err != nil {
			return "", err
		}
		return signSHA512(secret, sorted), nil
	case models.ProviderCoinPayments, models.ProviderLinkPay:
		return signSHA512(secret, payload), nil
	case models.ProviderPayGate:
		return signSHA256(secret, payload), nil
	case models.ProviderStripe:
		return SignStripe(secret, payload, time.Now()), nil
	case models.ProviderCashBox:
		return secret, nil
	}
	return "", fmt.Errorf("no signing scheme for %q", provider)
}
