package http

import (
	"context"
	"github.com/mufasadev/coin-settlement/internal/gateways"
)

const (
	UserIDParam        = "userID"
	ProviderParam      = "provider"
	TransactionIDParam = "transactionID"

	AdminTokenHeader = "X-Admin-Token"
)

type ctxKey int

const gatewayCtxKey ctxKey = iota

// WithGateway stores the gateway resolved from the {provider} URL parameter.
func WithGateway(ctx context.Context, gw gateways.Gateway) context.Context {
	return context.WithValue(ctx, gatewayCtxKey, gw)
}

func GatewayFromContext(ctx context.Context) (gateways.Gateway, bool) {
	gw, ok := ctx.Value(gatewayCtxKey).(gateways.Gateway)
	return gw, ok
}
