package middlewares

import (
	"github.com/go-chi/chi/v5"
	"github.com/mufasadev/coin-settlement/internal/errors"
	"github.com/mufasadev/coin-settlement/internal/gateways"
	http2 "github.com/mufasadev/coin-settlement/internal/infrastructure/api/http"
	"github.com/mufasadev/coin-settlement/pkg/log"
	"net/http"
)

// ProviderMiddleware resolves the {provider} URL parameter against the registry.
func ProviderMiddleware(registry *gateways.Registry) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name := chi.URLParam(r, http2.ProviderParam)
			if name == "" {
				errors.HandleHTTPError(w, errors.NewBadRequestError(errors.ErrProviderRequired))
				return
			}

			gw, err := registry.Lookup(name)
			if err != nil {
				logger := log.GetLogger()
				logger.Warn().Str("provider", name).Msg(errors.ErrInvalidProvider)
				errors.HandleHTTPError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(http2.WithGateway(r.Context(), gw)))
		})
	}
}
