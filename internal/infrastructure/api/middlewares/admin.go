package middlewares

import (
	"crypto/hmac"
	"github.com/mufasadev/coin-settlement/internal/errors"
	http2 "github.com/mufasadev/coin-settlement/internal/infrastructure/api/http"
	"github.com/mufasadev/coin-settlement/pkg/log"
	"net/http"
)

// AdminTokenMiddleware guards the admin routes. With no token configured every request is
// rejected.
func AdminTokenMiddleware(token string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(http2.AdminTokenHeader)
			if token == "" || got == "" || !hmac.Equal([]byte(got), []byte(token)) {
				logger := log.GetLogger()
				logger.Warn().Str("path", r.URL.Path).Msg(errors.ErrAdminTokenRequired)
				errors.HandleHTTPError(w, errors.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
