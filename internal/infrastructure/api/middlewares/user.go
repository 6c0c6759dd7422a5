package middlewares

import (
	"github.com/go-chi/chi/v5"
	"github.com/mufasadev/coin-settlement/internal/errors"
	http2 "github.com/mufasadev/coin-settlement/internal/infrastructure/api/http"
	"github.com/mufasadev/coin-settlement/pkg/ids"
	"github.com/mufasadev/coin-settlement/pkg/log"
	"net/http"
)

// UserValidationMiddleware validates the user id.
func UserValidationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := log.GetLogger()
		userId := chi.URLParam(r, http2.UserIDParam)
		if userId == "" {
			logger.Error().Msg(errors.ErrUserIDRequired)
			errors.HandleHTTPError(w, errors.NewBadRequestError(errors.ErrUserIDRequired))
			return
		}
		if !ids.IsUUID(userId) {
			logger.Error().Str("user_id", userId).Msg(errors.ErrInvalidUserID)
			errors.HandleHTTPError(w, errors.NewBadRequestError(errors.ErrInvalidUserID))
			return
		}

		next.ServeHTTP(w, r)
	})
}
