package handlers

import (
	"github.com/mufasadev/coin-settlement/internal/errors"
	http2 "github.com/mufasadev/coin-settlement/internal/infrastructure/api/http"
	"github.com/mufasadev/coin-settlement/internal/usecases/interactor"
	"github.com/mufasadev/coin-settlement/pkg/log"
	"github.com/rs/zerolog"
	"io"
	"net/http"
)

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	interactor *interactor.WebhookInteractor
	logger     *zerolog.Logger
}

func NewWebhookHandler(interactor *interactor.WebhookInteractor) *WebhookHandler {
	logger := log.GetLogger()
	return &WebhookHandler{interactor: interactor, logger: &logger}
}

// Receive takes the raw body so the signature is checked over the exact bytes the provider sent.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	gw, ok := http2.GatewayFromContext(r.Context())
	if !ok {
		errors.HandleHTTPError(w, errors.NewBadRequestError(errors.ErrProviderRequired))
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error().Err(err).Str("provider", string(gw.Name())).Msg(errors.ErrFailedReadRequestBody)
		errors.HandleHTTPError(w, errors.NewBadRequestError(errors.ErrInvalidRequestBody))
		return
	}

	result, err := h.interactor.Handle(r.Context(), gw, payload, r.Header.Get(gw.SignatureHeader()))
	if err != nil {
		h.logger.Error().Err(err).Str("provider", string(gw.Name())).Msg(errors.ErrFailedProcessWebhook)
		errors.HandleHTTPError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
