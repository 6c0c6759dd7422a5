package handlers

import (
	"context"
	"encoding/json"
	"github.com/go-chi/chi/v5"
	"github.com/mufasadev/coin-settlement/internal/errors"
	http2 "github.com/mufasadev/coin-settlement/internal/infrastructure/api/http"
	"github.com/mufasadev/coin-settlement/internal/usecases/dtos"
	"github.com/mufasadev/coin-settlement/internal/usecases/interactor"
	"github.com/mufasadev/coin-settlement/pkg/log"
	"github.com/rs/zerolog"
	"net/http"
)

type AdminHandler struct {
	interactor *interactor.AdminInteractor
	logger     *zerolog.Logger
}

func NewAdminHandler(interactor *interactor.AdminInteractor) *AdminHandler {
	logger := log.GetLogger()
	return &AdminHandler{interactor: interactor, logger: &logger}
}

func (h *AdminHandler) SimulateDeposit(w http.ResponseWriter, r *http.Request) {
	var dto dtos.SimulateDepositDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.logger.Error().Err(err).Msg(errors.ErrFailedDecodeRequestBody)
		errors.HandleHTTPError(w, errors.NewBadRequestError(errors.ErrInvalidRequestBody))
		return
	}
	if !dto.ParseAmount() {
		errors.HandleHTTPError(w, errors.NewBadRequestError(errors.ErrInvalidAmount))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	res, err := h.interactor.SimulateDeposit(ctx, &dto)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", dto.UserID).Msg("failed to simulate deposit")
		errors.HandleHTTPError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &dtos.SettlementResponse{
		TransactionID: res.Transaction.ID,
		Status:        string(res.Transaction.Status),
		Applied:       res.Applied,
		Credit:        res.Credit,
		Bonus:         res.Bonus,
		Balance:       res.Balance,
	})
}

func (h *AdminHandler) Requalify(w http.ResponseWriter, r *http.Request) {
	userId := chi.URLParam(r, http2.UserIDParam)

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	resp, err := h.interactor.Requalify(ctx, userId)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userId).Msg("failed to requalify referral")
		errors.HandleHTTPError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
