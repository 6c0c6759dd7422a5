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

type PaymentHandler struct {
	interactor *interactor.PaymentInteractor
	logger     *zerolog.Logger
}

func NewPaymentHandler(interactor *interactor.PaymentInteractor) *PaymentHandler {
	logger := log.GetLogger()
	return &PaymentHandler{interactor: interactor, logger: &logger}
}

func (h *PaymentHandler) decode(w http.ResponseWriter, r *http.Request) (*dtos.PaymentDTO, bool) {
	var dto dtos.PaymentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.logger.Error().Err(err).Msg(errors.ErrFailedDecodeRequestBody)
		errors.HandleHTTPError(w, errors.NewBadRequestError(errors.ErrInvalidRequestBody))
		return nil, false
	}
	if !dto.ParseAmount() {
		errors.HandleHTTPError(w, errors.NewBadRequestError(errors.ErrInvalidAmount))
		return nil, false
	}
	return &dto, true
}

func (h *PaymentHandler) CreateDeposit(w http.ResponseWriter, r *http.Request) {
	dto, ok := h.decode(w, r)
	if !ok {
		return
	}
	userId := chi.URLParam(r, http2.UserIDParam)

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	resp, err := h.interactor.CreateDeposit(ctx, userId, dto)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userId).Msg(errors.ErrFailedCreateDeposit)
		errors.HandleHTTPError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *PaymentHandler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	dto, ok := h.decode(w, r)
	if !ok {
		return
	}
	userId := chi.URLParam(r, http2.UserIDParam)

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	resp, err := h.interactor.CreateWithdrawal(ctx, userId, dto)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userId).Msg(errors.ErrFailedCreateWithdrawal)
		errors.HandleHTTPError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *PaymentHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, http2.TransactionIDParam)

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	resp, err := h.interactor.Status(ctx, id)
	if err != nil {
		h.logger.Error().Err(err).Str("transaction_id", id).Msg("failed to get transaction status")
		errors.HandleHTTPError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
