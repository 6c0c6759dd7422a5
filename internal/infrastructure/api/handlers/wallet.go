package handlers

import (
	"context"
	"encoding/json"
	"github.com/go-chi/chi/v5"
	"github.com/mufasadev/coin-settlement/internal/errors"
	http2 "github.com/mufasadev/coin-settlement/internal/infrastructure/api/http"
	"github.com/mufasadev/coin-settlement/internal/usecases/dtos"
	"github.com/mufasadev/coin-settlement/internal/usecases/interactor"
	"github.com/mufasadev/coin-settlement/pkg/ids"
	"github.com/mufasadev/coin-settlement/pkg/log"
	"github.com/rs/zerolog"
	"net/http"
	"strconv"
)

type WalletHandler struct {
	wallet   *interactor.WalletInteractor
	referral *interactor.ReferralInteractor
	logger   *zerolog.Logger
}

func NewWalletHandler(wallet *interactor.WalletInteractor, referral *interactor.ReferralInteractor) *WalletHandler {
	logger := log.GetLogger()
	return &WalletHandler{wallet: wallet, referral: referral, logger: &logger}
}

func (h *WalletHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userId := chi.URLParam(r, http2.UserIDParam)

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	balance, err := h.wallet.GetBalance(ctx, userId)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to get balance")
		errors.HandleHTTPError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

func (h *WalletHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userId := chi.URLParam(r, http2.UserIDParam)

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errors.HandleHTTPError(w, errors.NewBadRequestError("Invalid limit"))
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	list, err := h.wallet.ListTransactions(ctx, userId, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list transactions")
		errors.HandleHTTPError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// RegisterReferrer links the user to the referrer given in the body.
func (h *WalletHandler) RegisterReferrer(w http.ResponseWriter, r *http.Request) {
	var dto dtos.ReferralDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.logger.Error().Err(err).Msg(errors.ErrFailedDecodeRequestBody)
		errors.HandleHTTPError(w, errors.NewBadRequestError(errors.ErrInvalidRequestBody))
		return
	}
	if !ids.IsUUID(dto.ReferrerID) {
		errors.HandleHTTPError(w, errors.NewBadRequestError("Invalid referrer"))
		return
	}
	userId := chi.URLParam(r, http2.UserIDParam)

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	ref, err := h.referral.Register(ctx, userId, dto.ReferrerID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userId).Msg("failed to register referrer")
		errors.HandleHTTPError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, &dtos.ReferralResponse{
		RefereeID:  ref.RefereeID,
		ReferrerID: ref.ReferrerID,
		Status:     string(ref.Status),
	})
}
