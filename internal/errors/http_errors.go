package errors

import (
	"encoding/json"
	"net/http"
)

type HTTPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// StatusCode maps an application error onto its HTTP status.
func StatusCode(err error) int {
	var (
		badRequest   *BadRequestError
		insufficient *InsufficientFundsError
		duplicate    *TransactionDuplicateError
		signature    *SignatureInvalidError
		notFound     *TransactionNotFoundError
		provider     *UnknownProviderError
		gateway      *GatewayError
		unauthorized *UnauthorizedError
	)
	switch {
	case As(err, &badRequest), As(err, &insufficient):
		return http.StatusBadRequest
	case As(err, &duplicate):
		return http.StatusUnprocessableEntity
	case As(err, &signature), As(err, &unauthorized):
		return http.StatusUnauthorized
	case As(err, &notFound), As(err, &provider), Is(err, ErrNotFound):
		return http.StatusNotFound
	case As(err, &gateway), Is(err, ErrGatewayUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// HandleHTTPError handles http errors
func HandleHTTPError(w http.ResponseWriter, err error) {
	httpErr := &HTTPError{Code: StatusCode(err), Message: err.Error()}
	if httpErr.Code == http.StatusInternalServerError {
		httpErr.Message = "Internal server error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpErr.Code)
	json.NewEncoder(w).Encode(httpErr)
}
