package errors

import (
	"errors"
	"fmt"
)

const (
	ErrFailedExpireTransactions       = "Failed to expire stale transactions"
	ErrorFailedToConnectToTheDatabase = "Failed to connect to the database"
	ErrorFailedToRunTheServer         = "Failed to run the server"
	ErrorFailedToShutdownTheServer    = "Failed to shutdown the server"
	ErrFailedDecodeRequestBody        = "Failed to decode request body"
	ErrFailedReadRequestBody          = "Failed to read request body"
	ErrInvalidRequestBody             = "Invalid request body"
	ErrFailedProcessWebhook           = "Failed to process webhook"
	ErrFailedCreateDeposit            = "Failed to create deposit"
	ErrFailedCreateWithdrawal         = "Failed to create withdrawal"
	ErrProviderRequired               = "Provider is required"
	ErrInvalidProvider                = "Invalid provider"
	ErrUserIDRequired                 = "User ID is required"
	ErrInvalidUserID                  = "Invalid User ID"
	ErrInvalidAmount                  = "Invalid amount"
	ErrUnsupportedCurrency            = "Unsupported currency"
	ErrAdminTokenRequired             = "Admin token is required"
)

var (
	// ErrGatewayUnavailable is wrapped by every failed provider call.
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	// ErrNotFound is returned by repositories when a record does not exist.
	ErrNotFound = errors.New("not found")
)

type BadRequestError struct {
	Message string
}

func NewBadRequestError(message string) *BadRequestError {
	return &BadRequestError{Message: message}
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("Bad request: %s", e.Message)
}

type InsufficientFundsError struct{}

func NewInsufficientFundsError() *InsufficientFundsError {
	return &InsufficientFundsError{}
}

func (e *InsufficientFundsError) Error() string {
	return "insufficient funds"
}

func (e *InsufficientFundsError) Is(target error) bool {
	_, ok := target.(*InsufficientFundsError)
	return ok
}

type TransactionDuplicateError struct{}

func NewTransactionDuplicateError() *TransactionDuplicateError {
	return &TransactionDuplicateError{}
}

func (e *TransactionDuplicateError) Error() string {
	return "transaction already exists"
}

func (e *TransactionDuplicateError) Is(target error) bool {
	_, ok := target.(*TransactionDuplicateError)
	return ok
}

// SignatureInvalidError rejects a webhook whose signature is missing or wrong.
type SignatureInvalidError struct {
	Provider string
}

func NewSignatureInvalidError(provider string) *SignatureInvalidError {
	return &SignatureInvalidError{Provider: provider}
}

func (e *SignatureInvalidError) Error() string {
	return fmt.Sprintf("invalid %s webhook signature", e.Provider)
}

func (e *SignatureInvalidError) Is(target error) bool {
	_, ok := target.(*SignatureInvalidError)
	return ok
}

type TransactionNotFoundError struct {
	Refs []string
}

func NewTransactionNotFoundError(refs ...string) *TransactionNotFoundError {
	return &TransactionNotFoundError{Refs: refs}
}

func (e *TransactionNotFoundError) Error() string {
	return fmt.Sprintf("transaction not found for %v", e.Refs)
}

func (e *TransactionNotFoundError) Is(target error) bool {
	_, ok := target.(*TransactionNotFoundError)
	return ok
}

type UnknownProviderError struct {
	Provider string
}

func NewUnknownProviderError(provider string) *UnknownProviderError {
	return &UnknownProviderError{Provider: provider}
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown provider %q", e.Provider)
}

// GatewayError is a failed call to a provider API.
type GatewayError struct {
	Provider string
	Op       string
	Err      error
}

func NewGatewayError(provider, op string, err error) *GatewayError {
	return &GatewayError{Provider: provider, Op: op, Err: err}
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *GatewayError) Unwrap() []error {
	return []error{ErrGatewayUnavailable, e.Err}
}

type UnauthorizedError struct{}

func NewUnauthorizedError() *UnauthorizedError {
	return &UnauthorizedError{}
}

func (e *UnauthorizedError) Error() string {
	return "unauthorized"
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

func New(text string) error {
	return errors.New(text)
}
