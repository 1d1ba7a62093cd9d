package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// HasCode reports whether err is (or wraps) an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// CodeOf returns the AppError code carried by err, or "" when there is none.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// ---- Shop / Purchase (SHOP) ----

const (
	CodeInsufficientFunds   = "SHOP_001"
	CodeOutOfStock          = "SHOP_002"
	CodeProductUnavailable  = "SHOP_003"
	CodeNotFound            = "SHOP_004"
	CodePurchaseFailed      = "SHOP_005"
	CodeCompensationFailure = "SHOP_006"
	CodeDuplicateAttempt    = "SHOP_007"
)

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrOutOfStock() *AppError {
	return New(CodeOutOfStock, "Product is out of stock", http.StatusConflict)
}

// ErrOutOfStockRefunded is OutOfStock after the debit was already reversed.
func ErrOutOfStockRefunded() *AppError {
	return New(CodeOutOfStock, "Product is out of stock, your balance was refunded", http.StatusConflict)
}

func ErrProductUnavailable() *AppError {
	return New(CodeProductUnavailable, "Product is unavailable", http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ErrPurchaseFailed is the generic outcome of a purchase that had to be unwound.
func ErrPurchaseFailed(err error) *AppError {
	return Wrap(CodePurchaseFailed, "Purchase failed, please contact support", http.StatusInternalServerError, err)
}

// ErrCompensationFailure marks a purchase whose refund could not be applied.
func ErrCompensationFailure(err error) *AppError {
	return Wrap(CodeCompensationFailure, "Purchase failed, please contact support", http.StatusInternalServerError, err)
}

func ErrDuplicateAttempt() *AppError {
	return New(CodeDuplicateAttempt, "Purchase attempt is already in progress", http.StatusConflict)
}

// ---- Payment Requests (PAY) ----

const (
	CodeInvalidAmount    = "PAY_001"
	CodeAlreadyProcessed = "PAY_002"
)

func ErrInvalidAmount() *AppError {
	return New(CodeInvalidAmount, "Amount must be greater than zero", http.StatusBadRequest)
}

func ErrAlreadyProcessed() *AppError {
	return New(CodeAlreadyProcessed, "Payment request has already been processed", http.StatusConflict)
}

// ---- Conversation Flows (FLOW) ----

const (
	CodeInvalidInput    = "FLOW_001"
	CodeNoActiveFlow    = "FLOW_002"
	CodeConcurrentInput = "FLOW_003"
)

// InvalidInput reports input that failed validation.
func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message, http.StatusUnprocessableEntity)
}

func ErrNoActiveFlow() *AppError {
	return New(CodeNoActiveFlow, "No active conversation", http.StatusNotFound)
}

func ErrConcurrentInput() *AppError {
	return New(CodeConcurrentInput, "Another input for this conversation is being processed", http.StatusConflict)
}

// ---- Security & Authentication (SEC) ----

func ErrInvalidAccessKey() *AppError {
	return New("SEC_001", "Invalid gateway key", http.StatusUnauthorized)
}

func ErrInvalidSignature() *AppError {
	return New("SEC_002", "Invalid signature", http.StatusUnauthorized)
}

func ErrTimestampExpired() *AppError {
	return New("SEC_003", "Request timestamp expired", http.StatusForbidden)
}

func ErrNonceUsed() *AppError {
	return New("SEC_004", "Nonce has already been used", http.StatusForbidden)
}

func ErrForbidden() *AppError {
	return New("SEC_005", "Administrator privileges required", http.StatusForbidden)
}

func ErrInvalidToken() *AppError {
	return New("SEC_006", "Invalid or expired action token", http.StatusUnauthorized)
}

func ErrMissingActor() *AppError {
	return New("SEC_007", "Actor identity is required", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrEncryptionFailure(err error) *AppError {
	return Wrap("SYS_003", "Encryption service failure", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a request validation error.
func Validation(message string) *AppError {
	return New("REQ_001", message, http.StatusBadRequest)
}
