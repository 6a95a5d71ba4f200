package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is one of the closed set of ledger failure codes.
type Code string

const (
	CodeInvalidAmount           Code = "INVALID_AMOUNT"
	CodeWalletNotFound          Code = "WALLET_NOT_FOUND"
	CodeCampaignNotFound        Code = "CAMPAIGN_NOT_FOUND"
	CodeCampaignNotOwned        Code = "CAMPAIGN_NOT_OWNED"
	CodeBudgetLockNotFound      Code = "BUDGET_LOCK_NOT_FOUND"
	CodeWithdrawalNotFound      Code = "WITHDRAWAL_NOT_FOUND"
	CodeEventNotValid           Code = "EVENT_NOT_VALID"
	CodeEventAlreadyPaid        Code = "EVENT_ALREADY_PAID"
	CodeBudgetLockExists        Code = "BUDGET_LOCK_EXISTS"
	CodeInvalidWithdrawalStatus Code = "INVALID_WITHDRAWAL_STATUS"
	CodeInsufficientFunds       Code = "INSUFFICIENT_FUNDS"
	CodeInsufficientBudget      Code = "INSUFFICIENT_BUDGET"
	CodeDatabaseError           Code = "DATABASE_ERROR"

	// Transport-only codes used by the admin and processor HTTP surface.
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeInvalidSignature Code = "INVALID_SIGNATURE"
	CodeNonceUsed        Code = "NONCE_USED"
	CodeRateLimited      Code = "RATE_LIMITED"
	CodeValidation       Code = "VALIDATION_ERROR"
)

// Category groups codes by how callers should react to them.
type Category string

const (
	CategoryValidation     Category = "validation"
	CategoryNotFound       Category = "not_found"
	CategoryConflict       Category = "conflict"
	CategoryExhausted      Category = "exhausted"
	CategoryInfrastructure Category = "infrastructure"
	CategoryAccess         Category = "access"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       Code   `json:"error_code"`
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

// Is matches another *AppError by code so errors.Is works against the constructors.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New creates a new AppError.
func New(code Code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code Code, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Validation ----

func ErrInvalidAmount() *AppError {
	return New(CodeInvalidAmount, "Invalid amount", http.StatusBadRequest)
}

// InvalidAmount returns INVALID_AMOUNT with a specific message.
func InvalidAmount(message string) *AppError {
	return New(CodeInvalidAmount, message, http.StatusBadRequest)
}

// Validation returns a request validation error (transport layer only).
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

// ---- Not found ----

func ErrWalletNotFound() *AppError {
	return New(CodeWalletNotFound, "Wallet not found", http.StatusNotFound)
}

func ErrCampaignNotFound() *AppError {
	return New(CodeCampaignNotFound, "Campaign not found", http.StatusNotFound)
}

func ErrBudgetLockNotFound() *AppError {
	return New(CodeBudgetLockNotFound, "Budget lock not found", http.StatusNotFound)
}

func ErrWithdrawalNotFound() *AppError {
	return New(CodeWithdrawalNotFound, "Withdrawal request not found", http.StatusNotFound)
}

// ---- Conflict ----

func ErrEventNotValid() *AppError {
	return New(CodeEventNotValid, "Event is not a validated billable event", http.StatusUnprocessableEntity)
}

func ErrEventAlreadyPaid() *AppError {
	return New(CodeEventAlreadyPaid, "Event has already been paid", http.StatusConflict)
}

func ErrBudgetLockExists() *AppError {
	return New(CodeBudgetLockExists, "Budget lock already exists", http.StatusConflict)
}

func ErrInvalidWithdrawalStatus() *AppError {
	return New(CodeInvalidWithdrawalStatus, "Withdrawal is not in a valid status for this operation", http.StatusConflict)
}

// ---- Resource exhaustion ----

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient available balance", http.StatusPaymentRequired)
}

func ErrInsufficientBudget() *AppError {
	return New(CodeInsufficientBudget, "Insufficient campaign budget", http.StatusPaymentRequired)
}

// ---- Access ----

func ErrCampaignNotOwned() *AppError {
	return New(CodeCampaignNotOwned, "Campaign is not funded by this owner", http.StatusForbidden)
}

func ErrInvalidToken() *AppError {
	return New(CodeUnauthorized, "Invalid or expired token", http.StatusUnauthorized)
}

func ErrInvalidSignature() *AppError {
	return New(CodeInvalidSignature, "Invalid signature", http.StatusUnauthorized)
}

func ErrForbiddenRole() *AppError {
	return New(CodeUnauthorized, "Insufficient role", http.StatusForbidden)
}

func ErrTimestampExpired() *AppError {
	return New(CodeInvalidSignature, "Request timestamp outside allowed window", http.StatusUnauthorized)
}

func ErrNonceUsed() *AppError {
	return New(CodeNonceUsed, "Nonce has already been used", http.StatusForbidden)
}

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimited, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- Infrastructure ----

func ErrDatabaseError(err error) *AppError {
	return Wrap(CodeDatabaseError, "Internal database error", http.StatusInternalServerError, err)
}

// InternalError wraps an unexpected error as DATABASE_ERROR without leaking it to clients.
func InternalError(err error) *AppError {
	return Wrap(CodeDatabaseError, "Internal server error", http.StatusInternalServerError, err)
}

// CodeOf returns the code carried by err, or DATABASE_ERROR for foreign errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeDatabaseError
}

// CategoryOf classifies a code.
func CategoryOf(code Code) Category {
	switch code {
	case CodeInvalidAmount, CodeValidation:
		return CategoryValidation
	case CodeWalletNotFound, CodeCampaignNotFound, CodeBudgetLockNotFound, CodeWithdrawalNotFound:
		return CategoryNotFound
	case CodeEventNotValid, CodeEventAlreadyPaid, CodeBudgetLockExists, CodeInvalidWithdrawalStatus:
		return CategoryConflict
	case CodeInsufficientFunds, CodeInsufficientBudget:
		return CategoryExhausted
	case CodeCampaignNotOwned, CodeUnauthorized, CodeInvalidSignature, CodeNonceUsed, CodeRateLimited:
		return CategoryAccess
	default:
		return CategoryInfrastructure
	}
}

// IsConflict reports whether err means the operation already happened or no longer applies.
// Idempotent callers can treat these as a no-op.
func IsConflict(err error) bool {
	return err != nil && CategoryOf(CodeOf(err)) == CategoryConflict
}
