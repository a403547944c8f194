package common

import (
	"errors"
	"net/http"
)

// Common error types
var (
	ErrNotFound           = errors.New("resource not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrBadRequest         = errors.New("bad request")
	ErrInternalServer     = errors.New("internal server error")
	ErrConflict           = errors.New("resource conflict")
	ErrValidation         = errors.New("validation error")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("expired token")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Machine-readable error codes surfaced in the response envelope so callers
// can distinguish permanent failures from transient claim conflicts.
const (
	CodeNotFound           = "NOT_FOUND"
	CodePermissionDenied   = "PERMISSION_DENIED"
	CodeIllegalTransition  = "ILLEGAL_TRANSITION"
	CodeInvariantViolation = "INVARIANT_VIOLATION"
	CodeAlreadyClaimed     = "ALREADY_CLAIMED"
	CodeStaleState         = "STALE_STATE"
	CodeValidation         = "VALIDATION_ERROR"
)

// AppError represents an application error with HTTP status code
type AppError struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message"`
	Err       error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the wrapped cause for errors.Is checks.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func NewNotFoundError(message string, err error) *AppError {
	return &AppError{
		Code:      http.StatusNotFound,
		ErrorCode: CodeNotFound,
		Message:   message,
		Err:       err,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    http.StatusUnauthorized,
		Message: message,
		Err:     ErrUnauthorized,
	}
}

func NewForbiddenError(message string, err error) *AppError {
	return &AppError{
		Code:      http.StatusForbidden,
		ErrorCode: CodePermissionDenied,
		Message:   message,
		Err:       err,
	}
}

func NewBadRequestError(message string, err error) *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Code:    http.StatusInternalServerError,
		Message: message,
		Err:     err,
	}
}

func NewInternalServerError(message string) *AppError {
	return &AppError{
		Code:    http.StatusInternalServerError,
		Message: message,
		Err:     ErrInternalServer,
	}
}

// NewConflictError signals a lost claim race: the ride was already handled
// by a concurrent caller. Transient; callers should re-fetch and re-decide.
func NewConflictError(message string, err error) *AppError {
	return &AppError{
		Code:      http.StatusConflict,
		ErrorCode: CodeAlreadyClaimed,
		Message:   message,
		Err:       err,
	}
}

// NewStaleStateError signals that a guarded write lost to a concurrent
// transition: the expected triad no longer matched. Transient; callers
// should re-read and re-decide.
func NewStaleStateError(message string, err error) *AppError {
	return &AppError{
		Code:      http.StatusConflict,
		ErrorCode: CodeStaleState,
		Message:   message,
		Err:       err,
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:      http.StatusBadRequest,
		ErrorCode: CodeValidation,
		Message:   message,
		Err:       ErrValidation,
	}
}

// NewIllegalTransitionError signals a status jump the transition graph does
// not allow. Permanent; the caller must re-derive a legal next step.
func NewIllegalTransitionError(message string, err error) *AppError {
	return &AppError{
		Code:      http.StatusUnprocessableEntity,
		ErrorCode: CodeIllegalTransition,
		Message:   message,
		Err:       err,
	}
}

// NewInvariantViolationError signals that the proposed post-state would
// break a cross-field invariant. Permanent.
func NewInvariantViolationError(message string, err error) *AppError {
	return &AppError{
		Code:      http.StatusUnprocessableEntity,
		ErrorCode: CodeInvariantViolation,
		Message:   message,
		Err:       err,
	}
}
