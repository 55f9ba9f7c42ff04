package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents standardized error codes
type ErrorCode string

const (
	// Validation errors
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"

	// Lifecycle state-guard errors
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"
	ErrCodeWashSaleRisk ErrorCode = "WASH_SALE_RISK"

	// System errors
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
)

// AdvisoryError represents a standardized error
type AdvisoryError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	StatusCode int                    `json:"-"`
}

func (e *AdvisoryError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// New creates a new AdvisoryError
func New(code ErrorCode, message string) *AdvisoryError {
	return &AdvisoryError{
		Code:       code,
		Message:    message,
		StatusCode: getHTTPStatusCode(code),
		Details:    make(map[string]interface{}),
	}
}

// NewWithDetails creates a new AdvisoryError with details
func NewWithDetails(code ErrorCode, message string, details map[string]interface{}) *AdvisoryError {
	return &AdvisoryError{
		Code:       code,
		Message:    message,
		StatusCode: getHTTPStatusCode(code),
		Details:    details,
	}
}

// Wrap wraps an existing error with AdvisoryError
func Wrap(err error, code ErrorCode, message string) *AdvisoryError {
	details := map[string]interface{}{
		"original_error": err.Error(),
	}
	return NewWithDetails(code, message, details)
}

// AddDetail adds a detail to the error
func (e *AdvisoryError) AddDetail(key string, value interface{}) *AdvisoryError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsCode reports whether err is an AdvisoryError carrying code.
func IsCode(err error, code ErrorCode) bool {
	var ae *AdvisoryError
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// getHTTPStatusCode maps error codes to HTTP status codes
func getHTTPStatusCode(code ErrorCode) int {
	switch code {
	case ErrCodeValidation, ErrCodeInvalidInput:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeInvalidState, ErrCodeWashSaleRisk:
		return http.StatusConflict
	case ErrCodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeTimeout:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Common error constructors

func ValidationError(message string) *AdvisoryError {
	return New(ErrCodeValidation, message)
}

func NotFound(resource string) *AdvisoryError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

// InvalidState signals an illegal lifecycle transition. rule names the
// transition guard that refused it.
func InvalidState(rule, message string) *AdvisoryError {
	return New(ErrCodeInvalidState, message).AddDetail("rule", rule)
}

// WashSaleRisk signals that a wash-sale re-check blocked an approval.
func WashSaleRisk(message string) *AdvisoryError {
	return New(ErrCodeWashSaleRisk, message)
}

func Internal(message string) *AdvisoryError {
	return New(ErrCodeInternal, message)
}

func ServiceUnavailable(service string) *AdvisoryError {
	return New(ErrCodeServiceUnavailable, fmt.Sprintf("%s service unavailable", service))
}
