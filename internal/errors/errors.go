package errors

import (
	"net/http"
	"time"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Request errors (400xx)
	ErrInvalidRequest   ErrorCode = "40001"
	ErrValidationFailed ErrorCode = "40002"
	ErrInvalidJSON      ErrorCode = "40003"
	ErrInvalidKeyType   ErrorCode = "40004"

	// Authentication errors (401xx)
	ErrUnauthorized   ErrorCode = "40100"
	ErrSessionExpired ErrorCode = "40102"
	ErrInvalidState   ErrorCode = "40104"

	// Resource errors (404xx)
	ErrNotFound       ErrorCode = "40400"
	ErrAPIKeyNotFound ErrorCode = "40403"

	// Conflict errors (409xx)
	ErrConfirmationRequired ErrorCode = "40901"
	ErrFlowState            ErrorCode = "40902"
	ErrSubmitInProgress     ErrorCode = "40903"

	// Backend rejected the request (422xx)
	ErrBackendRejected ErrorCode = "42201"

	// Server errors (500xx)
	ErrInternalServer ErrorCode = "50001"
	ErrCacheError     ErrorCode = "50003"

	// Backend errors (502xx-504xx)
	ErrBackendError       ErrorCode = "50201"
	ErrBackendUnavailable ErrorCode = "50301"
	ErrCircuitBreakerOpen ErrorCode = "50302"
	ErrBackendTimeout     ErrorCode = "50401"
)

// APIError represents a standardized API error
type APIError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    any       `json:"details,omitempty"`
	Timestamp  time.Time `json:"-"`
	HTTPStatus int       `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// WithDetails returns a copy of the error carrying details
func (e *APIError) WithDetails(details any) *APIError {
	return &APIError{
		Code:       e.Code,
		Message:    e.Message,
		Details:    details,
		Timestamp:  time.Now().UTC(),
		HTTPStatus: e.HTTPStatus,
	}
}

// WithMessage returns a copy of the error with a different message
func (e *APIError) WithMessage(message string) *APIError {
	return &APIError{
		Code:       e.Code,
		Message:    message,
		Details:    e.Details,
		Timestamp:  time.Now().UTC(),
		HTTPStatus: e.HTTPStatus,
	}
}

// ErrorBody is the serialized error inside an ErrorResponse
type ErrorBody struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   any       `json:"details,omitempty"`
	Timestamp string    `json:"timestamp"`
	Path      string    `json:"path,omitempty"`
	Method    string    `json:"method,omitempty"`
}

// ErrorResponse represents the error response format
type ErrorResponse struct {
	Success       bool      `json:"success"`
	Error         ErrorBody `json:"error"`
	RequestID     string    `json:"request_id"`
	CorrelationID string    `json:"correlation_id"`
}

// NewErrorResponse builds the standard error envelope for an API error
func NewErrorResponse(err *APIError, requestID, correlationID, path, method string) *ErrorResponse {
	ts := err.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if correlationID == "" {
		correlationID = requestID
	}
	return &ErrorResponse{
		Success: false,
		Error: ErrorBody{
			Code:      err.Code,
			Message:   err.Message,
			Details:   err.Details,
			Timestamp: ts.Format(time.RFC3339),
			Path:      path,
			Method:    method,
		},
		RequestID:     requestID,
		CorrelationID: correlationID,
	}
}

// Common errors
var (
	ErrUnauthorizedError = &APIError{
		Code:       ErrUnauthorized,
		Message:    "Sign in with GitHub to manage API keys",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrSessionExpiredError = &APIError{
		Code:       ErrSessionExpired,
		Message:    "Session has expired",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrInvalidStateError = &APIError{
		Code:       ErrInvalidState,
		Message:    "Invalid OAuth state",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrAPIKeyNotFoundError = &APIError{
		Code:       ErrAPIKeyNotFound,
		Message:    "API key not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrNameRequiredError = &APIError{
		Code:       ErrValidationFailed,
		Message:    "Please enter an API name",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidKeyTypeError = &APIError{
		Code:       ErrInvalidKeyType,
		Message:    "API key type must be RESEARCH or CHATBOT",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrConfirmationRequiredError = &APIError{
		Code:       ErrConfirmationRequired,
		Message:    "Are you sure you want to delete this API key? This action cannot be undone.",
		HTTPStatus: http.StatusConflict,
	}

	ErrFlowStateError = &APIError{
		Code:       ErrFlowState,
		Message:    "No API key creation in progress",
		HTTPStatus: http.StatusConflict,
	}

	ErrSubmitInProgressError = &APIError{
		Code:       ErrSubmitInProgress,
		Message:    "API key generation already in progress",
		HTTPStatus: http.StatusConflict,
	}

	ErrInternalServerError = &APIError{
		Code:       ErrInternalServer,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrBackendUnavailableError = &APIError{
		Code:       ErrBackendUnavailable,
		Message:    "unrepo API is unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
	}

	ErrCircuitBreakerOpenError = &APIError{
		Code:       ErrCircuitBreakerOpen,
		Message:    "unrepo API is temporarily unavailable, try again shortly",
		HTTPStatus: http.StatusServiceUnavailable,
	}

	ErrBackendTimeoutError = &APIError{
		Code:       ErrBackendTimeout,
		Message:    "unrepo API timed out",
		HTTPStatus: http.StatusGatewayTimeout,
	}
)

// NewValidationError creates a validation error with details
func NewValidationError(details any) *APIError {
	return &APIError{
		Code:       ErrValidationFailed,
		Message:    "Validation failed",
		Details:    details,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) *APIError {
	return &APIError{
		Code:       ErrInvalidRequest,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewBackendRejectedError wraps a business rejection reported by the backend
func NewBackendRejectedError(message string) *APIError {
	if message == "" {
		message = "Request rejected by unrepo API"
	}
	return &APIError{
		Code:       ErrBackendRejected,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewBackendError describes a non-2xx answer from the backend
func NewBackendError(operation string, statusCode int) *APIError {
	return &APIError{
		Code:    ErrBackendError,
		Message: "unrepo API returned an error",
		Details: map[string]interface{}{
			"operation":   operation,
			"status_code": statusCode,
		},
		HTTPStatus: http.StatusBadGateway,
	}
}

// GetHTTPStatusFromCode maps an error code to its HTTP status
func GetHTTPStatusFromCode(code ErrorCode) int {
	switch code {
	case ErrInvalidRequest, ErrValidationFailed, ErrInvalidJSON, ErrInvalidKeyType:
		return http.StatusBadRequest
	case ErrUnauthorized, ErrSessionExpired, ErrInvalidState:
		return http.StatusUnauthorized
	case ErrNotFound, ErrAPIKeyNotFound:
		return http.StatusNotFound
	case ErrConfirmationRequired, ErrFlowState, ErrSubmitInProgress:
		return http.StatusConflict
	case ErrBackendRejected:
		return http.StatusUnprocessableEntity
	case ErrBackendError:
		return http.StatusBadGateway
	case ErrBackendUnavailable, ErrCircuitBreakerOpen:
		return http.StatusServiceUnavailable
	case ErrBackendTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// IsRetryable reports whether retrying the same request may succeed
func IsRetryable(err *APIError) bool {
	switch err.Code {
	case ErrBackendUnavailable, ErrCircuitBreakerOpen, ErrBackendTimeout, ErrSubmitInProgress:
		return true
	}
	return false
}

// IsClientError reports whether the error is caused by the caller
func IsClientError(err *APIError) bool {
	return err.HTTPStatus >= 400 && err.HTTPStatus < 500
}

// IsServerError reports whether the error is caused by the portal or the backend
func IsServerError(err *APIError) bool {
	return err.HTTPStatus >= 500 && err.HTTPStatus < 600
}
