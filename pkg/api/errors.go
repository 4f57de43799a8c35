package api

import "fmt"

// ErrorType represents the category of an API error.
type ErrorType string

const (
	ErrorTypeServerError          ErrorType = "server_error"
	ErrorTypeInvalidRequest       ErrorType = "invalid_request"
	ErrorTypeNotFound             ErrorType = "not_found"
	ErrorTypeConfigurationMissing ErrorType = "configuration_missing"
	ErrorTypeMalformedTree        ErrorType = "malformed_tree"
	ErrorTypeRemoteExecution      ErrorType = "remote_execution"
	ErrorTypeStreamError          ErrorType = "stream_error"
)

// StreamErrorCode is the fine-grained classification applied to errors
// surfaced by the model stream. Only rate_limit and generic change the
// client's retry affordance; the rest exist for logging and metrics.
type StreamErrorCode string

const (
	StreamErrorRateLimit StreamErrorCode = "rate_limit"
	StreamErrorAuth      StreamErrorCode = "auth"
	StreamErrorNetwork   StreamErrorCode = "network"
	StreamErrorTimeout   StreamErrorCode = "timeout"
	StreamErrorGeneric   StreamErrorCode = "generic"
)

// APIError represents a structured error with type, code, param, and message.
// Details carries the raw diagnostic text from a remote failure verbatim.
type APIError struct {
	Type    ErrorType       `json:"type"`
	Code    StreamErrorCode `json:"code,omitempty"`
	Param   string          `json:"param,omitempty"`
	Message string          `json:"message"`
	Details string          `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Retryable reports whether the client should offer a retry for this error.
// Rate-limited and generic stream failures are retryable; configuration and
// not-found conditions are not.
func (e *APIError) Retryable() bool {
	if e.Type != ErrorTypeStreamError {
		return false
	}
	return e.Code == StreamErrorRateLimit || e.Code == StreamErrorGeneric || e.Code == ""
}

// ErrorResponse wraps an APIError for JSON serialization as the top-level
// error envelope returned by every handler.
type ErrorResponse struct {
	Error   *APIError `json:"error"`
	Details string    `json:"details,omitempty"`
}

// NewInvalidRequestError creates an APIError for invalid request parameters.
func NewInvalidRequestError(param, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Param:   param,
		Message: message,
	}
}

// NewNotFoundError creates an APIError for resources that cannot be found.
func NewNotFoundError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewServerError creates an APIError for internal server errors.
func NewServerError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeServerError,
		Message: message,
	}
}

// NewConfigurationMissingError creates an APIError for absent external
// credentials or configuration. Surfaced as 503.
func NewConfigurationMissingError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeConfigurationMissing,
		Message: message,
	}
}

// NewMalformedTreeError creates an APIError for cyclic or inconsistent
// parent linkage discovered during tree construction.
func NewMalformedTreeError(path, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeMalformedTree,
		Param:   path,
		Message: message,
	}
}

// NewRemoteExecutionError creates an APIError for a non-zero exit from a
// sandbox command. The raw diagnostic text is preserved in Details.
func NewRemoteExecutionError(message, details string) *APIError {
	return &APIError{
		Type:    ErrorTypeRemoteExecution,
		Message: message,
		Details: details,
	}
}

// NewStreamError creates an APIError for a classified model-stream failure.
func NewStreamError(code StreamErrorCode, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeStreamError,
		Code:    code,
		Message: message,
	}
}
