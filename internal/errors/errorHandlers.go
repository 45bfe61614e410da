package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeBadRequest          ErrorType = "BAD_REQUEST"
	ErrorTypeValidationFailed    ErrorType = "VALIDATION_FAILED"
	ErrorTypeUnauthorized        ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden           ErrorType = "FORBIDDEN"
	ErrorTypeNotFound            ErrorType = "NOT_FOUND"
	ErrorTypeConflict            ErrorType = "CONFLICT"
	ErrorTypeRequestTooLarge     ErrorType = "REQUEST_TOO_LARGE"
	ErrorTypeInternalServerError ErrorType = "INTERNAL_SERVER_ERROR"
	ErrorTypeServiceUnavailable  ErrorType = "SERVICE_UNAVAILABLE"
)

// FieldError names one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// CustomError represents a custom error with associated HTTP status code and type
type CustomError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Details    []FieldError
	Internal   error
}

// Error implements the error interface
func (e *CustomError) Error() string {
	return e.Message
}

func (e *CustomError) Unwrap() error {
	return e.Internal
}

func newError(errType ErrorType, message string, statusCode int, internal error) *CustomError {
	return &CustomError{
		Type:       errType,
		Message:    message,
		StatusCode: statusCode,
		Internal:   internal,
	}
}

// New400Error creates a new bad request error
func New400Error(message string) *CustomError {
	return newError(ErrorTypeBadRequest, message, http.StatusBadRequest, nil)
}

// NewValidationError creates a 400 listing the offending fields
func NewValidationError(details ...FieldError) *CustomError {
	err := newError(ErrorTypeValidationFailed, "Validation failed", http.StatusBadRequest, nil)
	err.Details = details
	return err
}

// New401Error creates a new unauthorized error
func New401Error(message string) *CustomError {
	if message == "" {
		message = "Unauthorized access"
	}
	return newError(ErrorTypeUnauthorized, message, http.StatusUnauthorized, nil)
}

// New403Error creates a new forbidden error
func New403Error() *CustomError {
	return newError(ErrorTypeForbidden, "Access forbidden", http.StatusForbidden, nil)
}

// New404Error creates a new not found error
func New404Error(message string) *CustomError {
	return newError(ErrorTypeNotFound, message, http.StatusNotFound, nil)
}

// New409Error creates a new conflict error
func New409Error(message string) *CustomError {
	return newError(ErrorTypeConflict, message, http.StatusConflict, nil)
}

func New413Error(message string) *CustomError {
	return newError(ErrorTypeRequestTooLarge, message, http.StatusRequestEntityTooLarge, nil)
}

// New500Error creates a new internal server error
func New500Error(internal error) *CustomError {
	return newError(ErrorTypeInternalServerError, "An unexpected error occurred", http.StatusInternalServerError, internal)
}

// New503Error reports a retryable upstream failure
func New503Error(message string, internal error) *CustomError {
	return newError(ErrorTypeServiceUnavailable, message, http.StatusServiceUnavailable, internal)
}

// HandleError handles the custom error and sends an appropriate JSON response
func HandleError(c *gin.Context, err error) {
	customErr, ok := err.(*CustomError)
	if !ok {
		customErr = New500Error(err)
	}

	logger := zerolog.Ctx(c.Request.Context())
	switch customErr.Type {
	case ErrorTypeInternalServerError:
		logger.Error().
			Err(customErr.Internal).
			Str("url", c.Request.URL.String()).
			Msg("Internal Server Error")
	case ErrorTypeServiceUnavailable:
		logger.Warn().
			Err(customErr.Internal).
			Str("url", c.Request.URL.String()).
			Msg("Upstream service unavailable")
	}

	body := gin.H{
		"type":    customErr.Type,
		"message": customErr.Message,
	}
	if len(customErr.Details) > 0 {
		body["details"] = customErr.Details
	}
	c.AbortWithStatusJSON(customErr.StatusCode, gin.H{"error": body})
}
