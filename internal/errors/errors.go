package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Authentication & Authorization
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"

	// Validation
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeMissingRequired ErrorCode = "MISSING_REQUIRED"

	// Resource
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	ErrCodeConflict      ErrorCode = "CONFLICT"

	// Pairing
	ErrCodePairingCodeNotFound ErrorCode = "CODE_NOT_FOUND"
	ErrCodePairingCodeExpired  ErrorCode = "CODE_EXPIRED"
	ErrCodeAlreadyRedeemed     ErrorCode = "CODE_ALREADY_REDEEMED"
	ErrCodeTooManyActiveCodes  ErrorCode = "TOO_MANY_ACTIVE_CODES"

	// Assignment & playback
	ErrCodeUnauthorizedAssignment ErrorCode = "UNAUTHORIZED_ASSIGNMENT"
	ErrCodePlaylistEmpty          ErrorCode = "PLAYLIST_EMPTY"
	ErrCodeInvalidCommand         ErrorCode = "INVALID_COMMAND"
	ErrCodeNoSession              ErrorCode = "NO_PLAYBACK_SESSION"

	// Rate Limiting
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Internal
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabase ErrorCode = "DATABASE_ERROR"
)

// AppError is a structured error that can be returned to clients
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Common error constructors

func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

func Forbidden(message string) *AppError {
	return New(ErrCodeForbidden, message)
}

func InvalidToken(message string) *AppError {
	return New(ErrCodeInvalidToken, message)
}

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func AlreadyExists(resource string) *AppError {
	return New(ErrCodeAlreadyExists, fmt.Sprintf("%s already exists", resource))
}

func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func InvalidInput(field string, reason string) *AppError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("Invalid %s: %s", field, reason))
}

func MissingRequired(field string) *AppError {
	return New(ErrCodeMissingRequired, fmt.Sprintf("%s is required", field))
}

func PairingCodeNotFound() *AppError {
	return New(ErrCodePairingCodeNotFound, "Pairing code not found")
}

func PairingCodeExpired() *AppError {
	return New(ErrCodePairingCodeExpired, "Pairing code has expired")
}

func PairingCodeAlreadyRedeemed() *AppError {
	return New(ErrCodeAlreadyRedeemed, "Pairing code has already been redeemed")
}

func TooManyActiveCodes(limit int) *AppError {
	return New(ErrCodeTooManyActiveCodes, fmt.Sprintf("Maximum active pairing codes (%d) reached", limit))
}

func UnauthorizedAssignment() *AppError {
	return New(ErrCodeUnauthorizedAssignment, "Device or playlist does not belong to the requesting account")
}

func PlaylistEmpty() *AppError {
	return New(ErrCodePlaylistEmpty, "Playlist has no items")
}

func InvalidCommand(command string) *AppError {
	return New(ErrCodeInvalidCommand, fmt.Sprintf("Unknown playback command: %s", command))
}

func NoPlaybackSession() *AppError {
	return New(ErrCodeNoSession, "Device has no playback session")
}

func RateLimitExceeded() *AppError {
	return New(ErrCodeRateLimitExceeded, "Rate limit exceeded")
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

func Database(cause error) *AppError {
	return Wrap(ErrCodeDatabase, "Database error", cause)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns the error code if the error is an AppError, otherwise returns ErrCodeInternal
func GetCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}
