package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("Error returns formatted string", func(t *testing.T) {
		err := New(ErrCodeNotFound, "Device not found")
		assert.Equal(t, "NOT_FOUND: Device not found", err.Error())
	})

	t.Run("Error with cause includes cause", func(t *testing.T) {
		cause := errors.New("database connection failed")
		err := Wrap(ErrCodeDatabase, "Database error", cause)
		assert.Contains(t, err.Error(), "DATABASE_ERROR")
		assert.Contains(t, err.Error(), "Database error")
		assert.Contains(t, err.Error(), "database connection failed")
	})

	t.Run("WithCause adds cause to error", func(t *testing.T) {
		cause := errors.New("original error")
		err := New(ErrCodeInternal, "Something went wrong").WithCause(cause)
		assert.Equal(t, cause, err.Unwrap())
	})

	t.Run("WithDetails adds details to error", func(t *testing.T) {
		details := map[string]string{"field": "code", "reason": "expired"}
		err := New(ErrCodeValidation, "Validation failed").WithDetails(details)
		assert.Equal(t, details, err.Details)
	})
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name         string
		constructor  func() *AppError
		expectedCode ErrorCode
	}{
		{"Unauthorized", func() *AppError { return Unauthorized("test") }, ErrCodeUnauthorized},
		{"Forbidden", func() *AppError { return Forbidden("test") }, ErrCodeForbidden},
		{"InvalidToken", func() *AppError { return InvalidToken("test") }, ErrCodeInvalidToken},
		{"NotFound", func() *AppError { return NotFound("Device") }, ErrCodeNotFound},
		{"AlreadyExists", func() *AppError { return AlreadyExists("Device") }, ErrCodeAlreadyExists},
		{"ValidationError", func() *AppError { return ValidationError("test") }, ErrCodeValidation},
		{"InvalidInput", func() *AppError { return InvalidInput("name", "too long") }, ErrCodeInvalidInput},
		{"MissingRequired", func() *AppError { return MissingRequired("code") }, ErrCodeMissingRequired},
		{"PairingCodeNotFound", func() *AppError { return PairingCodeNotFound() }, ErrCodePairingCodeNotFound},
		{"PairingCodeExpired", func() *AppError { return PairingCodeExpired() }, ErrCodePairingCodeExpired},
		{"PairingCodeAlreadyRedeemed", func() *AppError { return PairingCodeAlreadyRedeemed() }, ErrCodeAlreadyRedeemed},
		{"TooManyActiveCodes", func() *AppError { return TooManyActiveCodes(5) }, ErrCodeTooManyActiveCodes},
		{"UnauthorizedAssignment", func() *AppError { return UnauthorizedAssignment() }, ErrCodeUnauthorizedAssignment},
		{"PlaylistEmpty", func() *AppError { return PlaylistEmpty() }, ErrCodePlaylistEmpty},
		{"InvalidCommand", func() *AppError { return InvalidCommand("rewind") }, ErrCodeInvalidCommand},
		{"NoPlaybackSession", func() *AppError { return NoPlaybackSession() }, ErrCodeNoSession},
		{"RateLimitExceeded", func() *AppError { return RateLimitExceeded() }, ErrCodeRateLimitExceeded},
		{"Internal", func() *AppError { return Internal("test") }, ErrCodeInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.constructor()
			assert.Equal(t, tc.expectedCode, err.Code)
			assert.NotEmpty(t, err.Message)
		})
	}
}

func TestDatabase(t *testing.T) {
	t.Run("wraps database error", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Database(cause)
		assert.Equal(t, ErrCodeDatabase, err.Code)
		assert.Equal(t, cause, err.Unwrap())
	})
}

func TestHelpers(t *testing.T) {
	t.Run("IsAppError recognizes wrapped app errors", func(t *testing.T) {
		err := fmt.Errorf("redeem pairing code: %w", PairingCodeExpired())
		assert.True(t, IsAppError(err))
		assert.False(t, IsAppError(errors.New("plain")))
	})

	t.Run("AsAppError unwraps through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", PlaylistEmpty())
		appErr, ok := AsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, ErrCodePlaylistEmpty, appErr.Code)
	})

	t.Run("GetCode falls back to internal for plain errors", func(t *testing.T) {
		assert.Equal(t, ErrCodePairingCodeExpired, GetCode(PairingCodeExpired()))
		assert.Equal(t, ErrCodeInternal, GetCode(errors.New("plain")))
	})
}
