package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := New(ErrorTypeNetwork, "connection refused")
	assert.Equal(t, "network error: connection refused", err.Error())

	err = &Error{Type: ErrorTypeRateLimit, Message: "slow down", Code: 429}
	assert.Equal(t, "rate_limit error (code 429): slow down", err.Error())
}

func TestNewf(t *testing.T) {
	err := Newf(ErrorTypeConfig, "bad value %d", 7)
	assert.Equal(t, ErrorTypeConfig, err.Type)
	assert.Equal(t, "bad value 7", err.Message)
}

func TestIsRetryable(t *testing.T) {
	retryable := []ErrorType{ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError}
	for _, typ := range retryable {
		assert.True(t, IsRetryable(typ), "type %s should be retryable", typ)
	}

	permanent := []ErrorType{
		ErrorTypeConfig, ErrorTypeAuth, ErrorTypeParsing,
		ErrorTypeNotFound, ErrorTypeStorage, ErrorTypeUnknown,
	}
	for _, typ := range permanent {
		assert.False(t, IsRetryable(typ), "type %s should not be retryable", typ)
	}
}

func TestIsRetryableStatusCode(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{0, true},
		{400, false},
		{401, false},
		{403, false},
		{404, false},
		{429, true},
		{500, true},
		{502, true},
		{503, true},
		{200, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRetryableStatusCode(tt.code), "status %d", tt.code)
	}
}
