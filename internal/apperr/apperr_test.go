package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassOf_WalksWrappedChain(t *testing.T) {
	base := New(Client, "not_found", "transaction not found")
	wrapped := fmt.Errorf("verify purchase: %w", base)

	assert.Equal(t, Client, ClassOf(wrapped))
	assert.Equal(t, "not_found", CodeOf(wrapped))
	assert.True(t, errors.Is(wrapped, base))
}

func TestClassOf_Unclassified(t *testing.T) {
	assert.Equal(t, Internal, ClassOf(errors.New("boom")))
	assert.Equal(t, Class(""), ClassOf(nil))
	assert.Equal(t, "internal_error", CodeOf(errors.New("boom")))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		class Class
		want  int
	}{
		{Client, http.StatusBadRequest},
		{Validation, http.StatusUnprocessableEntity},
		{NotFound, http.StatusNotFound},
		{TransientLedger, http.StatusServiceUnavailable},
		{FatalLedger, http.StatusBadGateway},
		{Conflict, http.StatusConflict},
		{RateLimited, http.StatusTooManyRequests},
		{Internal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.class))
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(TransientLedger))
	assert.True(t, Retryable(Conflict))
	assert.False(t, Retryable(FatalLedger))
	assert.False(t, Retryable(Client))
}

func TestWrap_Message(t *testing.T) {
	err := Wrap(TransientLedger, "rpc_unavailable", errors.New("dial tcp: timeout"))
	assert.Equal(t, "dial tcp: timeout", err.Error())

	err = &Error{Class: Client, Code: "x", Message: "bad input", Err: errors.New("field y")}
	assert.Equal(t, "bad input: field y", err.Error())
}
