package utils

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode(8)
	require.NoError(t, err)

	assert.Len(t, code, 16)
	assert.Regexp(t, `^[0-9A-F]+$`, code)

	other, err := GenerateCode(8)
	require.NoError(t, err)
	assert.NotEqual(t, code, other)
}

func TestCircuitBreakerPassesThrough(t *testing.T) {
	cb := NewCircuitBreaker("test")

	result, err := cb.Execute(context.Background(), func() (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestCircuitBreakerReturnsCallError(t *testing.T) {
	cb := NewCircuitBreaker("test")
	boom := errors.New("boom")

	_, err := cb.Execute(context.Background(), func() (interface{}, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestCircuitBreakerTrips(t *testing.T) {
	cb := NewCircuitBreaker("test")
	boom := errors.New("boom")

	// Enough consecutive failures inside one window trip the breaker.
	for i := 0; i < 25; i++ {
		cb.Execute(context.Background(), func() (interface{}, error) {
			return nil, boom
		})
	}

	_, err := cb.Execute(context.Background(), func() (interface{}, error) {
		return "should not run", nil
	})
	assert.ErrorIs(t, err, ErrBreakerOpen)
}
