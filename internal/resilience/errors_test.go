package resilience

import (
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTransientExplicitWrapper(t *testing.T) {
	inner := eris.New("rate limited")
	err := NewTransientError(inner, 429)

	assert.True(t, IsTransient(err))
	assert.True(t, IsTransient(fmt.Errorf("ask: %w", err)))
	require.ErrorIs(t, err, inner)
	assert.Equal(t, "rate limited", err.Error())
}

func TestIsTransientMessagePatterns(t *testing.T) {
	assert.True(t, IsTransient(eris.New("read tcp: connection reset by peer")))
	assert.True(t, IsTransient(eris.New("Post \"https://api\": i/o timeout")))
	assert.True(t, IsTransient(eris.New("api error: overloaded_error")))
}

func TestIsTransientPermanentErrors(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(eris.New("invalid_request_error: bad schema")))
	assert.False(t, IsTransient(eris.New("401 unauthorized")))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504, 529} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
}
