package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := Network("Request timed out.")

	assert.True(t, Is(err, ErrNetwork))
	assert.False(t, Is(err, ErrDecode))
}

func TestError_WrappedStillMatches(t *testing.T) {
	cause := fmt.Errorf("dial tcp: i/o timeout")
	err := fmt.Errorf("fetch: %w", Network("Request timed out.").WithCause(cause))

	assert.True(t, Is(err, ErrNetwork))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Request timed out.", UserMessage(err))
}

func TestToolMissing_Message(t *testing.T) {
	err := ToolMissing("ffprobe")

	assert.Equal(t, "ERROR: ffprobe failed to run (make sure the command 'ffprobe' can run).", err.Message)
	assert.True(t, Is(err, ErrToolMissing))
}

func TestUserMessage_PlainError(t *testing.T) {
	assert.Equal(t, "boom", UserMessage(fmt.Errorf("boom")))
}

func TestCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeURLResolution, http.StatusBadRequest},
		{CodeValidation, http.StatusBadRequest},
		{CodeNetwork, http.StatusBadGateway},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodeToolMissing, http.StatusServiceUnavailable},
		{CodeAnalysis, http.StatusUnprocessableEntity},
		{CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}
