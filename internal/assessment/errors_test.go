package assessment

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssessorErrorRetryability(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		retryable bool
	}{
		{ErrorTimeout, true},
		{ErrorOutage, true},
		{ErrorRateLimited, true},
		{ErrorBadData, false},
		{ErrorInternal, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			err := NewAssessorError(tt.category, KindPerformance, "nope", nil)
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.Equal(t, tt.retryable, IsRetryable(err))
			assert.Equal(t, tt.category, CategoryOf(err))
		})
	}
}

func TestAssessorErrorUnwrap(t *testing.T) {
	underlying := errors.New("connection refused")
	err := NewAssessorError(ErrorOutage, KindTechnology, "upstream down", underlying)

	assert.ErrorIs(t, err, underlying)
	assert.Contains(t, err.Error(), "technology")
	assert.Contains(t, err.Error(), "outage")
	assert.Contains(t, err.Error(), "connection refused")

	wrapped := fmt.Errorf("attempt 2: %w", err)
	assert.True(t, IsRetryable(wrapped))
	assert.Equal(t, ErrorOutage, CategoryOf(wrapped))
}

func TestPlainErrorsDefaultRetryable(t *testing.T) {
	assert.True(t, IsRetryable(errors.New("dial tcp: i/o timeout")))
	assert.Equal(t, ErrorInternal, CategoryOf(errors.New("unknown")))
}
