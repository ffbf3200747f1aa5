package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyError(t *testing.T) {
	testCases := []struct {
		name      string
		err       error
		level     ErrorLevel
		code      string
		retryable bool
	}{
		{"parameter", fmt.Errorf("dcf: %w", ErrInvalidParameter), L3Fatal, "PARAMETER_ERROR", false},
		{"unordered", ErrUnorderedSeries, L2Intervention, "UNORDERED_SERIES", false},
		{"timeout", context.DeadlineExceeded, L1Recoverable, "TIMEOUT", true},
		{"rate limit", fmt.Errorf("tushare: %w", ErrRateLimited), L1Recoverable, "RATE_LIMITED", true},
		{"empty", ErrEmptyData, L2Intervention, "EMPTY_DATA", false},
		{"data source", fmt.Errorf("post: %w", ErrDataSource), L1Recoverable, "DATA_SOURCE", true},
		{"auth", ErrAuthFailed, L3Fatal, "FATAL_CONFIG", false},
		{"unknown", errors.New("boom"), L1Recoverable, "UNKNOWN", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			classified := ClassifyError(tc.err)
			require.NotNil(t, classified)
			assert.Equal(t, tc.level, classified.Level)
			assert.Equal(t, tc.code, classified.Code)
			assert.Equal(t, tc.retryable, classified.Retryable)
			assert.ErrorIs(t, classified, tc.err)
		})
	}
}

func TestClassifyErrorPassthrough(t *testing.T) {
	original := NewClassifiedError(L2Intervention, "CUSTOM", "custom", nil)
	wrapped := fmt.Errorf("outer: %w", original)

	assert.Same(t, original, ClassifyError(wrapped))
	assert.Nil(t, ClassifyError(nil))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(fmt.Errorf("x: %w", ErrInvalidParameter)))
	assert.False(t, IsFatal(ErrUnorderedSeries))
	assert.False(t, IsFatal(nil))
	assert.Equal(t, "L3_FATAL", L3Fatal.String())
}
