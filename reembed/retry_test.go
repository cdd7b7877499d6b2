package reembed

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, BaseDelay: 10 * time.Millisecond}
}

func TestRetryWithBackoff_Success(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), testPolicy(3), nil, func() error {
		attempts++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts, "should succeed on first try")
}

func TestRetryWithBackoff_EventualSuccess(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), testPolicy(5), nil, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts, "should succeed on third attempt")
}

func TestRetryWithBackoff_AllAttemptsFail(t *testing.T) {
	attempts := 0
	expectedErr := errors.New("persistent error")
	err := RetryWithBackoff(context.Background(), testPolicy(3), nil, func() error {
		attempts++
		return expectedErr
	})
	require.Error(t, err)
	assert.Equal(t, expectedErr, err, "should return the original error")
	assert.Equal(t, 3, attempts, "should attempt exactly MaxAttempts times")
}

func TestRetryWithBackoff_MismatchIsNotRetried(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), testPolicy(5), nil, func() error {
		attempts++
		return fmt.Errorf("%w: expected 2, got 1", ErrResultMismatch)
	})
	assert.ErrorIs(t, err, ErrResultMismatch)
	assert.Equal(t, 1, attempts)
}

func TestRetryWithBackoff_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := RetryWithBackoff(ctx, testPolicy(10), nil, func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("error")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, attempts, 2, "should stop when context is canceled")
}

func TestRetryWithBackoff_ContextTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	attempts := 0
	err := RetryWithBackoff(ctx, testPolicy(10), nil, func() error {
		attempts++
		time.Sleep(30 * time.Millisecond)
		return errors.New("error")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.LessOrEqual(t, attempts, 3, "should stop when context times out")
}

func TestRetryWithBackoff_InvalidMaxAttempts(t *testing.T) {
	for _, n := range []int{0, -1} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			attempts := 0
			err := RetryWithBackoff(context.Background(), testPolicy(n), nil, func() error {
				attempts++
				return nil
			})
			assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
			assert.Zero(t, attempts)
		})
	}
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 6, BaseDelay: time.Second, MaxDelay: 5 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
		{5, 5 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.delay(tt.attempt), "attempt %d", tt.attempt)
	}

	uncapped := RetryPolicy{BaseDelay: time.Second}
	assert.Equal(t, 8*time.Second, uncapped.delay(4))
}
