package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_Success(t *testing.T) {
	attempts := 0
	operation := func(ctx context.Context) error {
		attempts++
		return nil
	}

	err := Do(context.Background(), Fixed(10*time.Millisecond, 3), operation)
	require.NoError(t, err)
	assert.Equal(t, 1, attempts, "should succeed on first try")
}

func TestDo_EventualSuccess(t *testing.T) {
	attempts := 0
	operation := func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}

	err := Do(context.Background(), Fixed(time.Millisecond, 5), operation)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts, "should succeed on third attempt")
}

func TestDo_UnlimitedKeepsRetrying(t *testing.T) {
	attempts := 0
	operation := func(ctx context.Context) error {
		attempts++
		if attempts < 50 {
			return errors.New("service unavailable")
		}
		return nil
	}

	err := Do(context.Background(), Fixed(0, Unlimited), operation)
	require.NoError(t, err)
	assert.Equal(t, 50, attempts)
}

func TestDo_AllAttemptsFail(t *testing.T) {
	attempts := 0
	expectedErr := errors.New("persistent error")
	operation := func(ctx context.Context) error {
		attempts++
		return expectedErr
	}

	err := Do(context.Background(), Fixed(time.Millisecond, 3), operation)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, expectedErr, "should wrap the original error")
	assert.Equal(t, 3, attempts, "should attempt exactly maxAttempts times")
}

func TestDo_PermanentError(t *testing.T) {
	attempts := 0
	expectedErr := errors.New("bad request")
	operation := func(ctx context.Context) error {
		attempts++
		return Permanent(expectedErr)
	}

	err := Do(context.Background(), Fixed(time.Millisecond, Unlimited), operation)
	require.Error(t, err)
	assert.Equal(t, expectedErr, err)
	assert.Equal(t, 1, attempts, "permanent errors must not be retried")
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	operation := func(ctx context.Context) error {
		attempts++
		if attempts == 2 {
			cancel() // Cancel after second attempt
		}
		return errors.New("error")
	}

	err := Do(ctx, Fixed(10*time.Millisecond, Unlimited), operation)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled, "should return context.Canceled")
	assert.Equal(t, 2, attempts, "should stop when context is canceled")
}

func TestDo_ContextTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	attempts := 0
	operation := func(ctx context.Context) error {
		attempts++
		time.Sleep(30 * time.Millisecond) // Slow operation
		return errors.New("error")
	}

	err := Do(ctx, Fixed(10*time.Millisecond, Unlimited), operation)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "should return context.DeadlineExceeded")
	assert.LessOrEqual(t, attempts, 3, "should stop when context times out")
}

func TestDo_NilPolicy(t *testing.T) {
	err := Do(context.Background(), nil, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestFixed(t *testing.T) {
	policy := Fixed(5*time.Second, 2)

	delay, again := policy.Next(1)
	assert.True(t, again)
	assert.Equal(t, 5*time.Second, delay)

	_, again = policy.Next(2)
	assert.False(t, again, "should stop once maxAttempts is reached")
}

func TestExponential_Growth(t *testing.T) {
	policy, err := Exponential(10*time.Millisecond, 50*time.Millisecond, Unlimited, 0)
	require.NoError(t, err)

	want := []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		50 * time.Millisecond,
		50 * time.Millisecond,
	}
	for i, w := range want {
		delay, again := policy.Next(i + 1)
		assert.True(t, again)
		assert.Equal(t, w, delay, "attempt %d", i+1)
	}
}

func TestExponential_Jitter(t *testing.T) {
	policy, err := Exponential(100*time.Millisecond, 0, 3, 0.5)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		delay, again := policy.Next(1)
		require.True(t, again)
		assert.GreaterOrEqual(t, delay, 50*time.Millisecond)
		assert.LessOrEqual(t, delay, 100*time.Millisecond)
	}

	_, again := policy.Next(3)
	assert.False(t, again)
}

func TestExponential_Invalid(t *testing.T) {
	tests := []struct {
		name        string
		base, max   time.Duration
		maxAttempts int
		jitter      float64
	}{
		{"zero base", 0, time.Second, 1, 0},
		{"max below base", time.Second, time.Millisecond, 1, 0},
		{"negative attempts", time.Second, 0, -1, 0},
		{"jitter out of range", time.Second, 0, 1, 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Exponential(tt.base, tt.max, tt.maxAttempts, tt.jitter)
			assert.ErrorIs(t, err, ErrInvalidPolicy)
		})
	}
}
