package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/mallchat/types"
)

func TestRetryerStopsAfterMaxAttempts(t *testing.T) {
	r := NewRetryer(Policy{MaxAttempts: 3, Delay: time.Millisecond}, nil)

	calls := 0
	wantErr := errors.New("upstream down")
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return wantErr
	})

	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, wantErr)
}

func TestRetryerStopsOnNonRetryableError(t *testing.T) {
	r := NewRetryer(Policy{MaxAttempts: 3, Delay: time.Millisecond}, nil)

	calls := 0
	authErr := types.NewError(types.ErrAuthentication, "invalid api key")
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return authErr
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, authErr)
}

func TestRetryerStopsOnWrappedNonRetryableError(t *testing.T) {
	r := NewRetryer(Policy{MaxAttempts: 3, Delay: time.Millisecond}, nil)

	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return fmt.Errorf("chat: %w", types.NewError(types.ErrInvalidRequest, "bad request"))
	})

	assert.Equal(t, 1, calls)
	assert.Error(t, err)
}

func TestRetryerRetriesRetryableProviderError(t *testing.T) {
	r := NewRetryer(Policy{MaxAttempts: 3, Delay: time.Millisecond}, nil)

	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return types.NewError(types.ErrRateLimited, "slow down").WithRetryable(true)
	})

	assert.Equal(t, 3, calls)
	assert.Error(t, err)
}

func TestRetryerHonorsCustomRetryablePredicate(t *testing.T) {
	r := NewRetryer(Policy{
		MaxAttempts: 3,
		Delay:       time.Millisecond,
		Retryable:   func(error) bool { return false },
	}, nil)

	calls := 0
	_ = r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	})

	assert.Equal(t, 1, calls)
}

func TestRetryerReturnsFirstSuccess(t *testing.T) {
	r := NewRetryer(Policy{MaxAttempts: 3, Delay: time.Millisecond}, nil)

	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryerHonorsContextCancellation(t *testing.T) {
	r := NewRetryer(Policy{MaxAttempts: 5, Delay: time.Minute}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := r.Do(ctx, func(ctx context.Context) error {
		calls++
		return errors.New("transient")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoWithResult(t *testing.T) {
	r := NewRetryer(Policy{MaxAttempts: 2, Delay: time.Millisecond}, nil)

	calls := 0
	got, err := DoWithResult(context.Background(), r, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestNewRetryerNormalizesAttempts(t *testing.T) {
	r := NewRetryer(Policy{MaxAttempts: 0}, nil)
	calls := 0
	_ = r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	})
	assert.Equal(t, 1, calls)
}
