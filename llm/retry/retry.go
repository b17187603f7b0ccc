// Package retry provides a small policy-object retryer for LLM calls.
package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mallchat/types"
)

// Policy controls how many times an operation is attempted and how long to
// wait between attempts. The delay is fixed; LLM transport errors here are
// either transient within seconds or not at all.
type Policy struct {
	// MaxAttempts is the total number of attempts, first call included.
	MaxAttempts int

	// Delay is the pause between consecutive attempts.
	Delay time.Duration

	// OnRetry, when set, is invoked before each re-attempt.
	OnRetry func(attempt int, err error)

	// Retryable decides whether a failed attempt may be retried. When nil,
	// errors carrying an explicit non-retryable flag (auth failures, bad
	// requests) stop the loop and everything else is retried.
	Retryable func(err error) bool
}

// defaultRetryable honors the provider error taxonomy: a *types.Error marked
// non-retryable stops immediately; unknown errors are treated as transient.
func defaultRetryable(err error) bool {
	var te *types.Error
	if errors.As(err, &te) {
		return te.Retryable
	}
	return true
}

// DefaultPolicy mirrors the service defaults: 3 attempts, 1s apart.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Delay:       time.Second,
	}
}

// Retryer executes operations under a Policy.
type Retryer struct {
	policy Policy
	logger *zap.Logger
}

// NewRetryer creates a Retryer. A zero or negative MaxAttempts is normalized
// to one attempt.
func NewRetryer(policy Policy, logger *zap.Logger) *Retryer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.Retryable == nil {
		policy.Retryable = defaultRetryable
	}
	return &Retryer{
		policy: policy,
		logger: logger.With(zap.String("component", "retryer")),
	}
}

// Do runs fn until it succeeds, a non-retryable error occurs, attempts run
// out, or the context is done. The last error is returned.
func (r *Retryer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !r.policy.Retryable(lastErr) {
			r.logger.Debug("error is not retryable, giving up",
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
			break
		}

		if attempt == r.policy.MaxAttempts {
			break
		}

		r.logger.Warn("attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.policy.MaxAttempts),
			zap.Duration("delay", r.policy.Delay),
			zap.Error(lastErr))

		if r.policy.OnRetry != nil {
			r.policy.OnRetry(attempt, lastErr)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.policy.Delay):
		}
	}
	return lastErr
}

// DoWithResult is Do for operations that produce a value.
func DoWithResult[T any](ctx context.Context, r *Retryer, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		var innerErr error
		result, innerErr = fn(ctx)
		return innerErr
	})
	return result, err
}
