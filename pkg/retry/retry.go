package retry

import (
	"context"
	"errors"
	"fmt"

	"wpharvest/pkg/config"
	errs "wpharvest/pkg/errors"
	"wpharvest/pkg/logger"
)

// Operation is a function that may need retrying.
type Operation func() error

// OperationWithResult is a function returning a result that may need retrying.
type OperationWithResult[T any] func() (T, error)

// Config holds retry configuration.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Backoff strategy to use between attempts.
	Backoff BackoffStrategy
	// RetryIf determines whether an error should be retried.
	RetryIf func(error) bool
	// Context for cancellation during backoff waits.
	Context context.Context
	// Logger for retry attempts.
	Logger logger.Logger
}

// DefaultRetryIf retries typed transient errors and gives up on everything
// classified as permanent or cancelled.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return errs.IsRetryable(apiErr.Type)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Unknown errors default to retryable; the attempt ceiling bounds them.
	return true
}

// FromConfig builds a retry policy from the validated application config.
func FromConfig(cfg *config.RetryConfig, log logger.Logger) *Config {
	return &Config{
		MaxAttempts: cfg.MaxAttempts,
		Backoff: &ExponentialBackoff{
			BaseDelay:    cfg.BaseDelay,
			MaxDelay:     cfg.MaxDelay,
			Multiplier:   cfg.Multiplier,
			JitterFactor: 0.1,
		},
		RetryIf: DefaultRetryIf,
		Context: context.Background(),
		Logger:  log,
	}
}

// Do executes an operation under the given retry policy.
func Do(op Operation, cfg *Config) error {
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		if cfg.MaxAttempts > 0 && attempt > cfg.MaxAttempts {
			if cfg.Logger != nil {
				cfg.Logger.ErrorWithFields("max retry attempts exceeded", map[string]interface{}{
					"attempts":   attempt - 1,
					"last_error": lastErr.Error(),
				})
			}
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
		}

		err := op()
		if err == nil {
			if attempt > 1 && cfg.Logger != nil {
				cfg.Logger.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}
		lastErr = err

		if cfg.RetryIf != nil && !cfg.RetryIf(err) {
			return err
		}

		delay := cfg.Backoff.NextDelay(attempt)
		if cfg.Logger != nil {
			cfg.Logger.WarnWithFields("retrying operation", map[string]interface{}{
				"attempt":      attempt,
				"error":        err.Error(),
				"delay_ms":     delay.Milliseconds(),
				"max_attempts": cfg.MaxAttempts,
			})
		}

		if err := Wait(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}
}

// DoWithResult executes an operation that returns a result with retry logic.
func DoWithResult[T any](op OperationWithResult[T], cfg *Config) (T, error) {
	var result T
	err := Do(func() error {
		var opErr error
		result, opErr = op()
		return opErr
	}, cfg)
	return result, err
}

// Retrier provides a reusable retry mechanism bound to one policy.
type Retrier struct {
	config *Config
}

// NewRetrier creates a retrier with the given configuration.
func NewRetrier(cfg *Config) *Retrier {
	return &Retrier{config: cfg}
}

// Do executes an operation under the retrier's policy.
func (r *Retrier) Do(op Operation) error {
	return Do(op, r.config)
}

// WithContext returns a retrier whose backoff waits honor ctx.
func (r *Retrier) WithContext(ctx context.Context) *Retrier {
	newConfig := *r.config
	newConfig.Context = ctx
	return &Retrier{config: &newConfig}
}

// MaxAttempts exposes the policy's attempt ceiling.
func (r *Retrier) MaxAttempts() int {
	return r.config.MaxAttempts
}
