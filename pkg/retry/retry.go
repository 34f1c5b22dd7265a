package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"tiktokgraph/pkg/config"
	errs "tiktokgraph/pkg/errors"
	"tiktokgraph/pkg/logger"
)

// Operation is a function that performs an operation that might need retrying
type Operation func() error

// OperationWithResult is a function that returns a result and might need retrying
type OperationWithResult[T any] func() (T, error)

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the maximum number of attempts, including the first (0 means unlimited)
	MaxAttempts int
	// InitialInterval is the delay before the first retry
	InitialInterval time.Duration
	// MaxInterval caps the delay between attempts
	MaxInterval time.Duration
	// Multiplier grows the delay after every retry
	Multiplier float64
	// RandomizationFactor jitters delays; 0 disables jitter
	RandomizationFactor float64
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before each retry attempt
	OnRetry func(attempt int, err error, delay time.Duration)
	// Logger for retry attempts
	Logger logger.Logger
}

// DefaultConfig returns a retry configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:         3,
		InitialInterval:     time.Second,
		MaxInterval:         30 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		RetryIf:             DefaultRetryIf,
		Logger:              logger.GetLogger(),
	}
}

// FromSettings builds a Config from the retry section of the application config.
// A disabled section yields a single attempt.
func FromSettings(s config.RetryConfig, log logger.Logger) *Config {
	cfg := DefaultConfig()
	cfg.Logger = log
	if !s.Enabled {
		cfg.MaxAttempts = 1
		return cfg
	}
	if s.MaxAttempts > 0 {
		cfg.MaxAttempts = s.MaxAttempts
	}
	if s.InitialInterval > 0 {
		cfg.InitialInterval = s.InitialInterval
	}
	if s.MaxInterval > 0 {
		cfg.MaxInterval = s.MaxInterval
	}
	if s.Multiplier >= 1 {
		cfg.Multiplier = s.Multiplier
	}
	return cfg
}

// DefaultRetryIf is the default retry predicate
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return errs.IsRetryable(apiErr.Type)
	}

	// Unknown errors are usually transport failures
	return true
}

func (c *Config) newBackOff(ctx context.Context) backoff.BackOffContext {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.InitialInterval
	eb.MaxInterval = c.MaxInterval
	eb.Multiplier = c.Multiplier
	eb.RandomizationFactor = c.RandomizationFactor
	eb.MaxElapsedTime = 0

	var b backoff.BackOff = eb
	if c.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(eb, uint64(c.MaxAttempts-1))
	}
	b.Reset()
	return backoff.WithContext(b, ctx)
}

// Do executes op until it succeeds, fails permanently, runs out of attempts
// or ctx is done
func Do(ctx context.Context, op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	attempt := 0
	var lastErr error
	wrapped := func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryIf(err) {
			log.DebugWithFields("error is not retryable", map[string]interface{}{
				"error":   err.Error(),
				"attempt": attempt,
			})
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		log.WarnWithFields("retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"error":        err.Error(),
			"delay_ms":     delay.Milliseconds(),
			"max_attempts": cfg.MaxAttempts,
		})
	}

	err := backoff.RetryNotify(wrapped, cfg.newBackOff(ctx), notify)
	switch {
	case err == nil:
		if attempt > 1 {
			log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
				"attempt": attempt,
			})
		}
		return nil
	case ctx.Err() != nil && !errors.Is(err, lastErr):
		log.WarnWithFields("retry cancelled", map[string]interface{}{
			"attempt": attempt,
			"reason":  err.Error(),
		})
		return fmt.Errorf("retry cancelled: %w", err)
	case cfg.MaxAttempts > 1 && attempt >= cfg.MaxAttempts && retryIf(err):
		log.ErrorWithFields("max retry attempts exceeded", map[string]interface{}{
			"attempts":   attempt,
			"last_error": err.Error(),
		})
		return fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, err)
	default:
		return err
	}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, op OperationWithResult[T], cfg *Config) (T, error) {
	var result T

	err := Do(ctx, func() error {
		var opErr error
		result, opErr = op()
		return opErr
	}, cfg)

	return result, err
}

// Retrier provides a reusable retry mechanism
type Retrier struct {
	config *Config
}

// NewRetrier creates a new retrier with the given configuration
func NewRetrier(cfg *Config) *Retrier {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Retrier{config: cfg}
}

// Do executes an operation with retry logic
func (r *Retrier) Do(ctx context.Context, op Operation) error {
	return Do(ctx, op, r.config)
}

// WithMaxAttempts returns a new retrier with updated max attempts
func (r *Retrier) WithMaxAttempts(maxAttempts int) *Retrier {
	newConfig := *r.config
	newConfig.MaxAttempts = maxAttempts
	return &Retrier{config: &newConfig}
}

// Config returns a copy of the retrier configuration
func (r *Retrier) Config() Config {
	return *r.config
}
