package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiktokgraph/pkg/config"
	errs "tiktokgraph/pkg/errors"
	"tiktokgraph/pkg/logger"
)

func fastConfig(maxAttempts int) *Config {
	return &Config{
		MaxAttempts:     maxAttempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
		RetryIf:         func(err error) bool { return true },
		Logger:          logger.NewNopLogger(),
	}
}

func TestRetryWithSuccess(t *testing.T) {
	attempts := 0
	op := func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}

	err := Do(context.Background(), op, fastConfig(5))
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	persistent := errors.New("persistent error")
	op := func() error {
		attempts++
		return persistent
	}

	err := Do(context.Background(), op, fastConfig(3))
	require.Error(t, err)
	assert.ErrorIs(t, err, persistent)
	assert.Contains(t, err.Error(), "max retry attempts (3) exceeded")
	assert.Equal(t, 3, attempts)
}

func TestRetrySingleAttemptReturnsErrorUnchanged(t *testing.T) {
	persistent := errors.New("persistent error")
	err := Do(context.Background(), func() error { return persistent }, fastConfig(1))
	assert.Same(t, persistent, err)
}

func TestRetryWithNonRetryableError(t *testing.T) {
	attempts := 0
	authError := &errs.Error{
		Type:    errs.ErrorTypeAuth,
		Message: "authentication required",
		Code:    401,
	}

	cfg := fastConfig(5)
	cfg.RetryIf = DefaultRetryIf

	err := Do(context.Background(), func() error {
		attempts++
		return authError
	}, cfg)

	assert.Same(t, authError, err)
	assert.Equal(t, 1, attempts, "auth errors are not retried")
}

func TestRetryWithContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	attempts := 0

	cfg := fastConfig(5)
	cfg.InitialInterval = 50 * time.Millisecond
	cfg.MaxInterval = 50 * time.Millisecond

	err := Do(ctx, func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("error")
	}, cfg)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, attempts, 2)
}

func TestRetryOnRetryCallback(t *testing.T) {
	var seen []int
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		seen = append(seen, attempt)
		assert.Greater(t, delay, time.Duration(0))
	}

	_ = Do(context.Background(), func() error { return errors.New("fail") }, cfg)
	assert.Equal(t, []int{1, 2}, seen)
}

func TestRetryLogsAttempts(t *testing.T) {
	log := logger.NewTestLogger()
	cfg := fastConfig(2)
	cfg.Logger = log

	_ = Do(context.Background(), func() error { return errors.New("fail") }, cfg)

	assert.True(t, log.HasMessage("retrying operation"))
	assert.True(t, log.HasMessage("max retry attempts exceeded"))
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	result, err := DoWithResult(context.Background(), func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("temporary error")
		}
		return "success", nil
	}, fastConfig(3))

	require.NoError(t, err)
	assert.Equal(t, "success", result)
	assert.Equal(t, 2, attempts)
}

func TestDefaultRetryIf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"rate limit", &errs.Error{Type: errs.ErrorTypeRateLimit, Code: 429}, true},
		{"server", &errs.Error{Type: errs.ErrorTypeServerError, Code: 503}, true},
		{"not found", &errs.Error{Type: errs.ErrorTypeNotFound, Code: 404}, false},
		{"config", errs.NewConfigError(nil, "invalid endpoint: x"), false},
		{"plain", errors.New("connection reset"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultRetryIf(tt.err))
		})
	}
}

func TestFromSettings(t *testing.T) {
	log := logger.NewNopLogger()

	cfg := FromSettings(config.RetryConfig{
		Enabled:         true,
		MaxAttempts:     5,
		InitialInterval: 2 * time.Second,
		MaxInterval:     time.Minute,
		Multiplier:      1.5,
	}, log)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.InitialInterval)
	assert.Equal(t, time.Minute, cfg.MaxInterval)
	assert.Equal(t, 1.5, cfg.Multiplier)

	disabled := FromSettings(config.RetryConfig{Enabled: false, MaxAttempts: 5}, log)
	assert.Equal(t, 1, disabled.MaxAttempts)
}

func TestRetrierWithMaxAttempts(t *testing.T) {
	r := NewRetrier(fastConfig(3))
	r2 := r.WithMaxAttempts(1)

	assert.Equal(t, 3, r.Config().MaxAttempts)
	assert.Equal(t, 1, r2.Config().MaxAttempts)

	attempts := 0
	_ = r2.Do(context.Background(), func() error {
		attempts++
		return errors.New("fail")
	})
	assert.Equal(t, 1, attempts)
}
