package util

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"
)

type flaggedError struct {
	transient bool
}

func (e *flaggedError) Error() string   { return fmt.Sprintf("flagged (transient=%v)", e.transient) }
func (e *flaggedError) Retryable() bool { return e.transient }

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "ETIMEDOUT", err: syscall.ETIMEDOUT, expected: true},
		{name: "ECONNRESET", err: syscall.ECONNRESET, expected: true},
		{name: "ENOENT (not retryable)", err: syscall.ENOENT, expected: false},
		{name: "timeout in error message", err: errors.New("Client.Timeout exceeded while awaiting headers"), expected: true},
		{name: "unexpected EOF", err: errors.New("unexpected EOF"), expected: true},
		{name: "generic error (not retryable)", err: errors.New("invalid argument"), expected: false},
		{name: "context canceled", err: context.Canceled, expected: false},
		{name: "self-declared transient", err: &flaggedError{transient: true}, expected: true},
		{name: "self-declared permanent", err: &flaggedError{transient: false}, expected: false},
		{name: "wrapped self-declared transient", err: fmt.Errorf("search: %w", &flaggedError{transient: true}), expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsRetryableError(tt.err)
			if result != tt.expected {
				t.Errorf("IsRetryableError(%v) = %v, expected %v", tt.err, result, tt.expected)
			}
		})
	}
}

func testRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		InitialWait: 10 * time.Millisecond,
		MaxWait:     100 * time.Millisecond,
	}
}

func TestRetryWithBackoff_ImmediateSuccess(t *testing.T) {
	attempts := 0
	result, err := RetryWithBackoff(context.Background(), testRetryConfig(), func() (int, error) {
		attempts++
		return 42, nil
	}, "test operation")

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if result != 42 {
		t.Errorf("Expected result 42, got: %d", result)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestRetryWithBackoff_SuccessAfterRetries(t *testing.T) {
	attempts := 0
	result, err := RetryWithBackoff(context.Background(), testRetryConfig(), func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", syscall.ETIMEDOUT
		}
		return "success", nil
	}, "test operation")

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if result != "success" {
		t.Errorf("Expected result 'success', got: %s", result)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got: %d", attempts)
	}
}

func TestRetryWithBackoff_FailureAfterMaxRetries(t *testing.T) {
	attempts := 0
	_, err := RetryWithBackoff(context.Background(), testRetryConfig(), func() (int, error) {
		attempts++
		return 0, &flaggedError{transient: true}
	}, "test operation")

	if err == nil {
		t.Fatal("Expected error after max retries, got nil")
	}
	var flagged *flaggedError
	if !errors.As(err, &flagged) {
		t.Errorf("Expected final error to wrap the operation error, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts (max), got: %d", attempts)
	}
}

func TestRetryWithBackoff_NonRetryableError(t *testing.T) {
	attempts := 0
	_, err := RetryWithBackoff(context.Background(), testRetryConfig(), func() (int, error) {
		attempts++
		return 0, syscall.ENOENT
	}, "test operation")

	if err == nil {
		t.Error("Expected error, got nil")
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt (no retry for non-retryable), got: %d", attempts)
	}
}

func TestRetryWithBackoff_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	cfg := &RetryConfig{MaxAttempts: 5, InitialWait: time.Hour, MaxWait: time.Hour}

	_, err := RetryWithBackoff(ctx, cfg, func() (int, error) {
		attempts++
		cancel()
		return 0, syscall.ETIMEDOUT
	}, "test operation")

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt before cancellation, got: %d", attempts)
	}
}

func TestRetry_NoReturnValue(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), testRetryConfig(), func() error {
		attempts++
		if attempts < 2 {
			return syscall.ETIMEDOUT
		}
		return nil
	}, "test operation")

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got: %d", attempts)
	}
}

type throttledError struct {
	after time.Duration
}

func (e *throttledError) Error() string                 { return "throttled" }
func (e *throttledError) Retryable() bool               { return true }
func (e *throttledError) RetryAfterHint() time.Duration { return e.after }

func TestRetryWithBackoff_WaitsAtLeastRetryAfter(t *testing.T) {
	cfg := &RetryConfig{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond}
	attempts := 0
	start := time.Now()
	_, err := RetryWithBackoff(context.Background(), cfg, func() (int, error) {
		attempts++
		if attempts == 1 {
			return 0, fmt.Errorf("search: %w", &throttledError{after: 80 * time.Millisecond})
		}
		return 1, nil
	}, "test operation")

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("Expected to wait at least 80ms, waited %v", elapsed)
	}
}

func TestRetryWithBackoff_RetryAfterAboveCap(t *testing.T) {
	cfg := &RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: time.Millisecond, MaxRetryAfter: 50 * time.Millisecond}
	attempts := 0
	throttled := &throttledError{after: time.Hour}
	_, err := RetryWithBackoff(context.Background(), cfg, func() (int, error) {
		attempts++
		return 0, throttled
	}, "test operation")

	if !errors.Is(err, throttled) {
		t.Errorf("Expected the throttled error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestRetryAfterHint(t *testing.T) {
	if got := RetryAfterHint(errors.New("plain")); got != 0 {
		t.Errorf("plain error hint = %v", got)
	}
	if got := RetryAfterHint(fmt.Errorf("wrapped: %w", &throttledError{after: time.Second})); got != time.Second {
		t.Errorf("wrapped hint = %v, want 1s", got)
	}
}

func TestHTTPRetryConfig(t *testing.T) {
	cfg := HTTPRetryConfig()

	if cfg.MaxAttempts != 3 {
		t.Errorf("Expected MaxAttempts=3, got: %d", cfg.MaxAttempts)
	}
	if !cfg.Jitter {
		t.Error("Expected jitter to be enabled for HTTP retries")
	}
	if cfg.MaxWait < cfg.InitialWait {
		t.Errorf("MaxWait %v must not be below InitialWait %v", cfg.MaxWait, cfg.InitialWait)
	}
	if cfg.MaxRetryAfter < cfg.MaxWait {
		t.Errorf("MaxRetryAfter %v must not be below MaxWait %v", cfg.MaxRetryAfter, cfg.MaxWait)
	}
}
