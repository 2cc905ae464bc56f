package retry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

var errDeadlock = errors.New("deadlock victim")

func TestRetryer_Success(t *testing.T) {
	retryer, err := NewRetryer(EnableRetry(3, 10*time.Millisecond))
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	attempts := 0
	err = retryer.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return nil
	})
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestRetryer_SuccessAfterRetries(t *testing.T) {
	config := EnableRetry(5, 10*time.Millisecond)
	config.Jitter = 0
	retryer, err := NewRetryer(config)
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	attempts := 0
	start := time.Now()
	err = retryer.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errDeadlock
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected success, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	// 10ms + 20ms
	if d := time.Since(start); d < 30*time.Millisecond {
		t.Errorf("Expected delays between retries, took %v", d)
	}
}

func TestRetryer_MaxAttemptsExceeded(t *testing.T) {
	retryer, err := NewRetryer(EnableRetry(3, time.Millisecond))
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	attempts := 0
	err = retryer.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errDeadlock
	})

	if !errors.Is(err, errDeadlock) {
		t.Errorf("Expected wrapped deadlock error, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryer_RetryablePredicate(t *testing.T) {
	config := EnableRetry(5, time.Millisecond)
	config.Retryable = func(err error) bool { return errors.Is(err, errDeadlock) }
	retryer, err := NewRetryer(config)
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	permanent := errors.New("unique constraint")
	attempts := 0
	err = retryer.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return permanent
	})

	if err != permanent {
		t.Errorf("Expected the original error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Non-retryable error must not be repeated, got %d attempts", attempts)
	}
}

func TestRetryer_CalculateDelay(t *testing.T) {
	config := EnableRetry(10, 100*time.Millisecond)
	config.MaxDelay = time.Second
	config.Jitter = 0

	tests := []struct {
		strategy BackoffStrategy
		attempt  int
		want     time.Duration
	}{
		{BackoffConstant, 3, 100 * time.Millisecond},
		{BackoffLinear, 3, 300 * time.Millisecond},
		{BackoffExponential, 1, 100 * time.Millisecond},
		{BackoffExponential, 3, 400 * time.Millisecond},
		{BackoffExponential, 6, time.Second},
	}

	for _, tt := range tests {
		config.BackoffStrategy = tt.strategy
		r := &Retryer{config: config}
		if got := r.calculateDelay(tt.attempt); got != tt.want {
			t.Errorf("%s attempt %d: delay %v, want %v", tt.strategy, tt.attempt, got, tt.want)
		}
	}
}

func TestRetryer_ContextCancellation(t *testing.T) {
	config := EnableRetry(0, 50*time.Millisecond)
	config.Jitter = 0
	retryer, err := NewRetryer(config)
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	err = retryer.Do(ctx, func(ctx context.Context) error {
		return errDeadlock
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline error, got: %v", err)
	}
	if !errors.Is(err, errDeadlock) {
		t.Errorf("Expected last attempt error to be kept, got: %v", err)
	}
}

func TestRetryer_OnRetryCallback(t *testing.T) {
	config := EnableRetry(3, time.Millisecond)
	var calls []int
	config.OnRetry = func(attempt int, err error, delay time.Duration) {
		calls = append(calls, attempt)
	}
	retryer, err := NewRetryer(config)
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	retryer.Do(context.Background(), func(ctx context.Context) error { return errDeadlock })

	if len(calls) != 2 || calls[0] != 1 || calls[1] != 2 {
		t.Errorf("Expected OnRetry for attempts 1 and 2, got %v", calls)
	}
}

func TestRetryer_Disabled(t *testing.T) {
	retryer, err := NewRetryer(DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	attempts := 0
	err = retryer.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errDeadlock
	})
	if err != errDeadlock || attempts != 1 {
		t.Errorf("Disabled retryer must call once and return the error as is, got %v after %d", err, attempts)
	}
}

func TestRetryer_RejectsFailedData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rejects.json")
	config := EnableRetry(2, time.Millisecond)
	config.Rejects.Enabled = true
	config.Rejects.FilePath = path

	retryer, err := NewRetryer(config)
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	keys := []string{"a", "b"}
	retryer.DoWithData(context.Background(), func(ctx context.Context) error {
		return errDeadlock
	}, "upsert [dbo].[Products]", keys)

	if err := retryer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := OpenRejects(config.Rejects)
	if err != nil {
		t.Fatalf("OpenRejects failed: %v", err)
	}
	entries := reopened.Entries()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 reject, got %d", len(entries))
	}
	e := entries[0]
	if e.FailureType != FailureMaxAttempts || e.Attempts != 2 || e.Source != "upsert [dbo].[Products]" {
		t.Errorf("Unexpected reject: %+v", e)
	}
	if data, ok := e.Data.([]any); !ok || len(data) != 2 {
		t.Errorf("Expected reloaded data with 2 keys, got %#v", e.Data)
	}
}

func TestConfig_Validate(t *testing.T) {
	config := EnableRetry(3, time.Second)
	config.MaxDelay = time.Millisecond
	if err := config.Validate(); err == nil {
		t.Error("Expected error when max_delay < initial_delay")
	}

	config = EnableRetry(3, time.Millisecond)
	config.BackoffStrategy = "random"
	if err := config.Validate(); err == nil {
		t.Error("Expected error for unknown backoff")
	}

	config = EnableRetry(3, time.Millisecond)
	config.Rejects.Enabled = true
	config.Rejects.FilePath = ""
	if err := config.Validate(); err == nil {
		t.Error("Expected error for rejects without file")
	}
}
