package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Func - повторяемая операция, обычно один Commit на своем соединении
type Func func(ctx context.Context) error

// Retryer повторяет операцию при временных ошибках
type Retryer struct {
	config  Config
	rejects *Rejects
}

// NewRetryer создает Retryer
func NewRetryer(config Config) (*Retryer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}

	r := &Retryer{config: config}
	if config.Enabled && config.Rejects.Enabled {
		rejects, err := OpenRejects(config.Rejects)
		if err != nil {
			return nil, fmt.Errorf("failed to open rejects: %w", err)
		}
		r.rejects = rejects
	}
	return r, nil
}

// Do выполняет fn с повторами
func (r *Retryer) Do(ctx context.Context, fn Func) error {
	return r.do(ctx, fn, "", nil)
}

// DoWithData выполняет fn с повторами. Если операция так и не прошла,
// data сохраняется в файл отклоненных под меткой source.
func (r *Retryer) DoWithData(ctx context.Context, fn Func, source string, data any) error {
	return r.do(ctx, fn, source, data)
}

func (r *Retryer) do(ctx context.Context, fn Func, source string, data any) error {
	if !r.config.Enabled {
		return fn(ctx)
	}

	attempts := 0
	for {
		attempts++

		err := fn(ctx)
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !r.retryable(err) {
			r.reject(source, data, attempts, err, FailureNonRetryable)
			return err
		}

		if r.config.MaxAttempts > 0 && attempts >= r.config.MaxAttempts {
			r.reject(source, data, attempts, err, FailureMaxAttempts)
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", r.config.MaxAttempts, err)
		}

		delay := r.calculateDelay(attempts)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempts, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("context cancelled during retry: %w", errors.Join(ctx.Err(), err))
		}
	}
}

func (r *Retryer) reject(source string, data any, attempts int, err error, failure FailureType) {
	if r.rejects == nil || data == nil {
		return
	}
	r.rejects.Add(Reject{
		Timestamp:   time.Now(),
		Source:      source,
		Attempts:    attempts,
		LastError:   err.Error(),
		FailureType: failure,
		Data:        data,
	})
}

// calculateDelay вычисляет задержку перед повтором attempt
func (r *Retryer) calculateDelay(attempt int) time.Duration {
	var delay time.Duration

	switch r.config.BackoffStrategy {
	case BackoffLinear:
		delay = r.config.InitialDelay * time.Duration(attempt)
	case BackoffExponential:
		multiplier := math.Pow(r.config.BackoffMultiplier, float64(attempt-1))
		delay = time.Duration(float64(r.config.InitialDelay) * multiplier)
	default:
		delay = r.config.InitialDelay
	}

	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}

	if r.config.Jitter > 0 {
		delay += time.Duration(float64(delay) * r.config.Jitter * (rand.Float64()*2 - 1))
		if delay < 0 {
			delay = r.config.InitialDelay
		}
	}

	return delay
}

func (r *Retryer) retryable(err error) bool {
	if r.config.Retryable == nil {
		return true
	}
	return r.config.Retryable(err)
}

// Rejects возвращает файл отклоненных, nil если он выключен
func (r *Retryer) Rejects() *Rejects {
	return r.rejects
}

// Close сохраняет файл отклоненных
func (r *Retryer) Close() error {
	if r.rejects != nil {
		return r.rejects.Save()
	}
	return nil
}
