package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/GengGeng026/habitboard/internal/model"
)

// ErrRetriesExhausted is returned after the full attempt budget fails
var ErrRetriesExhausted = errors.New("retries exhausted")

// StatusError is implemented by errors that carry an HTTP status code
type StatusError interface {
	error
	HTTPStatus() int
}

// Executor wraps a single remote call with bounded retries. Every
// failure is retried identically; only the log severity distinguishes
// recognized transient statuses from everything else.
type Executor struct {
	maxAttempts int
	backoff     Backoff
	sleep       func(context.Context, time.Duration) error
	logger      *slog.Logger
}

// NewExecutor creates an executor from the given retry configuration
func NewExecutor(cfg model.RetryConfig, logger *slog.Logger) *Executor {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		maxAttempts: maxAttempts,
		backoff:     NewBackoff(cfg.InitialDelay, cfg.MaxDelay),
		sleep:       sleepContext,
		logger:      logger,
	}
}

// SetSleep overrides the inter-attempt sleep. Tests use this to run
// the retry loop without real delays.
func (e *Executor) SetSleep(sleep func(context.Context, time.Duration) error) {
	e.sleep = sleep
}

// Do runs op until it succeeds or the attempt budget is spent. Each
// attempt is a fresh call with the same parameters; no state carries
// across attempts.
func Do[T any](ctx context.Context, e *Executor, name string, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		e.logAttempt(name, attempt, err)

		if attempt == e.maxAttempts-1 {
			break
		}
		delay := e.backoff.Delay(attempt)
		e.logger.Info("backing off", "operation", name, "delay", delay)
		if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
			return zero, sleepErr
		}
	}

	return zero, fmt.Errorf("%s: %w after %d attempts: %w", name, ErrRetriesExhausted, e.maxAttempts, lastErr)
}

// logAttempt classifies the failure for log severity. Rate limits and
// gateway errors are expected under load and log as warnings;
// everything else logs as an error but is retried the same way.
func (e *Executor) logAttempt(name string, attempt int, err error) {
	attrs := []any{
		"operation", name,
		"attempt", attempt + 1,
		"max_attempts", e.maxAttempts,
		"error", err,
	}

	var statusErr StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.HTTPStatus() {
		case http.StatusTooManyRequests:
			e.logger.Warn("rate limit exceeded", attrs...)
			return
		case http.StatusBadGateway, http.StatusGatewayTimeout:
			e.logger.Warn("gateway error", attrs...)
			return
		}
	}
	e.logger.Error("request failed", attrs...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
