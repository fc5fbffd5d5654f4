// api/ratelimit/invoker.go
package ratelimit

import (
	"context"
	"errors"
	"reflect"
	"runtime"
	"time"

	"go.uber.org/zap"

	logger "github.com/permsync/permsync/api/logging"
)

const (
	// DefaultMaxAttempts bounds the total number of invocations, including
	// the first one.
	DefaultMaxAttempts = 10
	// DefaultWait is the cool-down pushed onto the shared slot after a
	// retryable failure.
	DefaultWait = 2 * time.Second
)

// Options configures one wrapped invocation.
type Options struct {
	// Identifier keys the shared backoff slot. Empty derives it from the
	// operation's function identity, so distinct call sites get distinct
	// slots and repeated calls to the same operation share one.
	Identifier string
	// MaxAttempts caps total invocations; <= 0 uses DefaultMaxAttempts.
	MaxAttempts int
	// Wait is the backoff pushed per retryable failure; <= 0 uses DefaultWait.
	Wait time.Duration
	// Retryable lists the error kinds worth retrying, matched via errors.Is.
	// Any other error fails immediately on the first attempt.
	Retryable []error
}

// Invoker retries fallible operations against a shared backoff store.
// Concurrent callers using the same identifier suspend together until the
// slot's deadline passes.
type Invoker struct {
	store Store
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewInvoker creates an invoker over the given store.
func NewInvoker(store Store) *Invoker {
	return &Invoker{
		store: store,
		now:   time.Now,
		sleep: sleepFor,
	}
}

// Invoke runs op until it succeeds, fails with a non-retryable error, or the
// attempt budget is exhausted, in which case the last seen error is
// returned. Before every attempt the shared slot is consulted and honoured.
func (iv *Invoker) Invoke(ctx context.Context, op func(context.Context) error, opts Options) error {
	identifier := opts.Identifier
	if identifier == "" {
		identifier = operationIdentifier(op)
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	wait := opts.Wait
	if wait <= 0 {
		wait = DefaultWait
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := iv.waitForSlot(ctx, identifier); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr, opts.Retryable) {
			return lastErr
		}
		if attempt == maxAttempts {
			break
		}

		deadline := iv.now().Add(wait)
		if err := iv.store.Extend(ctx, identifier, deadline); err != nil {
			// A broken store must not break the retry itself; fall back to a
			// local wait.
			logger.Warn("Failed to extend shared backoff slot",
				zap.Error(err),
				zap.String("identifier", identifier))
		}
		logger.Debug("Retryable provider error, backing off",
			zap.Error(lastErr),
			zap.String("identifier", identifier),
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", maxAttempts))
		if err := iv.sleep(ctx, wait); err != nil {
			return err
		}
	}
	return lastErr
}

// waitForSlot suspends until the identifier's shared deadline has passed.
func (iv *Invoker) waitForSlot(ctx context.Context, identifier string) error {
	deadline, err := iv.store.Deadline(ctx, identifier)
	if err != nil {
		logger.Warn("Failed to read shared backoff slot",
			zap.Error(err),
			zap.String("identifier", identifier))
		return nil
	}
	if deadline.IsZero() {
		return nil
	}
	if remaining := deadline.Sub(iv.now()); remaining > 0 {
		return iv.sleep(ctx, remaining)
	}
	return nil
}

func isRetryable(err error, retryable []error) bool {
	for _, kind := range retryable {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// operationIdentifier derives the default slot key from the operation's
// function identity.
func operationIdentifier(op func(context.Context) error) string {
	fn := runtime.FuncForPC(reflect.ValueOf(op).Pointer())
	if fn == nil {
		return "anonymous"
	}
	return fn.Name()
}

func sleepFor(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
