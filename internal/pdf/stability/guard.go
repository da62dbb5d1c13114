// Package stability runs PDF work under panic recovery and a deadline.
// pdfcpu panics on some malformed documents; a Guard turns those panics into
// errors so one bad template cannot take the process down.
package stability

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Config configures a Guard
type Config struct {
	// Timeout bounds a single operation; zero disables the deadline
	Timeout time.Duration `json:"timeout"`
}

// DefaultConfig returns the defaults used by the contract pipeline
func DefaultConfig() Config {
	return Config{Timeout: 30 * time.Second}
}

// PanicError is returned when the guarded function panicked
type PanicError struct {
	Operation string
	Value     any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("operation %s panicked: %v", e.Operation, e.Value)
}

// TimeoutError is returned when the guarded function outlived its deadline
type TimeoutError struct {
	Operation string
	Timeout   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation %s timed out after %v", e.Operation, e.Timeout)
}

// Guard executes operations with recovery. It is safe for concurrent use.
type Guard struct {
	config Config
	logger *zap.Logger
	panics atomic.Int64
}

// NewGuard creates a guard. A nil logger discards logs.
func NewGuard(cfg Config, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{config: cfg, logger: logger}
}

// Do runs fn on its own goroutine and waits for it, the deadline or ctx.
// A timed out fn keeps running in the background; its result is dropped.
func Do[T any](ctx context.Context, g *Guard, operation string, fn func() (T, error)) (T, error) {
	var zero T

	if g.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()
	}

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				g.record(operation, r, debug.Stack())
				done <- result{err: &PanicError{Operation: operation, Value: r}}
			}
		}()
		v, err := fn()
		done <- result{value: v, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			g.logger.Warn("operation timed out", zap.String("operation", operation), zap.Duration("timeout", g.config.Timeout))
			return zero, &TimeoutError{Operation: operation, Timeout: g.config.Timeout}
		}
		return zero, ctx.Err()
	}
}

func (g *Guard) record(operation string, value any, stack []byte) {
	g.panics.Add(1)
	g.logger.Error("panic recovered",
		zap.String("operation", operation),
		zap.Any("panic", value),
		zap.ByteString("stack", stack))
}

// PanicCount returns the number of panics recovered since creation
func (g *Guard) PanicCount() int {
	return int(g.panics.Load())
}
