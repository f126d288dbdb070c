package listener

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sipeed/feishuclaw/pkg/logger"
)

// PanicError carries a panic recovered from a connection worker.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("connection worker panicked: %v", e.Value)
}

// runIsolated runs fn on its own goroutine and joins on its result. A panic
// in fn comes back as *PanicError. When ctx is cancelled the worker gets
// grace to return; after that runIsolated gives up on it and returns
// ctx.Err(), leaving the worker to finish on its own.
func runIsolated(ctx context.Context, grace time.Duration, fn func(context.Context) error) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- &PanicError{Value: r, Stack: debug.Stack()}
			}
		}()
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		logger.WarnCF("listener", "Connection worker did not exit in time, abandoning it", map[string]interface{}{
			"grace": grace.String(),
		})
		return ctx.Err()
	}
}
