package automation

import (
	"context"
	"errors"
	"time"
)

// ErrConditionTimeout is returned when a polled condition never held.
var ErrConditionTimeout = errors.New("condition not met before timeout")

// ErrActionTimeout is returned when a single page action overran its step
// timeout.
var ErrActionTimeout = errors.New("page action did not finish before timeout")

// AwaitCondition evaluates predicate immediately and then every interval
// until it returns true, the timeout elapses, or ctx ends. It returns nil on
// success, ErrConditionTimeout on deadline, or the context error.
func AwaitCondition(ctx context.Context, predicate func(context.Context) bool, interval, timeout time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if predicate(ctx) {
		return nil
	}
	if timeout <= 0 {
		return ErrConditionTimeout
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			if predicate(ctx) {
				return nil
			}
			return ErrConditionTimeout
		case <-ticker.C:
			if predicate(ctx) {
				return nil
			}
		}
	}
}

// sleepContext waits for d or until ctx ends.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
