// Package retry runs provider calls with a bounded, constant-delay retry policy.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Policy bounds how often and how fast a call is retried.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do calls fn until it succeeds, returns a Permanent error, the attempts run
// out or ctx is done. name labels the log lines.
func Do(ctx context.Context, p Policy, logger *zap.Logger, name string, fn func(ctx context.Context) error) error {
	if p.Attempts < 1 {
		p.Attempts = 1
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(p.Delay)
	b = backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.Attempts-1)), ctx)

	attempt := 0
	op := func() error {
		attempt++
		return fn(ctx)
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("Retrying "+name+" request",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", p.Attempts),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	err := backoff.RetryNotify(op, b, notify)
	if err == nil {
		return nil
	}
	if attempt <= 1 {
		return err
	}
	return fmt.Errorf("failed after %d attempts: %w", attempt, err)
}
