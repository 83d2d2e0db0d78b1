// Package retry wraps idempotent reads in bounded exponential backoff.
// Writes are never retried.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	MaxTries   = 3
	MaxElapsed = 2 * time.Second
)

// Transient reports whether err is worth another attempt: network errors and
// server-side timeouts from the driver. Context cancellation is not transient.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return mongo.IsNetworkError(err) || mongo.IsTimeout(err)
}

// Read runs op up to MaxTries times within MaxElapsed, retrying only
// transient errors. Other errors are returned on the first attempt.
func Read[T any](ctx context.Context, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = time.Second

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !Transient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(MaxTries),
		backoff.WithMaxElapsedTime(MaxElapsed),
	)
}
