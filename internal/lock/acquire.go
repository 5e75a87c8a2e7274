package lock

import (
	"context"
	"fmt"
	"time"

	"schedule-service/pkg/response"
)

const retryInterval = 25 * time.Millisecond

// Acquire polls the locker until the key is taken or wait elapses.
// The returned release func must be called exactly once.
func Acquire(ctx context.Context, l Locker, key string, ttl, wait time.Duration) (func(context.Context) error, error) {
	const op = "lock.Acquire"

	deadline := time.Now().Add(wait)

	for {
		token, ok, err := l.Lock(ctx, key, ttl)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if ok {
			return func(ctx context.Context) error {
				return l.Unlock(ctx, key, token)
			}, nil
		}

		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%s: %s: %w", op, key, response.ErrLocked)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(retryInterval):
		}
	}
}
