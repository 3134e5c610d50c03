package guard

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/civic-assoc/membership-api/internal/app/apperr"
)

// MaxAllocationAttempts bounds how often a reference-allocating unit of work is run.
const MaxAllocationAttempts = 3

// ErrCollision marks an attempt that lost a race on a reference uniqueness constraint.
// Only errors wrapping ErrCollision are retried.
var ErrCollision = errors.New("reference collision")

// RetryObserver is notified each time an allocation attempt collides.
type RetryObserver interface {
	ObserveReferenceRetry(family string)
}

var allocationRetryDelay = 10 * time.Millisecond

// WithAllocationRetry runs fn up to MaxAllocationAttempts times while it fails with
// ErrCollision. Exhaustion surfaces REFERENCE_ALLOCATION_FAILED.
func WithAllocationRetry(ctx context.Context, family string, obs RetryObserver, fn func(ctx context.Context) error) error {
	op := func() error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrCollision) {
			if obs != nil {
				obs.ObserveReferenceRetry(family)
			}
			return err
		}
		return backoff.Permanent(err)
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(allocationRetryDelay), MaxAllocationAttempts-1),
		ctx,
	)
	err := backoff.Retry(op, b)
	if errors.Is(err, ErrCollision) {
		e := apperr.Unavailable(apperr.CodeReferenceAllocationFailed, "could not allocate a unique reference")
		e.Details = map[string]any{"family": family, "attempts": MaxAllocationAttempts}
		return e.WithHints("retry the request")
	}
	return err
}
