package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/pfrederiksen/camp-watch/internal/logger"
)

// Multi delivers a message to every notifier, even when some fail.
type Multi []Notifier

// Notify returns the joined errors of the failed notifiers.
func (m Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", n, err))
		}
	}
	return errors.Join(errs...)
}

// retryPolicy repeats one delivery attempt with exponential backoff. Status
// errors that cannot succeed on retry stop it immediately. A nil policy
// attempts once.
type retryPolicy struct {
	initialInterval time.Duration
	maxElapsed      time.Duration
}

func newRetryPolicy(maxElapsed time.Duration) *retryPolicy {
	return &retryPolicy{initialInterval: 500 * time.Millisecond, maxElapsed: maxElapsed}
}

func (p *retryPolicy) do(ctx context.Context, site string, op func() error) error {
	if p == nil {
		return op()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.initialInterval
	b.MaxElapsedTime = p.maxElapsed

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := op()
		var se *StatusError
		if errors.As(err, &se) && !se.Temporary() {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		logger.Warn("notification failed, retrying", logger.Fields{
			"site":    site,
			"attempt": attempt,
			"wait":    wait.String(),
			"error":   err.Error(),
		})
	})
}

// Retrying retries a notifier that delivers a message in a single request.
// Channels that split a message retry each part themselves (see
// Discord.WithRetry) so parts already delivered are not sent twice.
type Retrying struct {
	next  Notifier
	retry *retryPolicy
}

// NewRetrying wraps next, giving up after maxElapsed.
func NewRetrying(next Notifier, maxElapsed time.Duration) *Retrying {
	return &Retrying{next: next, retry: newRetryPolicy(maxElapsed)}
}

// Notify calls the wrapped notifier until it succeeds or the budget runs out.
func (r *Retrying) Notify(ctx context.Context, msg Message) error {
	return r.retry.do(ctx, msg.Site, func() error {
		return r.next.Notify(ctx, msg)
	})
}
