package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy configures Do.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries     int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	Jitter         float64
	AttemptTimeout time.Duration
}

// DefaultPolicy retries three times starting at 500ms, doubling with ±30%
// jitter, never waiting more than 10s between attempts.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       10 * time.Second,
		Multiplier:     2,
		Jitter:         0.3,
		AttemptTimeout: 10 * time.Second,
	}
}

// RetryNotify is called before each retry with the failed attempt number
// (starting at 1), its error and the delay before the next attempt.
type RetryNotify func(attempt int, err error, delay time.Duration)

// cappedBackOff clamps the jittered delay to max, which ExponentialBackOff
// alone can overshoot by the randomization factor.
type cappedBackOff struct {
	backoff.BackOff
	max time.Duration
}

func (c cappedBackOff) NextBackOff() time.Duration {
	d := c.BackOff.NextBackOff()
	if d != backoff.Stop && c.max > 0 && d > c.max {
		return c.max
	}
	return d
}

func (p Policy) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialDelay
	exp.RandomizationFactor = p.Jitter
	if p.Multiplier > 0 {
		exp.Multiplier = p.Multiplier
	}
	if p.MaxDelay > 0 {
		exp.MaxInterval = p.MaxDelay
	}
	exp.MaxElapsedTime = 0
	exp.Reset()

	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(cappedBackOff{BackOff: exp, max: p.MaxDelay}, uint64(retries)), ctx)
}

// Do runs op until it succeeds, returns a non-transient error, or MaxRetries
// retries are used up, in which case the last error is returned. Each attempt
// gets its own AttemptTimeout; an attempt that hits it counts as transient.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error), notify RetryNotify) (T, error) {
	attempt := 0
	run := func() (T, error) {
		attempt++
		var zero T

		actx, cancel := ctx, context.CancelFunc(func() {})
		if p.AttemptTimeout > 0 {
			actx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
		}
		defer cancel()

		v, err := op(actx)
		switch {
		case err == nil:
			return v, nil
		case ctx.Err() != nil:
			return zero, backoff.Permanent(err)
		case IsTransient(err):
			return zero, err
		case errors.Is(err, context.DeadlineExceeded) && actx.Err() != nil:
			return zero, &TransientError{Op: "attempt", Err: err}
		default:
			return zero, backoff.Permanent(err)
		}
	}

	var onRetry backoff.Notify
	if notify != nil {
		onRetry = func(err error, delay time.Duration) {
			notify(attempt, err, delay)
		}
	}
	return backoff.RetryNotifyWithData(run, p.newBackOff(ctx), onRetry)
}
