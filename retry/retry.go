// Package retry provides the single retry utility shared by the storage
// manager and the processing orchestrator, parameterized by attempt count,
// delay policy, and a transient-error classifier.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config controls one retry loop.
type Config struct {
	// Attempts is the total number of tries, including the first. Values
	// below 1 are treated as 1.
	Attempts int

	// Delay is the base wait between attempts.
	Delay time.Duration

	// Exponential doubles the wait after each attempt up to MaxDelay;
	// otherwise the delay is fixed.
	Exponential bool

	// MaxDelay caps exponential growth. 0 means one minute.
	MaxDelay time.Duration

	// Classify decides whether an error is worth retrying. A nil classifier
	// retries every error.
	Classify func(error) bool

	// OnRetry is invoked before each re-attempt with the upcoming attempt
	// number (2-based) and the error that caused it.
	OnRetry func(attempt int, err error)
}

// Do runs op until it succeeds, the classifier rejects its error, the
// attempt budget is spent, or ctx is done. The returned error is op's last
// error, never a retry-internal one.
func Do(ctx context.Context, cfg Config, op func(ctx context.Context) error) error {
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var policy backoff.BackOff
	if cfg.Exponential {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = cfg.Delay
		exp.MaxInterval = cfg.MaxDelay
		if exp.MaxInterval == 0 {
			exp.MaxInterval = time.Minute
		}
		exp.MaxElapsedTime = 0 // bounded by attempt count, not wall clock
		policy = exp
	} else {
		policy = backoff.NewConstantBackOff(cfg.Delay)
	}
	policy = backoff.WithContext(backoff.WithMaxRetries(policy, uint64(attempts-1)), ctx)

	attempt := 0
	var lastErr error

	err := backoff.RetryNotify(
		func() error {
			attempt++
			err := op(ctx)
			if err == nil {
				return nil
			}
			lastErr = err
			if cfg.Classify != nil && !cfg.Classify(err) {
				return backoff.Permanent(err)
			}
			return err
		},
		policy,
		func(err error, _ time.Duration) {
			if cfg.OnRetry != nil {
				cfg.OnRetry(attempt+1, err)
			}
		},
	)
	if err != nil && lastErr != nil {
		// Surface op's error rather than a context or permanent wrapper.
		return lastErr
	}
	return err
}
