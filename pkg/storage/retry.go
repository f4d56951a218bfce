package storage

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy bounds retries of transient failures at the adapter boundary.
// Business-rule failures are never retried.
type RetryPolicy struct {
	Attempts int
	BaseWait time.Duration
	MaxWait  time.Duration
}

// RetryPolicyFromConfig builds a policy from storage configuration.
func RetryPolicyFromConfig(cfg Config) RetryPolicy {
	return RetryPolicy{
		Attempts: cfg.RetryAttempts,
		BaseWait: cfg.RetryBaseWait,
		MaxWait:  cfg.RetryMaxWait,
	}
}

// Do runs op, retrying with jittered exponential backoff while the returned
// error is transient. The last error is surfaced once attempts are exhausted
// or the context deadline expires mid-wait.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := p.backoff(attempt)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ErrStorageUnavailable
			}
		}

		err = op(ctx)
		if err == nil || !IsTransient(err) {
			return err
		}
	}
	return err
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	base := p.BaseWait
	if base <= 0 {
		base = 50 * time.Millisecond
	}
	wait := base << uint(attempt-1)
	if p.MaxWait > 0 && wait > p.MaxWait {
		wait = p.MaxWait
	}
	// Full jitter keeps concurrent retries from thundering in lockstep.
	return time.Duration(rand.Int63n(int64(wait)) + 1)
}
