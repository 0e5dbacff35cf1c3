package queue

import "time"

type BackoffKind string

const (
	BackoffExponential BackoffKind = "exponential"
	BackoffFixed       BackoffKind = "fixed"
)

// RetryPolicy controls how many times a job is attempted and how long
// the queue waits between attempts. It is a plain value so policies can
// be exercised in tests without a Redis connection.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     BackoffKind
	BaseDelay   time.Duration
}

// Delay returns how long a job must rest after `failures` failed
// attempts before it is delivered again. Exponential doubling starts
// from BaseDelay: 2s, 4s, 8s with a 2s base.
func (p RetryPolicy) Delay(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	if p.Backoff == BackoffFixed {
		return p.BaseDelay
	}
	return p.BaseDelay << (failures - 1)
}

// Exhausted reports whether a job that has been attempted `attempts`
// times is out of retries.
func (p RetryPolicy) Exhausted(attempts int) bool {
	return attempts >= p.MaxAttempts
}

// DeliveryRetryPolicy is applied to the recipient-delivery queue.
func DeliveryRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: BackoffExponential, BaseDelay: 2 * time.Second}
}

// BatchRetryPolicy is applied to the batch-bookkeeping queue.
func BatchRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2, Backoff: BackoffFixed, BaseDelay: 5 * time.Second}
}
