package notify

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy governs retries around primary-channel sends only; the
// fallback path never retries.
type RetryPolicy struct {
	InitialInterval     time.Duration
	Multiplier          float64
	MaxInterval         time.Duration
	RandomizationFactor float64
	MaxTries            uint
}

// DefaultRetryPolicy is exponential backoff starting at 2s, doubling, capped
// at 10s, with randomized jitter, for at most 3 attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval:     2 * time.Second,
		Multiplier:          2,
		MaxInterval:         10 * time.Second,
		RandomizationFactor: 0.5,
		MaxTries:            3,
	}
}

// Run executes op under the policy and reports how many tries were made
// along with the final error (nil on success).
func (p RetryPolicy) Run(ctx context.Context, op func(context.Context) error) (int, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.Multiplier = p.Multiplier
	b.MaxInterval = p.MaxInterval
	b.RandomizationFactor = p.RandomizationFactor

	tries := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		tries++
		return struct{}{}, op(ctx)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(p.MaxTries))
	return tries, err
}
