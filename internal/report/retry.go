package report

import (
	"context"
	"fmt"
	"time"

	"git.home.luguber.info/inful/bundler/internal/compiler"
)

// BackoffMode selects how retry delays grow between delivery attempts.
type BackoffMode string

const (
	BackoffFixed       BackoffMode = "fixed"
	BackoffLinear      BackoffMode = "linear"
	BackoffExponential BackoffMode = "exponential"
)

// RetryPolicy encapsulates retry/backoff settings for transient delivery
// failures. It is immutable after construction.
type RetryPolicy struct {
	Mode       BackoffMode
	Initial    time.Duration
	Max        time.Duration
	MaxRetries int
}

// DefaultRetryPolicy returns a linear policy: 1s initial, 30s cap, 2 retries.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Mode: BackoffLinear, Initial: time.Second, Max: 30 * time.Second, MaxRetries: 2}
}

// Delay returns the backoff delay for the given retry attempt number
// (1-based: first retry => 1).
func (p RetryPolicy) Delay(retryCount int) time.Duration {
	if retryCount <= 0 {
		return 0
	}
	switch p.Mode {
	case BackoffFixed:
		return p.Initial
	case BackoffExponential:
		d := p.Initial * (1 << (retryCount - 1))
		if d > p.Max {
			return p.Max
		}
		return d
	default: // linear
		d := time.Duration(retryCount) * p.Initial
		if d > p.Max {
			return p.Max
		}
		return d
	}
}

// Validate ensures invariants; returns error if the policy cannot be applied.
func (p RetryPolicy) Validate() error {
	if p.Initial <= 0 {
		return fmt.Errorf("initial must be >0")
	}
	if p.Max <= 0 {
		return fmt.Errorf("max must be >0")
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	return nil
}

// RetryReporter wraps a Reporter with delivery retries.
type RetryReporter struct {
	Reporter Reporter
	Policy   RetryPolicy

	// sleep is replaceable in tests.
	sleep func(time.Duration)
}

// WithRetry wraps a reporter in the given policy.
func WithRetry(r Reporter, policy RetryPolicy) *RetryReporter {
	return &RetryReporter{Reporter: r, Policy: policy, sleep: time.Sleep}
}

func (r *RetryReporter) Report(ctx context.Context, summary compiler.Summary) error {
	err := r.Reporter.Report(ctx, summary)
	for retryCount := 1; err != nil && retryCount <= r.Policy.MaxRetries; retryCount++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		r.sleep(r.Policy.Delay(retryCount))
		err = r.Reporter.Report(ctx, summary)
	}
	return err
}
