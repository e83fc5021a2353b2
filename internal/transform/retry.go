package transform

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy bounds repeated attempts of a transformation call:
// MaxAttempts tries total, with exponentially growing delay between
// attempts clamped to [BaseDelay, MaxDelay].
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy mirrors the service's production settings: three
// attempts, 2s initial delay doubling up to 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 10 * time.Second}
}

// Do runs fn until it succeeds, attempts are exhausted, or ctx is done.
// The last error is returned once attempts run out.
func (p RetryPolicy) Do(ctx context.Context, fn func() (string, error)) (string, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.BaseDelay

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		out, err := fn()
		if err == nil {
			return out, nil
		}
		last = err
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return "", fmt.Errorf("transform: %d attempts exhausted: %w", attempts, last)
}

// Retrying wraps a Transformer with a RetryPolicy, so callers see each
// operation as one fallible call.
type Retrying struct {
	next   Transformer
	policy RetryPolicy
}

// NewRetrying wraps next with the given policy.
func NewRetrying(next Transformer, policy RetryPolicy) *Retrying {
	return &Retrying{next: next, policy: policy}
}

// TranscribeAudio retries the wrapped transcription call.
func (r *Retrying) TranscribeAudio(ctx context.Context, path string) (string, error) {
	return r.policy.Do(ctx, func() (string, error) { return r.next.TranscribeAudio(ctx, path) })
}

// ExtractText retries the wrapped extraction call.
func (r *Retrying) ExtractText(ctx context.Context, path string) (string, error) {
	return r.policy.Do(ctx, func() (string, error) { return r.next.ExtractText(ctx, path) })
}

// CleanText retries the wrapped cleaning call.
func (r *Retrying) CleanText(ctx context.Context, path string) (string, error) {
	return r.policy.Do(ctx, func() (string, error) { return r.next.CleanText(ctx, path) })
}

// Verify *Retrying satisfies Transformer at compile time.
var _ Transformer = (*Retrying)(nil)
