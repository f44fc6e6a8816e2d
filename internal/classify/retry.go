package classify

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/abhisek/taxassign/internal/hits"
	"github.com/abhisek/taxassign/internal/taxonomy"
)

// RetryConfig controls whole-query retries after taxonomy lookup failures.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultRetryConfig returns the retry settings used when none are configured.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		InitialWait: 200 * time.Millisecond,
		MaxWait:     5 * time.Second,
		Multiplier:  2,
	}
}

// RetryClassifier is a decorator that reruns a whole query when it fails on
// a taxonomy lookup. The classifier itself never retries single lookups.
type RetryClassifier struct {
	inner  QueryClassifier
	config RetryConfig
	sleep  func(ctx context.Context, d time.Duration) error
}

// WithRetry wraps a QueryClassifier with retry logic.
func WithRetry(qc QueryClassifier, cfg RetryConfig) QueryClassifier {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &RetryClassifier{inner: qc, config: cfg, sleep: sleepContext}
}

func (r *RetryClassifier) Classify(ctx context.Context, queryID string, hs []*hits.Hit) (*Result, error) {
	var lastErr error
	for attempt := range r.config.MaxAttempts {
		res, err := r.inner.Classify(ctx, queryID, hs)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if !shouldRetry(err) {
			return nil, err
		}

		// Last attempt: don't sleep, just return the error.
		if attempt == r.config.MaxAttempts-1 {
			break
		}

		if err := r.sleep(ctx, r.backoff(attempt)); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// shouldRetry reports whether err came from the taxonomy collaborator.
// Malformed input and cancellation are final.
func shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var fe *hits.FormatError
	if errors.As(err, &fe) {
		return false
	}
	if errors.Is(err, taxonomy.ErrNodeNotFound) {
		return false
	}
	var le *taxonomy.LookupError
	return errors.As(err, &le)
}

// backoff computes the wait duration for the given attempt.
func (r *RetryClassifier) backoff(attempt int) time.Duration {
	wait := float64(r.config.InitialWait) * math.Pow(r.config.Multiplier, float64(attempt))
	if wait > float64(r.config.MaxWait) {
		wait = float64(r.config.MaxWait)
	}

	// Add ±20% jitter.
	jitter := wait * 0.2 * (2*rand.Float64() - 1)
	wait += jitter

	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
