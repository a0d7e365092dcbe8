package llm

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"net/http"
	"time"
)

// RetryProvider retries one backend with exponential backoff and jitter.
// It never switches backends; an exhausted retry surfaces to the interview
// as a processing error and the participant may resend the same answer.
type RetryProvider struct {
	inner  Provider
	config RetryConfig
}

// WithRetry wraps a Provider with retry logic. Fewer than one attempt is
// treated as a single attempt.
func WithRetry(p Provider, cfg RetryConfig) Provider {
	cfg.MaxAttempts = max(cfg.MaxAttempts, 1)
	return &RetryProvider{inner: p, config: cfg}
}

// retryClass is how a failed call is retried.
type retryClass int

const (
	// retryNever: the same request would fail again.
	retryNever retryClass = iota
	// retryOnce: a malformed or empty reply; one more sample is worth it.
	retryOnce
	// retryBackoff: transient transport or capacity failure.
	retryBackoff
)

func classifyRetry(err error) retryClass {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retryNever
	}

	var maxTok *ErrMaxTokensExceeded
	var invalid *ErrInvalidResponse
	var empty *ErrEmptyResponse
	var rl *ErrRateLimit
	var unavailable *ErrProviderUnavailable
	switch {
	case errors.As(err, &maxTok):
		// The reply budget is configuration; a retry truncates again.
		return retryNever
	case errors.As(err, &invalid), errors.As(err, &empty):
		return retryOnce
	case errors.As(err, &rl):
		return retryBackoff
	case errors.As(err, &unavailable):
		// Client errors (bad key, unknown model) are not transient.
		if s := unavailable.Status; s >= 400 && s < 500 &&
			s != http.StatusRequestTimeout && s != http.StatusTooManyRequests {
			return retryNever
		}
		return retryBackoff
	}
	// Network errors and anything unrecognised.
	return retryBackoff
}

func (r *RetryProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	var lastErr error
	sampledAgain := false

	for attempt := range r.config.MaxAttempts {
		resp, err := r.inner.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		switch classifyRetry(err) {
		case retryNever:
			return nil, err
		case retryOnce:
			if sampledAgain {
				return nil, err
			}
			sampledAgain = true
		}

		if attempt == r.config.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.backoff(attempt, err)):
		}
	}

	return nil, lastErr
}

func (r *RetryProvider) ModelID() string {
	return r.inner.ModelID()
}

// backoff computes the wait before the next attempt. Rate limits with a
// RetryAfter hint are honoured as is.
func (r *RetryProvider) backoff(attempt int, err error) time.Duration {
	var rl *ErrRateLimit
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}

	wait := float64(r.config.InitialWait) * math.Pow(r.config.Multiplier, float64(attempt))
	wait = math.Min(wait, float64(r.config.MaxWait))
	wait += wait * 0.2 * (2*rand.Float64() - 1)
	return time.Duration(math.Max(wait, 0))
}
