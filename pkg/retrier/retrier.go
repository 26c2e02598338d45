// Package retrier retries transient RPC and HTTP failures with exponential
// backoff. Errors wrapped with Permanent stop the loop immediately, so
// credential and validation failures never burn retry budget.
package retrier

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultBaseDelay  = 500 * time.Millisecond
	defaultMaxDelay   = 15 * time.Second
	defaultGrowth     = 2.0
	defaultMaxRetries = 3
	defaultJitterFrac = 0.2
)

// Retrier holds a backoff policy. The zero value is not usable; construct
// with New.
type Retrier struct {
	baseDelay  time.Duration
	maxDelay   time.Duration
	growth     float64
	maxRetries int
	jitterFrac float64
}

// Option overrides one policy parameter.
type Option func(*Retrier)

// WithBaseDelay sets the delay before the first retry.
func WithBaseDelay(d time.Duration) Option {
	return func(r *Retrier) { r.baseDelay = d }
}

// WithMaxDelay caps the backoff delay.
func WithMaxDelay(d time.Duration) Option {
	return func(r *Retrier) { r.maxDelay = d }
}

// WithGrowthFactor sets the backoff multiplier between retries.
func WithGrowthFactor(f float64) Option {
	return func(r *Retrier) { r.growth = f }
}

// WithMaxRetries sets how many retries follow the initial attempt.
func WithMaxRetries(n int) Option {
	return func(r *Retrier) { r.maxRetries = n }
}

// WithJitter sets the jitter fraction applied to each delay (0 disables it).
func WithJitter(frac float64) Option {
	return func(r *Retrier) { r.jitterFrac = frac }
}

// New builds a Retrier from the defaults and the given overrides.
func New(opts ...Option) *Retrier {
	r := &Retrier{
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
		growth:     defaultGrowth,
		maxRetries: defaultMaxRetries,
		jitterFrac: defaultJitterFrac,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as non-retryable. Do returns it (unwrapped) as soon as
// fn produces it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs fn until it succeeds, returns a permanent error, exhausts the
// retry budget, or ctx is cancelled while waiting to retry.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; ; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}

		if attempt == r.maxRetries {
			return errors.Wrapf(lastErr, "giving up after %d attempts", attempt+1)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.delay(attempt)):
		}
	}
}

// DoWithData is Do for functions that return a value.
func DoWithData[T any](r *Retrier, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		var innerErr error
		result, innerErr = fn(ctx)
		return innerErr
	})
	return result, err
}

// delay computes the backoff before retry number attempt+1.
func (r *Retrier) delay(attempt int) time.Duration {
	d := float64(r.baseDelay)
	for i := 0; i < attempt; i++ {
		d *= r.growth
		if d >= float64(r.maxDelay) {
			d = float64(r.maxDelay)
			break
		}
	}

	if r.jitterFrac > 0 {
		// spread in [1-jitter, 1+jitter] to desynchronize concurrent callers
		d *= 1 + r.jitterFrac*(2*rand.Float64()-1)
	}

	out := time.Duration(d)
	if out > r.maxDelay {
		out = r.maxDelay
	}
	return out
}
