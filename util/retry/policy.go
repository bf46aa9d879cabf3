// Package retry extracts the bounded exponential-backoff policy the
// message resolver (C6) needs when it must fetch a prior transaction
// that isn't available locally (§4.6, §5). It generalises the teacher's
// functional-options retry style (util/retry) into a standalone policy
// object instead of inlining the loop at the call site.
package retry

import (
	"context"
	"fmt"
	"time"
)

// ErrBudgetExhausted is returned when the next backoff would exceed the
// policy's MaxBackoff — the policy gives up rather than sleeping past it.
type ErrBudgetExhausted struct {
	Attempts int
	LastErr  error
}

func (e *ErrBudgetExhausted) Error() string {
	return fmt.Sprintf("retry: backoff budget exhausted after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *ErrBudgetExhausted) Unwrap() error {
	return e.LastErr
}

type Option func(*Policy)

// Policy is the (attempt count, delay sequence, cap) contract described
// in DESIGN NOTES §9: pluggable rather than inlined into the resolver.
type Policy struct {
	InitialBackoff time.Duration
	BackoffFactor  float64
	MaxBackoff     time.Duration
}

// Default matches spec.md §4.6/§5: 1s, 2s, 4s, ... doubling, giving up
// once the next sleep would exceed 120s.
func Default() *Policy {
	return &Policy{
		InitialBackoff: time.Second,
		BackoffFactor:  2.0,
		MaxBackoff:     120 * time.Second,
	}
}

func New(opts ...Option) *Policy {
	p := Default()
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func WithInitialBackoff(d time.Duration) Option {
	return func(p *Policy) { p.InitialBackoff = d }
}

func WithBackoffFactor(f float64) Option {
	return func(p *Policy) { p.BackoffFactor = f }
}

func WithMaxBackoff(d time.Duration) Option {
	return func(p *Policy) { p.MaxBackoff = d }
}

// Do calls fn until it succeeds, fn returns a non-retryable result (signalled
// by returning retry=false), or the backoff budget is exhausted. The sleep
// between attempts observes ctx cancellation.
func Do(ctx context.Context, p *Policy, fn func(attempt int) (err error, retryable bool)) error {
	if p == nil {
		p = Default()
	}

	backoff := p.InitialBackoff
	attempt := 0

	for {
		attempt++
		err, retryable := fn(attempt)
		if err == nil {
			return nil
		}
		if !retryable {
			return err
		}

		if backoff > p.MaxBackoff {
			return &ErrBudgetExhausted{Attempts: attempt, LastErr: err}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * p.BackoffFactor)
	}
}
