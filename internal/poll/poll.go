// Package poll observes an external side effect that has no completion
// notification. A Poller checks a condition on a fixed interval until it
// holds, the context ends, or the attempt or time budget runs out.
package poll

import (
	"context"
	"fmt"
	"time"

	"github.com/Iron-Ham/cadencehost/internal/errors"
)

// DefaultInterval is the tick period used when none is configured.
const DefaultInterval = 100 * time.Millisecond

// DefaultMaxCheckErrors is the number of consecutive condition errors
// tolerated before polling fails.
const DefaultMaxCheckErrors = 10

// Condition reports whether the awaited side effect has happened.
type Condition func(ctx context.Context) (bool, error)

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the tick period. Non-positive values keep the default.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithMaxAttempts bounds the number of condition checks. Zero means unbounded.
func WithMaxAttempts(n int) Option {
	return func(p *Poller) {
		if n >= 0 {
			p.maxAttempts = n
		}
	}
}

// WithTimeout bounds total polling time. Zero means unbounded.
func WithTimeout(d time.Duration) Option {
	return func(p *Poller) {
		if d >= 0 {
			p.timeout = d
		}
	}
}

// WithMaxCheckErrors sets how many consecutive condition errors are tolerated.
func WithMaxCheckErrors(n int) Option {
	return func(p *Poller) {
		if n > 0 {
			p.maxCheckErrors = n
		}
	}
}

// WithOnTick registers a callback invoked before every check with the
// 1-based attempt number.
func WithOnTick(fn func(attempt int)) Option {
	return func(p *Poller) {
		p.onTick = fn
	}
}

// Poller is a cancellable, bounded polling loop. The first check happens at
// the first tick, one interval after Poll is called, never before.
type Poller struct {
	interval       time.Duration
	maxAttempts    int
	timeout        time.Duration
	maxCheckErrors int
	onTick         func(int)
}

// New creates a Poller.
func New(opts ...Option) *Poller {
	p := &Poller{
		interval:       DefaultInterval,
		maxCheckErrors: DefaultMaxCheckErrors,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Interval returns the configured tick period.
func (p *Poller) Interval() time.Duration { return p.interval }

// Result describes a finished poll.
type Result struct {
	Attempts int
	Elapsed  time.Duration
}

// Poll runs cond on every tick until it returns true.
//
// It fails with an error wrapping errors.ErrCanceled when ctx ends, with a
// *errors.TimeoutError (matching errors.ErrTimeout) when the attempt or
// time budget is exhausted, and with the condition's last error after too
// many consecutive condition errors.
func (p *Poller) Poll(ctx context.Context, cond Condition) (Result, error) {
	start := time.Now()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if p.timeout > 0 {
		timer := time.NewTimer(p.timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	res := Result{}
	consecutiveErrors := 0
	for {
		select {
		case <-ctx.Done():
			res.Elapsed = time.Since(start)
			return res, fmt.Errorf("%w: %w", errors.ErrCanceled, ctx.Err())
		case <-deadline:
			res.Elapsed = time.Since(start)
			return res, errors.NewTimeoutError("polling", p.timeout).WithAttempts(res.Attempts)
		case <-ticker.C:
		}

		res.Attempts++
		if p.onTick != nil {
			p.onTick(res.Attempts)
		}

		done, err := cond(ctx)
		if err != nil {
			consecutiveErrors++
			if consecutiveErrors >= p.maxCheckErrors {
				res.Elapsed = time.Since(start)
				return res, fmt.Errorf("condition failed %d times: %w", consecutiveErrors, err)
			}
		} else {
			consecutiveErrors = 0
			if done {
				res.Elapsed = time.Since(start)
				return res, nil
			}
		}

		if p.maxAttempts > 0 && res.Attempts >= p.maxAttempts {
			res.Elapsed = time.Since(start)
			return res, errors.NewTimeoutError("polling", time.Duration(p.maxAttempts)*p.interval).WithAttempts(res.Attempts)
		}
	}
}
