// Package retry re-invokes an operation a bounded number of times when it
// fails with a transient error.
//
// The delay between attempts is fixed. There is no backoff and no sleep after
// the final attempt. Errors the classifier rejects are returned immediately
// and unchanged; once MaxAttempts retryable failures have been seen the
// caller receives an ExhaustedRetries error wrapping the last one.
package retry

import (
	"context"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-pager/internal/logging"
)

// Policy bounds a retry loop.
type Policy struct {
	MaxAttempts int           `json:"max_attempts" yaml:"max_attempts" toml:"max_attempts"`
	Delay       time.Duration `json:"delay" yaml:"delay" toml:"delay"`
}

// DefaultPolicy returns three attempts two seconds apart.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Delay: 2 * time.Second}
}

// Validate checks that at least one attempt is allowed and the delay is not negative.
func (p Policy) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.MaxAttempts, validation.Required, validation.Min(1)),
		validation.Field(&p.Delay, validation.Min(time.Duration(0))),
	)
}

// Classifier decides whether an error is worth another attempt.
type Classifier func(err error) bool

// IsTransient is the default Classifier. It accepts errors whose chain
// contains a value reporting IsRetryable() == true, which is how the store
// package marks StoreUnavailable and StoreTimeout. An ExhaustedRetries error
// is never transient, even though it wraps one.
func IsTransient(err error) bool {
	if IsExhausted(err) {
		return false
	}
	var r interface{ IsRetryable() bool }
	return errors.As(err, &r) && r.IsRetryable()
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Option customises a Retrier.
type Option func(*Retrier)

// WithClassifier replaces IsTransient.
func WithClassifier(c Classifier) Option {
	return func(r *Retrier) {
		if c != nil {
			r.classify = c
		}
	}
}

// WithLogger logs every failed attempt.
func WithLogger(l logging.Logger) Option {
	return func(r *Retrier) {
		r.logger = logging.OrNop(l)
	}
}

// WithSleep replaces the delay implementation.
func WithSleep(s SleepFunc) Option {
	return func(r *Retrier) {
		if s != nil {
			r.sleep = s
		}
	}
}

// Retrier runs operations under a Policy. It holds no per call state and is
// safe for concurrent use.
type Retrier struct {
	policy   Policy
	classify Classifier
	sleep    SleepFunc
	logger   logging.Logger
}

// New validates policy and returns a Retrier.
func New(policy Policy, opts ...Option) (*Retrier, error) {
	if err := policy.Validate(); err != nil {
		return nil, goerrors.FromOzzoValidation(err, "invalid retry policy")
	}
	r := &Retrier{
		policy:   policy,
		classify: IsTransient,
		sleep:    sleepContext,
		logger:   logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Policy returns the policy r was built with.
func (r *Retrier) Policy() Policy {
	return r.policy
}

// Call invokes op until it succeeds, fails with a non transient error, or
// MaxAttempts is reached.
func (r *Retrier) Call(ctx context.Context, op func(ctx context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !r.classify(err) {
			return err
		}

		logging.WithError(r.logger, err).Warn("attempt failed", "attempt", attempt, "max_attempts", r.policy.MaxAttempts)

		if attempt >= r.policy.MaxAttempts {
			return exhausted(attempt, err)
		}

		r.logger.Debug("retrying", "delay", r.policy.Delay)
		if err := r.sleep(ctx, r.policy.Delay); err != nil {
			return err
		}
	}
}

// Do is Call for operations that produce a value.
func Do[T any](ctx context.Context, r *Retrier, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Call(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// CallWithRetry runs op with a one off Retrier using the default classifier.
func CallWithRetry[T any](ctx context.Context, op func(ctx context.Context) (T, error), maxAttempts int, delay time.Duration) (T, error) {
	r, err := New(Policy{MaxAttempts: maxAttempts, Delay: delay})
	if err != nil {
		var zero T
		return zero, err
	}
	return Do(ctx, r, op)
}
