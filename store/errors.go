package store

import (
	"context"
	"database/sql/driver"
	stderrors "errors"
	"net"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/jackc/pgx/v5/pgconn"
)

// Text codes attached to store errors.
const (
	TextCodeUnavailable  = "STORE_UNAVAILABLE"
	TextCodeTimeout      = "STORE_TIMEOUT"
	TextCodeInvalidQuery = "INVALID_QUERY"
)

// Unavailable wraps a connection level failure. The error is retryable.
func Unavailable(cause error, message string) error {
	if message == "" {
		message = "record store unavailable"
	}
	if cause == nil {
		return goerrors.NewRetryable(message, goerrors.CategoryExternal).
			WithRetryDelay(0).
			WithTextCode(TextCodeUnavailable)
	}
	return goerrors.WrapRetryable(cause, goerrors.CategoryExternal, message).
		WithRetryDelay(0).
		WithTextCode(TextCodeUnavailable)
}

// Timeout wraps a deadline failure. The error is retryable.
func Timeout(cause error, deadline time.Duration) error {
	message := "record store timed out"
	var err *goerrors.RetryableError
	if cause == nil {
		err = goerrors.NewRetryable(message, goerrors.CategoryOperation)
	} else {
		err = goerrors.WrapRetryable(cause, goerrors.CategoryOperation, message)
	}
	err = err.WithRetryDelay(0).WithTextCode(TextCodeTimeout)
	if deadline > 0 {
		err = err.WithMetadata(map[string]any{"deadline": deadline.String()})
	}
	return err
}

// InvalidQuery reports a structurally invalid request. It is never retried.
func InvalidQuery(cause error, message string) error {
	if message == "" {
		message = "invalid query"
	}
	if cause == nil {
		return goerrors.New(message, goerrors.CategoryBadInput).WithTextCode(TextCodeInvalidQuery)
	}

	var e *goerrors.Error
	if goerrors.As(cause, &e) && e.Category == goerrors.CategoryValidation {
		out := e.Clone()
		out.Message = message
		return out.WithTextCode(TextCodeInvalidQuery)
	}

	out := goerrors.New(message, goerrors.CategoryBadInput).WithTextCode(TextCodeInvalidQuery)
	out.Source = cause
	return out
}

// IsUnavailable reports whether err, or anything it wraps, is a StoreUnavailable error.
func IsUnavailable(err error) bool { return HasTextCode(err, TextCodeUnavailable) }

// IsTimeout reports whether err, or anything it wraps, is a StoreTimeout error.
func IsTimeout(err error) bool { return HasTextCode(err, TextCodeTimeout) }

// IsInvalidQuery reports whether err, or anything it wraps, is an InvalidQuery error.
func IsInvalidQuery(err error) bool { return HasTextCode(err, TextCodeInvalidQuery) }

// HasTextCode walks the chain of err looking for a go-errors value carrying code.
func HasTextCode(err error, code string) bool {
	for err != nil {
		switch e := err.(type) {
		case *goerrors.Error:
			if e.TextCode == code {
				return true
			}
		case *goerrors.RetryableError:
			if e.BaseError != nil && e.BaseError.TextCode == code {
				return true
			}
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// classify maps a raw driver error into the store taxonomy.
func classify(ctx context.Context, err error, deadline time.Duration) error {
	if err == nil {
		return nil
	}
	if HasTextCode(err, TextCodeUnavailable) || HasTextCode(err, TextCodeTimeout) || HasTextCode(err, TextCodeInvalidQuery) {
		return err
	}

	if stderrors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return Timeout(err, deadline)
	}
	if stderrors.Is(err, context.Canceled) {
		// caller gave up, surface their cancellation untouched
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}

	var netErr net.Error
	var connectErr *pgconn.ConnectError
	if stderrors.Is(err, driver.ErrBadConn) || stderrors.As(err, &netErr) || stderrors.As(err, &connectErr) {
		return Unavailable(err, "")
	}

	return InvalidQuery(err, "query failed")
}
