package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

func TestErrorConstructors(t *testing.T) {
	cause := errors.New("dial tcp: refused")

	unavailable := Unavailable(cause, "")
	if !IsUnavailable(unavailable) {
		t.Fatalf("expected unavailable, got %v", unavailable)
	}
	if !goerrors.IsRetryableError(unavailable) {
		t.Errorf("unavailable must be retryable")
	}
	if !errors.Is(unavailable, cause) {
		t.Errorf("unavailable must wrap its cause")
	}

	timeout := Timeout(nil, 2*time.Second)
	if !IsTimeout(timeout) || !goerrors.IsRetryableError(timeout) {
		t.Errorf("expected retryable timeout, got %v", timeout)
	}
	var re *goerrors.RetryableError
	if !goerrors.As(timeout, &re) || re.Metadata["deadline"] != "2s" {
		t.Errorf("timeout should carry its deadline, got %+v", re)
	}

	invalid := InvalidQuery(cause, "")
	if !IsInvalidQuery(invalid) {
		t.Errorf("expected invalid query, got %v", invalid)
	}
	if goerrors.IsRetryableError(invalid) {
		t.Errorf("invalid query must not be retryable")
	}
	if !errors.Is(invalid, cause) {
		t.Errorf("invalid query must wrap its cause")
	}
}

func TestHasTextCode_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("page 3: %w", Unavailable(nil, "down"))
	if !IsUnavailable(err) {
		t.Errorf("text code should be found through fmt wrapping")
	}
	if IsTimeout(err) || IsInvalidQuery(err) {
		t.Errorf("unexpected text code match")
	}
	if HasTextCode(nil, TextCodeUnavailable) {
		t.Errorf("nil error has no text code")
	}
}

func TestClassify(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want func(error) bool
	}{
		{"bad conn", context.Background(), driver.ErrBadConn, IsUnavailable},
		{"net error", context.Background(), &net.OpError{Op: "dial", Err: errors.New("refused")}, IsUnavailable},
		{"deadline", context.Background(), fmt.Errorf("scan: %w", context.DeadlineExceeded), IsTimeout},
		{"syntax", context.Background(), errors.New(`near "FORM": syntax error`), IsInvalidQuery},
		{"already classified", context.Background(), Timeout(nil, 0), IsTimeout},
		{"canceled", canceled, context.Canceled, func(err error) bool { return errors.Is(err, context.Canceled) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.ctx, tt.err, 0)
			if !tt.want(got) {
				t.Errorf("classify(%v) = %v", tt.err, got)
			}
		})
	}

	if classify(context.Background(), nil, 0) != nil {
		t.Errorf("nil stays nil")
	}
}
