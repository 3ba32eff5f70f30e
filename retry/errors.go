package retry

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// TextCodeExhausted marks the error returned once every attempt failed.
const TextCodeExhausted = "EXHAUSTED_RETRIES"

func exhausted(attempts int, last error) error {
	err := goerrors.New(fmt.Sprintf("giving up after %d attempts", attempts), goerrors.CategoryOperation).
		WithTextCode(TextCodeExhausted).
		WithMetadata(map[string]any{"attempts": attempts})
	err.Source = last
	return err
}

// IsExhausted reports whether err, or anything it wraps, is an ExhaustedRetries error.
func IsExhausted(err error) bool {
	_, ok := findExhausted(err)
	return ok
}

// Attempts returns the number of attempts recorded on an ExhaustedRetries error.
func Attempts(err error) (int, bool) {
	e, ok := findExhausted(err)
	if !ok {
		return 0, false
	}
	n, ok := e.Metadata["attempts"].(int)
	return n, ok
}

// LastError returns the error of the final attempt wrapped by an ExhaustedRetries error.
func LastError(err error) error {
	if e, ok := findExhausted(err); ok {
		return e.Source
	}
	return nil
}

func findExhausted(err error) (*goerrors.Error, bool) {
	for err != nil {
		if e, ok := err.(*goerrors.Error); ok && e.TextCode == TextCodeExhausted {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return nil, false
}
