package client

import (
	"errors"
	"fmt"
)

// ErrSymbolNotFound means the provider does not know the symbol. It is not
// retryable; the router falls back to the secondary source.
var ErrSymbolNotFound = errors.New("symbol not found")

// ErrUnavailable means every configured source failed for this symbol in the
// current attempt. The symbol is skipped for the cycle, nothing more.
var ErrUnavailable = errors.New("price unavailable from all sources")

// TransientError wraps a retryable provider failure: network error, timeout,
// non-200 status or a malformed payload.
type TransientError struct {
	Provider string
	Status   int
	Err      error
}

func (e *TransientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: transient failure (status %d): %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: transient failure: %v", e.Provider, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a transient provider failure
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
