package llms

import (
	"context"
	"errors"
)

var (
	// ErrPermissionDenied marks an authentication or authorization failure;
	// retrying without reconfiguration will not help.
	ErrPermissionDenied = errors.New("llm permission denied")
	// ErrTimeout marks a request abandoned at its deadline.
	ErrTimeout = errors.New("llm request timed out")
)

// IsTimeout reports whether the error should be treated as a deadline expiry,
// covering both the sentinel and raw context errors from the transport.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
