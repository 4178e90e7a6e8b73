// Package errs defines the error taxonomy shared by every component.
// Domain code wraps these sentinels with context via %w; the HTTP layer
// maps them to status codes with errors.Is.
package errs

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument covers malformed input: non-positive amounts,
	// negative initial balances, duplicate usernames.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned when a user or account cannot be resolved.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientFunds is returned when a withdrawal or transfer
	// exceeds the source account balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrPermissionDenied is returned when the caller does not own the
	// account it is operating on.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrUnauthenticated is returned when no principal can be resolved
	// from the request credentials.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrUnavailable is returned when storage cannot be reached within
	// the configured timeout.
	ErrUnavailable = errors.New("storage unavailable")
)

// Storage maps context expiry from a bounded storage call onto
// ErrUnavailable. Any other error passes through unchanged.
func Storage(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("storage timed out: %w", ErrUnavailable)
	}
	return err
}
