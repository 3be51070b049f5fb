package omlet

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for Omlet API operations.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, omlet.ErrAuthRejected) {
//	    // trigger session recovery
//	}
var (
	// ErrAuthRejected is returned when the cloud responds 401 or 403.
	// The token has expired or the credentials are wrong.
	ErrAuthRejected = errors.New("omlet: authentication rejected")

	// ErrMalformed is returned when a response cannot be parsed or is
	// missing a required field.
	ErrMalformed = errors.New("omlet: malformed response")

	// ErrTransient is returned on network errors, timeouts, and server-side
	// (5xx) failures. Safe to retry on the next poll tick.
	ErrTransient = errors.New("omlet: transient failure")

	// ErrRejected is returned when the cloud refuses a request for a
	// non-auth reason (4xx other than 401/403).
	ErrRejected = errors.New("omlet: request rejected")

	// ErrInvalidInput is returned when a caller passes an empty token,
	// device id, or credential field.
	ErrInvalidInput = errors.New("omlet: invalid input")
)

// statusError classifies a non-success HTTP status into the error taxonomy.
// The status code is preserved in the message for logging and debugging.
func statusError(op string, status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s returned HTTP %d", ErrAuthRejected, op, status)
	case status >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %s returned HTTP %d", ErrTransient, op, status)
	default:
		return fmt.Errorf("%w: %s returned HTTP %d", ErrRejected, op, status)
	}
}
