package session

import "errors"

// Domain errors for the session package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, session.ErrAuthPermanentlyFailed) {
//	    // surface as a standing unavailable condition
//	}
var (
	// ErrAuthPermanentlyFailed is returned once the re-login circuit breaker
	// has tripped. Terminal until process restart.
	ErrAuthPermanentlyFailed = errors.New("session: authentication permanently failed")

	// ErrNoDeviceSelected is returned when an operation needs a device id
	// but discovery was ambiguous and the setup layer has not chosen one.
	ErrNoDeviceSelected = errors.New("session: no device selected")

	// ErrNoToken is returned when no token is available and no credentials
	// are configured to obtain one.
	ErrNoToken = errors.New("session: no token available")
)
