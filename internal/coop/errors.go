package coop

import "errors"

// Domain errors for the coop package.
var (
	// ErrUnavailable is returned for reads and commands once the session
	// has permanently failed. Terminal until process restart.
	ErrUnavailable = errors.New("coop: device unavailable, session permanently failed")

	// ErrNoSnapshot is returned when no device state has been captured yet
	// and the cold-start refresh could not produce one.
	ErrNoSnapshot = errors.New("coop: no device state available yet")
)
