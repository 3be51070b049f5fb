package bridge

import "errors"

// Domain errors for the bridge package.
var (
	// ErrUnknownCommandTopic is returned when a message arrives on a
	// command topic the bridge does not handle.
	ErrUnknownCommandTopic = errors.New("bridge: unknown command topic")

	// ErrBadCommandPayload is returned when a command payload is not a
	// recognised action for its topic.
	ErrBadCommandPayload = errors.New("bridge: bad command payload")
)
