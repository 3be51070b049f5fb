package mqtt

import "fmt"

// Topic prefixes for the coop daemon.
//
// The hierarchy is deliberately flat: one device, one state topic, one
// command topic per capability.
const (
	// TopicPrefix is the base for all coop daemon topics.
	TopicPrefix = "omletcoop"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "omletcoop/system"
)

// Topics provides builders for the daemon's MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
type Topics struct{}

// State returns the retained device state topic.
//
// Payload: the JSON snapshot published after every successful poll.
func (Topics) State() string {
	return fmt.Sprintf("%s/state", TopicPrefix)
}

// SystemStatus returns the daemon availability topic.
//
// Retained online/offline JSON; the offline variant doubles as the
// Last Will and Testament payload on an unexpected disconnect.
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// DoorCommand returns the incoming door command topic.
//
// Payload: "open" or "close".
func (Topics) DoorCommand() string {
	return fmt.Sprintf("%s/command/door", TopicPrefix)
}

// LightCommand returns the incoming light command topic.
//
// Payload: "on" or "off".
func (Topics) LightCommand() string {
	return fmt.Sprintf("%s/command/light", TopicPrefix)
}

// AllCommands returns a pattern matching every command topic.
//
// Pattern: omletcoop/command/+
func (Topics) AllCommands() string {
	return fmt.Sprintf("%s/command/+", TopicPrefix)
}
