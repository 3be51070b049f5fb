// Package bridge connects the coop coordinator to the MQTT broker.
//
// It is the presentation layer for the rest of the smart home: every new
// snapshot from the poll loop is published retained to omletcoop/state,
// and commands arriving on omletcoop/command/door and
// omletcoop/command/light are translated into device actions.
//
// The bridge owns no device state of its own. It subscribes to the
// coordinator's observer feed for outbound state and calls Issue for
// inbound commands; everything else (caching, optimistic transitions,
// confirmation polls) stays in the coordinator.
package bridge
