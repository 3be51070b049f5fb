// Package mqtt wraps paho.mqtt.golang for the coop daemon's broker link.
//
// The daemon is a single MQTT client: it publishes retained device state
// and availability, and receives door/light commands from the rest of the
// smart home. This package owns connection management, Last Will and
// Testament, automatic reconnection with exponential backoff, and
// re-subscription after a reconnect.
//
// # Topic hierarchy
//
// All topics live under the omletcoop/ prefix:
//
//	omletcoop/state           retained JSON snapshot of the device
//	omletcoop/system/status   retained online/offline status (LWT)
//	omletcoop/command/door    incoming "open" / "close" commands
//	omletcoop/command/light   incoming "on" / "off" commands
//
// Use the Topics builders rather than hand-written strings so the
// hierarchy stays consistent across the codebase.
//
// # Thread Safety
//
// All Client methods are safe for concurrent use. Message handlers run on
// paho's goroutines and are wrapped with panic recovery.
package mqtt
