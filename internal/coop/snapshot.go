package coop

import (
	"time"

	"github.com/cantcodewontcode/homebridge-omlet-coop/internal/omlet"
)

// Snapshot is an immutable point-in-time read of the device's state.
//
// Snapshots are plain values: copying one is safe and cheap, and the
// Coordinator replaces its cached snapshot wholesale on every successful
// poll. Nothing ever partially updates a snapshot in place.
type Snapshot struct {
	DoorState       omlet.DoorState  `json:"door_state"`
	LightState      omlet.LightState `json:"light_state"`
	BatteryLevel    int              `json:"battery_level"` // -1 when not reported or disabled
	Serial          string           `json:"serial"`
	FirmwareVersion string           `json:"firmware_version"`
	FetchedAt       time.Time        `json:"fetched_at"`
}

// Observer is notified with a copy of each new snapshot produced by a
// successful refresh. Observers run on the refreshing goroutine and
// should not block.
type Observer func(Snapshot)
