package omlet

import "encoding/json"

// Credentials are the Omlet account login details.
// CountryCode must already be normalised to a 2-letter ISO code.
type Credentials struct {
	EmailAddress string
	Password     string
	CountryCode  string
}

// valid reports whether all credential fields are present.
func (c Credentials) valid() bool {
	return c.EmailAddress != "" && c.Password != "" && c.CountryCode != ""
}

// DeviceInfo describes one device from the account's device listing.
type DeviceInfo struct {
	DeviceID string
	Name     string
	Type     string
}

// DoorState is the normalised door position/motion state.
type DoorState string

// Door states. Stopping doubles as the safe fallback for door strings the
// client does not recognise: a best-effort status beats no status, but an
// unknown string must never be reported as safely open or closed.
const (
	DoorOpen     DoorState = "open"
	DoorClosed   DoorState = "closed"
	DoorOpening  DoorState = "opening"
	DoorClosing  DoorState = "closing"
	DoorStopping DoorState = "stopping"
	DoorUnknown  DoorState = "unknown"
)

// LightState is the normalised coop light state.
type LightState string

// Light states. OnPending is the optimistic state between issuing a
// light-on action and the confirmation poll.
const (
	LightOn        LightState = "on"
	LightOff       LightState = "off"
	LightOnPending LightState = "onpending"
	LightUnknown   LightState = "unknown"
)

// Action is a device command accepted by the cloud's action endpoint.
type Action string

// Actions understood by the Autodoor. The string values are the vendor's
// wire names and appear verbatim in the action URL.
const (
	ActionOpen     Action = "open"
	ActionClose    Action = "close"
	ActionLightOn  Action = "on"
	ActionLightOff Action = "off"
)

// DeviceState is a normalised read of a device's reported state.
// Light and battery fields are only meaningful on hardware that has them;
// absent sections decode to LightUnknown / BatteryLevel -1.
type DeviceState struct {
	DoorState       DoorState
	LightState      LightState
	BatteryLevel    int // 0-100, or -1 when not reported
	Serial          string
	FirmwareVersion string
}

// =============================================================================
// Wire types
// =============================================================================

type loginRequest struct {
	EmailAddress string `json:"emailAddress"`
	Password     string `json:"password"`
	CountryCode  string `json:"countryCode"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// wireDevice is one entry in the device listing response.
type wireDevice struct {
	DeviceID   string `json:"deviceId"`
	Name       string `json:"name"`
	DeviceType string `json:"deviceType"`
}

// deviceListEnvelope tolerates both historical listing shapes:
// a bare array, or an object wrapping the array under "data".
type deviceListEnvelope struct {
	devices []wireDevice
}

func (e *deviceListEnvelope) UnmarshalJSON(data []byte) error {
	// Bare array shape
	var bare []wireDevice
	if err := json.Unmarshal(data, &bare); err == nil {
		e.devices = bare
		return nil
	}

	// Wrapped shape
	var wrapped struct {
		Data []wireDevice `json:"data"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	e.devices = wrapped.Data
	return nil
}

// wireState is the raw device state document.
// Pointers distinguish "absent" from "empty" so missing required
// sub-fields can be reported as malformed rather than silently defaulted.
type wireState struct {
	Door *struct {
		State *string `json:"state"`
	} `json:"door"`
	Light *struct {
		State *string `json:"state"`
	} `json:"light"`
	General *struct {
		BatteryLevel    *int   `json:"batteryLevel"`
		SerialNumber    string `json:"serialNumber"`
		FirmwareVersion string `json:"firmwareVersionCurrent"`
	} `json:"general"`
}

// mapDoorState normalises a vendor door-state string.
func mapDoorState(s string) DoorState {
	switch s {
	case "open":
		return DoorOpen
	case "closed":
		return DoorClosed
	case "opening":
		return DoorOpening
	case "closing":
		return DoorClosing
	case "stopping", "stopped":
		return DoorStopping
	default:
		return DoorStopping
	}
}

// mapLightState normalises a vendor light-state string.
func mapLightState(s string) LightState {
	switch s {
	case "on":
		return LightOn
	case "off":
		return LightOff
	case "onpending":
		return LightOnPending
	default:
		return LightUnknown
	}
}
