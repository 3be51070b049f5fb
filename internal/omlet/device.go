package omlet

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// ReadState fetches and normalises a device's current state.
//
// Unrecognised door-state strings map to DoorStopping rather than failing:
// the presentation layer prefers a degraded status over none. A missing
// door.state field is different: that is a malformed document, and
// defaulting it could report a false door position.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - token: Bearer token
//   - deviceID: Device to read
//
// Returns:
//   - DeviceState: Normalised state
//   - error: ErrAuthRejected on 401/403, ErrMalformed if door.state is
//     absent or the body unparsable, ErrTransient on network failure
func (c *Client) ReadState(ctx context.Context, token, deviceID string) (DeviceState, error) {
	if token == "" {
		return DeviceState{}, fmt.Errorf("%w: token is required", ErrInvalidInput)
	}
	if deviceID == "" {
		return DeviceState{}, fmt.Errorf("%w: device id is required", ErrInvalidInput)
	}

	status, body, err := c.doJSON(ctx, http.MethodGet, "/device/"+deviceID, token, nil)
	if err != nil {
		return DeviceState{}, err
	}
	if status != http.StatusOK {
		return DeviceState{}, statusError("read state", status)
	}

	var raw wireState
	if err := json.Unmarshal(body, &raw); err != nil {
		return DeviceState{}, fmt.Errorf("%w: parsing state document: %w", ErrMalformed, err)
	}
	if raw.Door == nil || raw.Door.State == nil {
		return DeviceState{}, fmt.Errorf("%w: state document has no door.state", ErrMalformed)
	}

	state := DeviceState{
		DoorState:    mapDoorState(*raw.Door.State),
		LightState:   LightUnknown,
		BatteryLevel: -1,
	}

	if raw.Light != nil && raw.Light.State != nil {
		state.LightState = mapLightState(*raw.Light.State)
	}
	if raw.General != nil {
		state.Serial = raw.General.SerialNumber
		state.FirmwareVersion = raw.General.FirmwareVersion
		if raw.General.BatteryLevel != nil {
			state.BatteryLevel = clampBattery(*raw.General.BatteryLevel)
		}
	}

	return state, nil
}

// IssueAction sends a door or light command to a device.
//
// HTTP 200 and 204 are both success; the cloud has used each across
// revisions. Anything else is classified by status.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - token: Bearer token
//   - deviceID: Target device
//   - action: One of ActionOpen, ActionClose, ActionLightOn, ActionLightOff
//
// Returns:
//   - error: nil on success, ErrAuthRejected on 401/403, ErrRejected
//     (with status) otherwise, ErrTransient on network failure
func (c *Client) IssueAction(ctx context.Context, token, deviceID string, action Action) error {
	if token == "" {
		return fmt.Errorf("%w: token is required", ErrInvalidInput)
	}
	if deviceID == "" {
		return fmt.Errorf("%w: device id is required", ErrInvalidInput)
	}
	switch action {
	case ActionOpen, ActionClose, ActionLightOn, ActionLightOff:
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidInput, action)
	}

	path := fmt.Sprintf("/device/%s/action/%s", deviceID, action)
	status, _, err := c.doJSON(ctx, http.MethodPost, path, token, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return statusError("issue action", status)
	}

	return nil
}

// clampBattery bounds a reported battery level to 0-100.
func clampBattery(level int) int {
	if level < 0 {
		return 0
	}
	if level > 100 {
		return 100
	}
	return level
}
