package omlet

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Login exchanges account credentials for a bearer token.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - creds: Account credentials; all three fields must be non-empty
//
// Returns:
//   - string: Opaque bearer token for subsequent calls
//   - error: ErrAuthRejected on 401/403, ErrMalformed if the response
//     cannot be parsed or lacks a token, ErrTransient on network failure
func (c *Client) Login(ctx context.Context, creds Credentials) (string, error) {
	if !creds.valid() {
		return "", fmt.Errorf("%w: all credential fields are required", ErrInvalidInput)
	}

	status, body, err := c.doJSON(ctx, http.MethodPost, "/login", "", loginRequest{
		EmailAddress: creds.EmailAddress,
		Password:     creds.Password,
		CountryCode:  creds.CountryCode,
	})
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", statusError("login", status)
	}

	var parsed loginResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: parsing login response: %w", ErrMalformed, err)
	}
	if parsed.Token == "" {
		return "", fmt.Errorf("%w: login response has no token", ErrMalformed)
	}

	return parsed.Token, nil
}

// ListDevices fetches the account's device listing.
//
// The endpoint has returned two shapes across API revisions: a bare array
// and a {"data": [...]} wrapper. Both are accepted.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - token: Bearer token from Login
//
// Returns:
//   - []DeviceInfo: All devices visible to the account (may be empty)
//   - error: Same taxonomy as Login
func (c *Client) ListDevices(ctx context.Context, token string) ([]DeviceInfo, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: token is required", ErrInvalidInput)
	}

	status, body, err := c.doJSON(ctx, http.MethodGet, "/group", token, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, statusError("list devices", status)
	}

	var envelope deviceListEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: parsing device listing: %w", ErrMalformed, err)
	}

	devices := make([]DeviceInfo, 0, len(envelope.devices))
	for _, d := range envelope.devices {
		devices = append(devices, DeviceInfo{
			DeviceID: d.DeviceID,
			Name:     d.Name,
			Type:     d.DeviceType,
		})
	}
	return devices, nil
}
