package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cantcodewontcode/homebridge-omlet-coop/internal/coop"
	"github.com/cantcodewontcode/homebridge-omlet-coop/internal/omlet"
	"github.com/cantcodewontcode/homebridge-omlet-coop/internal/session"
)

// statusResponse is the daemon-level status document.
type statusResponse struct {
	Version        string `json:"version"`
	DeviceID       string `json:"device_id"`
	DeviceSelected bool   `json:"device_selected"`
	Available      bool   `json:"available"`
	AuthFailed     bool   `json:"auth_permanently_failed"`
}

// handleStatus reports the session and device selection state.
//
// This is the endpoint the setup wizard polls: it distinguishes "working",
// "needs a device selected" and "credentials are dead, restart after
// fixing them".
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	deviceID := s.session.DeviceID()
	writeJSON(w, http.StatusOK, statusResponse{
		Version:        s.version,
		DeviceID:       deviceID,
		DeviceSelected: deviceID != "",
		Available:      !s.coordinator.Unavailable(),
		AuthFailed:     s.session.PermanentlyFailed(),
	})
}

// handleSnapshot returns the cached device state.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.coordinator.Read(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, coop.ErrUnavailable):
			writeUnavailable(w, "session permanently failed, restart after fixing credentials")
		case errors.Is(err, session.ErrNoDeviceSelected):
			writeError(w, http.StatusConflict, ErrCodeBadRequest, "no device selected yet")
		default:
			writeUpstreamError(w, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// handleAction issues a device command.
//
// The action name comes from the URL: open, close, on, off. A success
// response means the cloud accepted the command; the resulting state
// arrives via the cache after the confirmation poll.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var action omlet.Action
	switch chi.URLParam(r, "action") {
	case "open":
		action = omlet.ActionOpen
	case "close":
		action = omlet.ActionClose
	case "on":
		action = omlet.ActionLightOn
	case "off":
		action = omlet.ActionLightOff
	default:
		writeBadRequest(w, "unknown action (want open, close, on or off)")
		return
	}

	if err := s.coordinator.Issue(r.Context(), action); err != nil {
		switch {
		case errors.Is(err, coop.ErrUnavailable):
			writeUnavailable(w, "session permanently failed, restart after fixing credentials")
		case errors.Is(err, session.ErrNoDeviceSelected):
			writeError(w, http.StatusConflict, ErrCodeBadRequest, "no device selected yet")
		default:
			writeUpstreamError(w, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"action": action,
		"status": "accepted",
	})
}

// deviceEntry is one row in the discovery listing.
type deviceEntry struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Selected bool   `json:"selected"`
}

// handleListDevices returns the account's device listing for the setup
// wizard, marking the currently selected device.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	if s.devices == nil {
		writeNotFound(w, "device discovery not available")
		return
	}

	token, err := s.session.EnsureToken(r.Context())
	if err != nil {
		if errors.Is(err, session.ErrAuthPermanentlyFailed) {
			writeUnavailable(w, "session permanently failed, restart after fixing credentials")
			return
		}
		writeUpstreamError(w, err.Error())
		return
	}

	devices, err := s.devices.ListDevices(r.Context(), token)
	if err != nil {
		writeUpstreamError(w, err.Error())
		return
	}

	selected := s.session.DeviceID()
	entries := make([]deviceEntry, 0, len(devices))
	for _, d := range devices {
		entries = append(entries, deviceEntry{
			DeviceID: d.DeviceID,
			Name:     d.Name,
			Type:     d.Type,
			Selected: d.DeviceID == selected,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": entries,
	})
}

// selectDeviceRequest is the body for PUT /api/v1/device.
type selectDeviceRequest struct {
	DeviceID string `json:"device_id"`
}

// handleSelectDevice pins the daemon to a device and persists the choice.
func (s *Server) handleSelectDevice(w http.ResponseWriter, r *http.Request) {
	var req selectDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.DeviceID == "" {
		writeBadRequest(w, "device_id is required")
		return
	}

	if err := s.session.SetDeviceID(r.Context(), req.DeviceID); err != nil {
		writeInternalError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": req.DeviceID,
	})
}
