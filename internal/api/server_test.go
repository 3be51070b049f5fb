package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cantcodewontcode/homebridge-omlet-coop/internal/coop"
	"github.com/cantcodewontcode/homebridge-omlet-coop/internal/infrastructure/logging"
	"github.com/cantcodewontcode/homebridge-omlet-coop/internal/omlet"
	"github.com/cantcodewontcode/homebridge-omlet-coop/internal/session"
)

// fakeCoordinator is a test implementation of Coordinator.
type fakeCoordinator struct {
	snapshot    coop.Snapshot
	readErr     error
	issueErr    error
	issued      []omlet.Action
	unavailable bool
}

func (c *fakeCoordinator) Read(_ context.Context) (coop.Snapshot, error) {
	if c.readErr != nil {
		return coop.Snapshot{}, c.readErr
	}
	return c.snapshot, nil
}

func (c *fakeCoordinator) Issue(_ context.Context, action omlet.Action) error {
	if c.issueErr != nil {
		return c.issueErr
	}
	c.issued = append(c.issued, action)
	return nil
}

func (c *fakeCoordinator) Unavailable() bool {
	return c.unavailable
}

// fakeSession is a test implementation of Session.
type fakeSession struct {
	deviceID  string
	setErr    error
	token     string
	tokenErr  error
	permanent bool
}

func (s *fakeSession) DeviceID() string { return s.deviceID }

func (s *fakeSession) SetDeviceID(_ context.Context, deviceID string) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.deviceID = deviceID
	return nil
}

func (s *fakeSession) PermanentlyFailed() bool { return s.permanent }

func (s *fakeSession) EnsureToken(_ context.Context) (string, error) {
	if s.tokenErr != nil {
		return "", s.tokenErr
	}
	return s.token, nil
}

// fakeLister is a test implementation of DeviceLister.
type fakeLister struct {
	devices []omlet.DeviceInfo
	err     error
}

func (l *fakeLister) ListDevices(_ context.Context, _ string) ([]omlet.DeviceInfo, error) {
	return l.devices, l.err
}

func newTestServer(t *testing.T, coord *fakeCoordinator, sess *fakeSession, lister DeviceLister) http.Handler {
	t.Helper()

	s, err := New(Deps{
		Logger:      logging.Default(),
		Coordinator: coord,
		Session:     sess,
		Devices:     lister,
		Version:     "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s.buildRouter()
}

func doRequest(handler http.Handler, method, path string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestNewValidation(t *testing.T) {
	_, err := New(Deps{Coordinator: &fakeCoordinator{}, Session: &fakeSession{}})
	if err == nil {
		t.Error("New() without logger succeeded, want error")
	}

	_, err = New(Deps{Logger: logging.Default(), Session: &fakeSession{}})
	if err == nil {
		t.Error("New() without coordinator succeeded, want error")
	}

	_, err = New(Deps{Logger: logging.Default(), Coordinator: &fakeCoordinator{}})
	if err == nil {
		t.Error("New() without session succeeded, want error")
	}
}

func TestHealthz(t *testing.T) {
	handler := newTestServer(t, &fakeCoordinator{}, &fakeSession{}, nil)

	rec := doRequest(handler, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name  string
		coord *fakeCoordinator
		sess  *fakeSession
		want  statusResponse
	}{
		{
			name:  "healthy with device",
			coord: &fakeCoordinator{},
			sess:  &fakeSession{deviceID: "d1"},
			want:  statusResponse{Version: "test", DeviceID: "d1", DeviceSelected: true, Available: true},
		},
		{
			name:  "no device selected",
			coord: &fakeCoordinator{},
			sess:  &fakeSession{},
			want:  statusResponse{Version: "test", Available: true},
		},
		{
			name:  "auth permanently failed",
			coord: &fakeCoordinator{unavailable: true},
			sess:  &fakeSession{deviceID: "d1", permanent: true},
			want:  statusResponse{Version: "test", DeviceID: "d1", DeviceSelected: true, AuthFailed: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestServer(t, tt.coord, tt.sess, nil)

			rec := doRequest(handler, http.MethodGet, "/api/v1/status", "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}

			var got statusResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSnapshot(t *testing.T) {
	coord := &fakeCoordinator{snapshot: coop.Snapshot{
		DoorState:    omlet.DoorClosed,
		LightState:   omlet.LightOff,
		BatteryLevel: 72,
		Serial:       "SN-9",
	}}
	handler := newTestServer(t, coord, &fakeSession{deviceID: "d1"}, nil)

	rec := doRequest(handler, http.MethodGet, "/api/v1/snapshot", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got coop.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.DoorState != omlet.DoorClosed || got.BatteryLevel != 72 {
		t.Errorf("got %+v", got)
	}
}

func TestSnapshotErrors(t *testing.T) {
	tests := []struct {
		name     string
		readErr  error
		wantCode int
	}{
		{"unavailable", coop.ErrUnavailable, http.StatusServiceUnavailable},
		{"no device", session.ErrNoDeviceSelected, http.StatusConflict},
		{"transient upstream", omlet.ErrTransient, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestServer(t, &fakeCoordinator{readErr: tt.readErr}, &fakeSession{}, nil)

			rec := doRequest(handler, http.MethodGet, "/api/v1/snapshot", "")
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}

func TestAction(t *testing.T) {
	tests := []struct {
		path string
		want omlet.Action
	}{
		{"/api/v1/actions/open", omlet.ActionOpen},
		{"/api/v1/actions/close", omlet.ActionClose},
		{"/api/v1/actions/on", omlet.ActionLightOn},
		{"/api/v1/actions/off", omlet.ActionLightOff},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			coord := &fakeCoordinator{}
			handler := newTestServer(t, coord, &fakeSession{deviceID: "d1"}, nil)

			rec := doRequest(handler, http.MethodPost, tt.path, "")
			if rec.Code != http.StatusAccepted {
				t.Fatalf("status = %d, want 202", rec.Code)
			}
			if len(coord.issued) != 1 || coord.issued[0] != tt.want {
				t.Errorf("issued = %v, want [%s]", coord.issued, tt.want)
			}
		})
	}
}

func TestActionUnknown(t *testing.T) {
	coord := &fakeCoordinator{}
	handler := newTestServer(t, coord, &fakeSession{}, nil)

	rec := doRequest(handler, http.MethodPost, "/api/v1/actions/wave", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if len(coord.issued) != 0 {
		t.Error("unknown action reached the coordinator")
	}
}

func TestActionUnavailable(t *testing.T) {
	coord := &fakeCoordinator{issueErr: coop.ErrUnavailable}
	handler := newTestServer(t, coord, &fakeSession{}, nil)

	rec := doRequest(handler, http.MethodPost, "/api/v1/actions/open", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestListDevices(t *testing.T) {
	lister := &fakeLister{devices: []omlet.DeviceInfo{
		{DeviceID: "d1", Name: "Coop Door", Type: "autodoor"},
		{DeviceID: "d2", Name: "Run Door", Type: "autodoor"},
	}}
	handler := newTestServer(t, &fakeCoordinator{}, &fakeSession{deviceID: "d2", token: "tok"}, lister)

	rec := doRequest(handler, http.MethodGet, "/api/v1/devices", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Devices []deviceEntry `json:"devices"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(body.Devices) != 2 {
		t.Fatalf("devices = %d, want 2", len(body.Devices))
	}
	if body.Devices[0].Selected || !body.Devices[1].Selected {
		t.Errorf("selection flags wrong: %+v", body.Devices)
	}
}

func TestListDevicesAuthFailed(t *testing.T) {
	handler := newTestServer(t, &fakeCoordinator{},
		&fakeSession{tokenErr: session.ErrAuthPermanentlyFailed}, &fakeLister{})

	rec := doRequest(handler, http.MethodGet, "/api/v1/devices", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestListDevicesNoLister(t *testing.T) {
	handler := newTestServer(t, &fakeCoordinator{}, &fakeSession{}, nil)

	rec := doRequest(handler, http.MethodGet, "/api/v1/devices", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSelectDevice(t *testing.T) {
	sess := &fakeSession{}
	handler := newTestServer(t, &fakeCoordinator{}, sess, nil)

	rec := doRequest(handler, http.MethodPut, "/api/v1/device", `{"device_id":"d7"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if sess.deviceID != "d7" {
		t.Errorf("deviceID = %q, want d7", sess.deviceID)
	}
}

func TestSelectDeviceValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty id", `{"device_id":""}`},
		{"bad json", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestServer(t, &fakeCoordinator{}, &fakeSession{}, nil)

			rec := doRequest(handler, http.MethodPut, "/api/v1/device", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}
