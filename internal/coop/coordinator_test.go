package coop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cantcodewontcode/homebridge-omlet-coop/internal/omlet"
	"github.com/cantcodewontcode/homebridge-omlet-coop/internal/session"
)

// fakeDevice is a test implementation of DeviceClient.
type fakeDevice struct {
	mu          sync.Mutex
	readResults []readResult // consumed in order; last result repeats
	readCalls   int
	actionErrs  []error // consumed in order; nil after exhaustion
	actionCalls int
	lastAction  omlet.Action
}

type readResult struct {
	state omlet.DeviceState
	err   error
}

func (f *fakeDevice) ReadState(_ context.Context, _, _ string) (omlet.DeviceState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.readCalls
	f.readCalls++
	if idx >= len(f.readResults) {
		idx = len(f.readResults) - 1
	}
	if idx < 0 {
		return omlet.DeviceState{}, errors.New("no read results configured")
	}
	r := f.readResults[idx]
	return r.state, r.err
}

func (f *fakeDevice) IssueAction(_ context.Context, _, _ string, action omlet.Action) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.actionCalls
	f.actionCalls++
	f.lastAction = action
	if idx < len(f.actionErrs) {
		return f.actionErrs[idx]
	}
	return nil
}

func (f *fakeDevice) ReadCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readCalls
}

func (f *fakeDevice) ActionCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.actionCalls
}

// fakeSession is a test implementation of Session.
type fakeSession struct {
	mu         sync.Mutex
	token      string
	deviceID   string
	recoverErr error
	recovers   int
	permanent  bool
}

func (s *fakeSession) EnsureToken(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.permanent {
		return "", session.ErrAuthPermanentlyFailed
	}
	return s.token, nil
}

func (s *fakeSession) DeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceID
}

func (s *fakeSession) Recover(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recovers++
	if s.recoverErr != nil {
		return s.recoverErr
	}
	s.token = "recovered-token"
	return nil
}

func (s *fakeSession) PermanentlyFailed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permanent
}

func (s *fakeSession) Recovers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recovers
}

func doorState(door omlet.DoorState) omlet.DeviceState {
	return omlet.DeviceState{
		DoorState:    door,
		LightState:   omlet.LightOff,
		BatteryLevel: 90,
		Serial:       "SN-1",
	}
}

func newTestCoordinator(device *fakeDevice, sess *fakeSession, opts Options) *Coordinator {
	if opts.PollInterval == 0 {
		opts.PollInterval = time.Hour // keep the loop out of timing-sensitive tests
	}
	opts.LightEnabled = true
	opts.BatteryEnabled = true
	return NewCoordinator(device, sess, opts)
}

func TestRead_ColdStartTriggersOneRefresh(t *testing.T) {
	device := &fakeDevice{readResults: []readResult{{state: doorState(omlet.DoorClosed)}}}
	sess := &fakeSession{token: "tok", deviceID: "d1"}
	c := newTestCoordinator(device, sess, Options{})

	snap, err := c.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if snap.DoorState != omlet.DoorClosed {
		t.Errorf("DoorState = %q, want closed", snap.DoorState)
	}
	if device.ReadCalls() != 1 {
		t.Errorf("read calls = %d, want 1", device.ReadCalls())
	}

	// Second read serves from cache
	if _, err := c.Read(context.Background()); err != nil {
		t.Fatalf("Read() second error = %v", err)
	}
	if device.ReadCalls() != 1 {
		t.Errorf("read calls after cached read = %d, want 1", device.ReadCalls())
	}
}

func TestRefresh_ReplacesSnapshotWholesale(t *testing.T) {
	device := &fakeDevice{readResults: []readResult{
		{state: doorState(omlet.DoorClosed)},
		{state: doorState(omlet.DoorOpen)},
	}}
	sess := &fakeSession{token: "tok", deviceID: "d1"}
	c := newTestCoordinator(device, sess, Options{})

	ctx := context.Background()
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() second error = %v", err)
	}

	snap, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if snap.DoorState != omlet.DoorOpen {
		t.Errorf("DoorState = %q, want open", snap.DoorState)
	}
}

func TestRefresh_FailureRetainsStaleSnapshot(t *testing.T) {
	device := &fakeDevice{readResults: []readResult{
		{state: doorState(omlet.DoorClosed)},
		{err: omlet.ErrTransient},
	}}
	sess := &fakeSession{token: "tok", deviceID: "d1"}
	c := newTestCoordinator(device, sess, Options{})

	ctx := context.Background()
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if err := c.Refresh(ctx); err == nil {
		t.Fatal("Refresh() second call succeeded, want transient failure")
	}

	snap, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if snap.DoorState != omlet.DoorClosed {
		t.Errorf("DoorState = %q, want stale closed snapshot", snap.DoorState)
	}
}

func TestRefresh_AuthRejectionRecoversAndRetriesOnce(t *testing.T) {
	device := &fakeDevice{readResults: []readResult{
		{err: omlet.ErrAuthRejected},
		{state: doorState(omlet.DoorOpen)},
	}}
	sess := &fakeSession{token: "expired", deviceID: "d1"}
	c := newTestCoordinator(device, sess, Options{})

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if sess.Recovers() != 1 {
		t.Errorf("recoveries = %d, want exactly 1", sess.Recovers())
	}
	if device.ReadCalls() != 2 {
		t.Errorf("read calls = %d, want exactly 2 (original + one retry)", device.ReadCalls())
	}
}

func TestRefresh_RecoveryFailureRetainsStaleSnapshot(t *testing.T) {
	device := &fakeDevice{readResults: []readResult{
		{state: doorState(omlet.DoorClosed)},
		{err: omlet.ErrAuthRejected},
	}}
	sess := &fakeSession{token: "tok", deviceID: "d1", recoverErr: errors.New("login refused")}
	c := newTestCoordinator(device, sess, Options{})

	ctx := context.Background()
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if err := c.Refresh(ctx); err == nil {
		t.Fatal("Refresh() succeeded, want recovery failure")
	}
	if device.ReadCalls() != 2 {
		t.Errorf("read calls = %d, want 2 (no retry after failed recovery)", device.ReadCalls())
	}

	snap, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if snap.DoorState != omlet.DoorClosed {
		t.Errorf("DoorState = %q, want stale closed snapshot", snap.DoorState)
	}
}

func TestIssue_OptimisticTransitionAndConfirmation(t *testing.T) {
	device := &fakeDevice{readResults: []readResult{
		{state: doorState(omlet.DoorClosed)},
		{state: doorState(omlet.DoorOpen)},
	}}
	sess := &fakeSession{token: "tok", deviceID: "d1"}
	c := newTestCoordinator(device, sess, Options{ConfirmDelay: 30 * time.Millisecond})

	updates := make(chan Snapshot, 16)
	c.Subscribe(func(s Snapshot) { updates <- s })

	ctx := context.Background()

	// Prime the cache
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	<-updates // snapshot from the priming refresh

	if err := c.Issue(ctx, omlet.ActionOpen); err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if device.lastAction != omlet.ActionOpen {
		t.Errorf("lastAction = %q, want open", device.lastAction)
	}

	// Immediate read reflects the optimistic transition
	snap, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if snap.DoorState != omlet.DoorOpening {
		t.Errorf("DoorState after Issue = %q, want opening", snap.DoorState)
	}

	// Confirmation refresh fires once and pushes the real state
	select {
	case confirmed := <-updates:
		if confirmed.DoorState != omlet.DoorOpen {
			t.Errorf("confirmed DoorState = %q, want open", confirmed.DoorState)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("confirmation snapshot never arrived")
	}

	// Exactly one confirmation notification
	select {
	case extra := <-updates:
		t.Errorf("unexpected extra notification: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestIssue_LightTransitions(t *testing.T) {
	tests := []struct {
		action omlet.Action
		want   omlet.LightState
	}{
		{omlet.ActionLightOn, omlet.LightOnPending},
		{omlet.ActionLightOff, omlet.LightOff},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			device := &fakeDevice{readResults: []readResult{{state: omlet.DeviceState{
				DoorState:  omlet.DoorClosed,
				LightState: omlet.LightOn,
			}}}}
			sess := &fakeSession{token: "tok", deviceID: "d1"}
			c := newTestCoordinator(device, sess, Options{ConfirmDelay: time.Hour})

			ctx := context.Background()
			if err := c.Refresh(ctx); err != nil {
				t.Fatalf("Refresh() error = %v", err)
			}
			if err := c.Issue(ctx, tt.action); err != nil {
				t.Fatalf("Issue() error = %v", err)
			}

			snap, err := c.Read(ctx)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if snap.LightState != tt.want {
				t.Errorf("LightState = %q, want %q", snap.LightState, tt.want)
			}
		})
	}
}

func TestIssue_AuthRejectionRecoversAndRetriesOnce(t *testing.T) {
	device := &fakeDevice{
		readResults: []readResult{{state: doorState(omlet.DoorClosed)}},
		actionErrs:  []error{omlet.ErrAuthRejected},
	}
	sess := &fakeSession{token: "expired", deviceID: "d1"}
	c := newTestCoordinator(device, sess, Options{ConfirmDelay: time.Hour})

	if err := c.Issue(context.Background(), omlet.ActionClose); err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if sess.Recovers() != 1 {
		t.Errorf("recoveries = %d, want exactly 1", sess.Recovers())
	}
	if device.ActionCalls() != 2 {
		t.Errorf("action calls = %d, want exactly 2", device.ActionCalls())
	}
}

func TestInfoFieldsLatch(t *testing.T) {
	device := &fakeDevice{readResults: []readResult{
		{state: omlet.DeviceState{
			DoorState:       omlet.DoorClosed,
			Serial:          "SN-1",
			FirmwareVersion: "1.0.34",
		}},
		{state: omlet.DeviceState{DoorState: omlet.DoorClosed}}, // info fields absent
	}}
	sess := &fakeSession{token: "tok", deviceID: "d1"}
	c := newTestCoordinator(device, sess, Options{})

	ctx := context.Background()
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() second error = %v", err)
	}

	snap, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if snap.Serial != "SN-1" || snap.FirmwareVersion != "1.0.34" {
		t.Errorf("latched fields lost: serial=%q firmware=%q", snap.Serial, snap.FirmwareVersion)
	}
}

func TestFeatureGating(t *testing.T) {
	device := &fakeDevice{readResults: []readResult{{state: omlet.DeviceState{
		DoorState:    omlet.DoorClosed,
		LightState:   omlet.LightOn,
		BatteryLevel: 80,
	}}}}
	sess := &fakeSession{token: "tok", deviceID: "d1"}
	c := NewCoordinator(device, sess, Options{
		PollInterval:   time.Hour,
		LightEnabled:   false,
		BatteryEnabled: false,
	})

	ctx := context.Background()
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	snap, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if snap.LightState != omlet.LightUnknown {
		t.Errorf("LightState = %q, want unknown with light disabled", snap.LightState)
	}
	if snap.BatteryLevel != -1 {
		t.Errorf("BatteryLevel = %d, want -1 with battery disabled", snap.BatteryLevel)
	}
}

func TestUnavailable(t *testing.T) {
	device := &fakeDevice{}
	sess := &fakeSession{permanent: true, deviceID: "d1"}
	c := newTestCoordinator(device, sess, Options{})

	if !c.Unavailable() {
		t.Error("Unavailable() = false, want true")
	}
	if _, err := c.Read(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Read() error = %v, want ErrUnavailable", err)
	}
	if err := c.Issue(context.Background(), omlet.ActionOpen); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Issue() error = %v, want ErrUnavailable", err)
	}
	if device.ReadCalls() != 0 || device.ActionCalls() != 0 {
		t.Error("no network calls should be made while unavailable")
	}
}

func TestRun_PollsAndStops(t *testing.T) {
	device := &fakeDevice{readResults: []readResult{{state: doorState(omlet.DoorClosed)}}}
	sess := &fakeSession{token: "tok", deviceID: "d1"}
	c := NewCoordinator(device, sess, Options{
		PollInterval:   20 * time.Millisecond,
		LightEnabled:   true,
		BatteryEnabled: true,
	})

	updates := make(chan Snapshot, 64)
	c.Subscribe(func(s Snapshot) { updates <- s })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	// Immediate refresh plus at least one scheduled tick
	for i := 0; i < 2; i++ {
		select {
		case <-updates:
		case <-time.After(2 * time.Second):
			t.Fatalf("snapshot %d never arrived", i+1)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop on cancellation")
	}
}

func TestConcurrentReadsSeeConsistentSnapshots(t *testing.T) {
	device := &fakeDevice{readResults: []readResult{
		{state: doorState(omlet.DoorClosed)},
		{state: doorState(omlet.DoorOpen)},
	}}
	sess := &fakeSession{token: "tok", deviceID: "d1"}
	c := newTestCoordinator(device, sess, Options{})

	ctx := context.Background()
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				snap, err := c.Read(ctx)
				if err != nil {
					t.Errorf("Read() error = %v", err)
					return
				}
				if snap.DoorState != omlet.DoorClosed && snap.DoorState != omlet.DoorOpen {
					t.Errorf("torn snapshot: %+v", snap)
					return
				}
			}
		}()
	}
	for i := 0; i < 20; i++ {
		if err := c.Refresh(ctx); err != nil {
			t.Fatalf("Refresh() error = %v", err)
		}
	}
	wg.Wait()
}
