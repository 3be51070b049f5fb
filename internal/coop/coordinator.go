package coop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cantcodewontcode/homebridge-omlet-coop/internal/omlet"
	"github.com/cantcodewontcode/homebridge-omlet-coop/internal/session"
)

// defaultConfirmDelay is how long after a command the confirmation poll
// fires. Tuned to the Autodoor's physical actuation time.
const defaultConfirmDelay = 15 * time.Second

// DeviceClient is the slice of the Omlet client the coordinator needs.
type DeviceClient interface {
	ReadState(ctx context.Context, token, deviceID string) (omlet.DeviceState, error)
	IssueAction(ctx context.Context, token, deviceID string, action omlet.Action) error
}

// Session is the session manager surface the coordinator depends on.
type Session interface {
	EnsureToken(ctx context.Context) (string, error)
	DeviceID() string
	Recover(ctx context.Context) error
	PermanentlyFailed() bool
}

// Logger defines the logging interface used by the Coordinator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Coordinator.
type Options struct {
	// PollInterval is the background refresh interval.
	// The config layer clamps it; a non-positive value falls back to 60s.
	PollInterval time.Duration

	// ConfirmDelay overrides the post-command confirmation delay.
	// Zero means the 15s default. Tests use short values.
	ConfirmDelay time.Duration

	// LightEnabled and BatteryEnabled gate the optional hardware features.
	// Disabled features read as LightUnknown / battery -1 regardless of
	// what the cloud reports.
	LightEnabled   bool
	BatteryEnabled bool
}

// Coordinator owns the poll cache and serialises command issuance.
//
// Thread Safety:
//   - All public methods are safe for concurrent use.
//   - refreshMu serialises network reads so at most one in-flight read
//     updates the cache; a scheduled tick overlapping a cold-start or
//     confirmation refresh waits instead of issuing a duplicate call.
//   - mu guards the cached snapshot, observers and confirmation timer.
//     The optimistic update and confirmation scheduling in Issue happen
//     under one hold of mu, atomically with respect to refresh applying
//     a new snapshot.
type Coordinator struct {
	device  DeviceClient
	session Session
	logger  Logger

	interval       time.Duration
	confirmDelay   time.Duration
	lightEnabled   bool
	batteryEnabled bool

	// refreshMu serialises network refreshes.
	refreshMu sync.Mutex

	mu           sync.Mutex
	snapshot     *Snapshot
	infoLatched  bool
	serial       string
	firmware     string
	observers    []Observer
	confirmTimer *time.Timer
	runCtx       context.Context
}

// NewCoordinator creates a coordinator for one device session.
func NewCoordinator(device DeviceClient, session Session, opts Options) *Coordinator {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	confirmDelay := opts.ConfirmDelay
	if confirmDelay <= 0 {
		confirmDelay = defaultConfirmDelay
	}

	return &Coordinator{
		device:         device,
		session:        session,
		logger:         noopLogger{},
		interval:       interval,
		confirmDelay:   confirmDelay,
		lightEnabled:   opts.LightEnabled,
		batteryEnabled: opts.BatteryEnabled,
	}
}

// SetLogger sets the logger for the coordinator.
func (c *Coordinator) SetLogger(logger Logger) {
	c.logger = logger
}

// Subscribe registers an observer for new snapshots.
// Must be called before Run; registration is not synchronised with an
// already-running poll loop.
func (c *Coordinator) Subscribe(obs Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, obs)
}

// Unavailable reports the standing unavailable condition: the session has
// permanently failed and every device operation will fail until restart.
func (c *Coordinator) Unavailable() bool {
	return c.session.PermanentlyFailed()
}

// Run drives the poll loop until ctx is cancelled.
//
// One refresh fires immediately, then one per interval. Refresh failures
// are logged and the previous snapshot stays authoritative; the loop
// itself never stops on an error. Cancellation also stops any pending
// confirmation poll.
func (c *Coordinator) Run(ctx context.Context) {
	c.mu.Lock()
	c.runCtx = ctx
	c.mu.Unlock()

	c.logger.Info("poll loop starting", "interval", c.interval)

	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn("initial refresh failed", "error", err)
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			if c.confirmTimer != nil {
				c.confirmTimer.Stop()
				c.confirmTimer = nil
			}
			c.mu.Unlock()
			c.logger.Info("poll loop stopped")
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.logger.Warn("scheduled refresh failed, serving last snapshot", "error", err)
			}
		}
	}
}

// Refresh reads the device state and replaces the cached snapshot.
//
// Auth rejections are routed through session recovery and the read is
// retried exactly once. On any failure the previous snapshot is retained
// and the error returned for the caller to log.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	state, err := c.readWithRecovery(ctx)
	if err != nil {
		return err
	}

	snap := c.apply(state)
	c.notify(snap)
	return nil
}

// readWithRecovery performs one state read with the recover-and-retry-once
// policy for auth rejections.
func (c *Coordinator) readWithRecovery(ctx context.Context) (omlet.DeviceState, error) {
	token, err := c.session.EnsureToken(ctx)
	if err != nil {
		return omlet.DeviceState{}, err
	}

	deviceID := c.session.DeviceID()
	if deviceID == "" {
		return omlet.DeviceState{}, fmt.Errorf("reading state: %w", session.ErrNoDeviceSelected)
	}

	state, err := c.device.ReadState(ctx, token, deviceID)
	if errors.Is(err, omlet.ErrAuthRejected) {
		if recErr := c.session.Recover(ctx); recErr != nil {
			return omlet.DeviceState{}, recErr
		}
		token, err = c.session.EnsureToken(ctx)
		if err != nil {
			return omlet.DeviceState{}, err
		}
		state, err = c.device.ReadState(ctx, token, deviceID)
	}
	if err != nil {
		return omlet.DeviceState{}, err
	}
	return state, nil
}

// apply builds the next snapshot from a device read and installs it.
// Serial and firmware latch on first real capture and are never
// overwritten by an empty value from a later response.
func (c *Coordinator) apply(state omlet.DeviceState) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if state.Serial != "" {
		c.serial = state.Serial
		c.firmware = state.FirmwareVersion
		c.infoLatched = true
	}

	snap := Snapshot{
		DoorState:       state.DoorState,
		LightState:      omlet.LightUnknown,
		BatteryLevel:    -1,
		Serial:          c.serial,
		FirmwareVersion: c.firmware,
		FetchedAt:       time.Now(),
	}
	if c.lightEnabled {
		snap.LightState = state.LightState
	}
	if c.batteryEnabled {
		snap.BatteryLevel = state.BatteryLevel
	}

	c.snapshot = &snap
	return snap
}

// notify pushes a snapshot copy to every observer.
func (c *Coordinator) notify(snap Snapshot) {
	c.mu.Lock()
	observers := make([]Observer, len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	for _, obs := range observers {
		obs(snap)
	}
}

// Read returns the cached snapshot.
//
// Cold start (no snapshot yet) triggers one synchronous refresh, so the
// first presentation-layer read costs at most one poll; every later read
// within a poll interval is served from cache.
func (c *Coordinator) Read(ctx context.Context) (Snapshot, error) {
	if c.session.PermanentlyFailed() {
		return Snapshot{}, ErrUnavailable
	}

	c.mu.Lock()
	cached := c.snapshot
	c.mu.Unlock()

	if cached != nil {
		return *cached, nil
	}

	if err := c.Refresh(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("cold-start refresh: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshot == nil {
		return Snapshot{}, ErrNoSnapshot
	}
	return *c.snapshot, nil
}

// Issue sends a command to the device.
//
// On success the cached state transitions optimistically (open reads as
// opening) and a one-shot confirmation refresh is scheduled; both happen
// atomically against the cache so a concurrent refresh cannot interleave
// between them. The confirmation result reaches observers like any other
// refresh.
func (c *Coordinator) Issue(ctx context.Context, action omlet.Action) error {
	if c.session.PermanentlyFailed() {
		return ErrUnavailable
	}

	if err := c.issueWithRecovery(ctx, action); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot != nil {
		next := *c.snapshot
		switch action {
		case omlet.ActionOpen:
			next.DoorState = omlet.DoorOpening
		case omlet.ActionClose:
			next.DoorState = omlet.DoorClosing
		case omlet.ActionLightOn:
			next.LightState = omlet.LightOnPending
		case omlet.ActionLightOff:
			next.LightState = omlet.LightOff
		}
		c.snapshot = &next
	}
	// No snapshot yet means nothing to transition; the confirmation poll
	// below populates the cache either way.

	if c.confirmTimer != nil {
		c.confirmTimer.Stop()
	}
	runCtx := c.runCtx
	if runCtx == nil {
		runCtx = context.Background()
	}
	c.confirmTimer = time.AfterFunc(c.confirmDelay, func() {
		if runCtx.Err() != nil {
			return
		}
		if err := c.Refresh(runCtx); err != nil {
			c.logger.Warn("confirmation refresh failed", "action", action, "error", err)
		}
	})

	c.logger.Info("action issued", "action", action, "confirm_in", c.confirmDelay)
	return nil
}

// issueWithRecovery performs one action call with the recover-and-retry-once
// policy for auth rejections.
func (c *Coordinator) issueWithRecovery(ctx context.Context, action omlet.Action) error {
	token, err := c.session.EnsureToken(ctx)
	if err != nil {
		return err
	}

	deviceID := c.session.DeviceID()
	if deviceID == "" {
		return fmt.Errorf("issuing action: %w", session.ErrNoDeviceSelected)
	}

	err = c.device.IssueAction(ctx, token, deviceID, action)
	if errors.Is(err, omlet.ErrAuthRejected) {
		if recErr := c.session.Recover(ctx); recErr != nil {
			return recErr
		}
		token, err = c.session.EnsureToken(ctx)
		if err != nil {
			return err
		}
		err = c.device.IssueAction(ctx, token, deviceID, action)
	}
	return err
}
