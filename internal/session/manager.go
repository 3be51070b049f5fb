package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cantcodewontcode/homebridge-omlet-coop/internal/omlet"
)

// maxReloginAttempts is the circuit breaker threshold: after this many
// consecutive login failures the session fails permanently.
const maxReloginAttempts = 3

// AuthClient is the slice of the Omlet client the manager needs.
type AuthClient interface {
	Login(ctx context.Context, creds omlet.Credentials) (string, error)
	ListDevices(ctx context.Context, token string) ([]omlet.DeviceInfo, error)
}

// Logger defines the logging interface used by the Manager.
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

// Manager owns the bearer token and the re-login circuit breaker.
//
// Exactly one Manager exists per running instance; collaborators hold a
// reference rather than reading ambient global state.
//
// All public methods are thread-safe. The mutex is held across the login
// network call on purpose: concurrent recovery requests coalesce into one
// login instead of racing the vendor's endpoint.
type Manager struct {
	auth   AuthClient
	store  Store
	creds  *omlet.Credentials // nil in manual-token mode
	logger Logger

	mu                sync.Mutex
	token             string
	deviceID          string
	attempts          int
	permanentlyFailed bool
}

// Options configures a Manager.
type Options struct {
	// Credentials for re-login. Nil means manual-token mode: the first
	// auth rejection permanently fails the session since there is nothing
	// to retry with.
	Credentials *omlet.Credentials

	// Token seeds the session with a statically configured token.
	// A stored token from a previous run takes priority over it.
	Token string

	// DeviceID seeds the selected device. A stored device id takes priority.
	DeviceID string
}

// NewManager creates a session manager.
// Call Init before first use to load the persisted credential cache.
func NewManager(auth AuthClient, store Store, opts Options) *Manager {
	return &Manager{
		auth:     auth,
		store:    store,
		creds:    opts.Credentials,
		token:    opts.Token,
		deviceID: opts.DeviceID,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Init loads the persisted credential cache. Stored values win over the
// statically configured token and device id when present: the store holds
// whatever the last successful login and discovery produced, which is
// newer than anything in the config file.
func (m *Manager) Init(ctx context.Context) error {
	stored, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading credential cache: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if stored.Token != "" {
		m.token = stored.Token
	}
	if stored.DeviceID != "" {
		m.deviceID = stored.DeviceID
	}

	m.logger.Debug("session initialised",
		"have_token", m.token != "",
		"have_device", m.deviceID != "",
		"have_credentials", m.creds != nil,
	)
	return nil
}

// Token returns the current bearer token. May be empty before the first
// login; callers that need a guaranteed token use EnsureToken.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// DeviceID returns the selected device id, or "" when none is selected.
func (m *Manager) DeviceID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deviceID
}

// SetDeviceID selects a device and persists the choice.
func (m *Manager) SetDeviceID(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return fmt.Errorf("%w: empty device id", ErrNoDeviceSelected)
	}

	m.mu.Lock()
	m.deviceID = deviceID
	m.persistLocked(ctx)
	m.mu.Unlock()

	m.logger.Info("device selected", "device_id", deviceID)
	return nil
}

// PermanentlyFailed reports whether the circuit breaker has tripped.
// Once true it stays true for the life of the process.
func (m *Manager) PermanentlyFailed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.permanentlyFailed
}

// EnsureToken returns the current token, performing a login first if none
// is held yet.
func (m *Manager) EnsureToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.permanentlyFailed {
		return "", ErrAuthPermanentlyFailed
	}
	if m.token != "" {
		return m.token, nil
	}
	if err := m.recoverLocked(ctx); err != nil {
		return "", err
	}
	return m.token, nil
}

// Recover runs one cycle of the re-login state machine after a downstream
// call reported an auth rejection.
//
// On success the caller may retry its original operation exactly once.
// On failure the caller must not retry this cycle; its next independent
// auth rejection triggers recovery again, up to the breaker limit.
//
// Returns:
//   - nil: New token obtained and persisted
//   - ErrAuthPermanentlyFailed: Breaker tripped (now or previously)
//   - other: This login attempt failed but the breaker has headroom
func (m *Manager) Recover(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recoverLocked(ctx)
}

// recoverLocked is the state machine body. Caller holds m.mu.
func (m *Manager) recoverLocked(ctx context.Context) error {
	if m.permanentlyFailed {
		// Fail fast, no network call
		return ErrAuthPermanentlyFailed
	}

	if m.creds == nil {
		// Manual-token mode: the token was rejected and there is nothing
		// to retry with. Terminal immediately.
		m.permanentlyFailed = true
		m.logger.Error("manual token rejected and no credentials configured; session permanently failed")
		return ErrAuthPermanentlyFailed
	}

	m.attempts++
	m.logger.Info("attempting re-login", "attempt", m.attempts, "max", maxReloginAttempts)

	token, err := m.auth.Login(ctx, *m.creds)
	if err != nil {
		if m.attempts >= maxReloginAttempts {
			m.permanentlyFailed = true
			m.logger.Error("re-login circuit breaker tripped",
				"attempts", m.attempts,
				"error", err,
			)
			return fmt.Errorf("%w: after %d attempts: %w", ErrAuthPermanentlyFailed, m.attempts, err)
		}
		m.logger.Warn("re-login failed",
			"attempt", m.attempts,
			"max", maxReloginAttempts,
			"error", err,
		)
		return fmt.Errorf("re-login attempt %d of %d: %w", m.attempts, maxReloginAttempts, err)
	}

	m.attempts = 0
	m.token = token
	m.persistLocked(ctx)

	m.logger.Info("re-login succeeded")
	return nil
}

// persistLocked writes the credential cache. Persistence failures are
// logged, not returned: a working in-memory session beats failing the
// operation over a cache write.
func (m *Manager) persistLocked(ctx context.Context) {
	err := m.store.Save(ctx, StoredCredentials{
		Token:    m.token,
		DeviceID: m.deviceID,
	})
	if err != nil {
		m.logger.Warn("persisting credential cache failed", "error", err)
	}
}

// Discover lists the account's devices and auto-selects when unambiguous.
//
// Exactly one device: it is selected and persisted. Zero or several: the
// listing is returned unchanged for the setup layer to disambiguate, and
// no selection is made.
func (m *Manager) Discover(ctx context.Context) ([]omlet.DeviceInfo, error) {
	token, err := m.EnsureToken(ctx)
	if err != nil {
		return nil, err
	}

	devices, err := m.auth.ListDevices(ctx, token)
	if errors.Is(err, omlet.ErrAuthRejected) {
		if recErr := m.Recover(ctx); recErr != nil {
			return nil, recErr
		}
		devices, err = m.auth.ListDevices(ctx, m.Token())
	}
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	m.mu.Lock()
	alreadySelected := m.deviceID != ""
	m.mu.Unlock()

	if !alreadySelected {
		switch len(devices) {
		case 1:
			if err := m.SetDeviceID(ctx, devices[0].DeviceID); err != nil {
				return devices, err
			}
		default:
			m.logger.Info("device discovery ambiguous, selection deferred to setup",
				"count", len(devices),
			)
		}
	}

	return devices, nil
}
