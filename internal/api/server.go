// Package api provides the local HTTP status and setup API for the coop
// daemon.
//
// It exposes the cached device state, a command endpoint, and the device
// discovery listing the setup wizard needs to pin the daemon to one
// Autodoor. The server binds to localhost by default; it is an operator
// surface, not an internet-facing one.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cantcodewontcode/homebridge-omlet-coop/internal/coop"
	"github.com/cantcodewontcode/homebridge-omlet-coop/internal/infrastructure/config"
	"github.com/cantcodewontcode/homebridge-omlet-coop/internal/infrastructure/logging"
	"github.com/cantcodewontcode/homebridge-omlet-coop/internal/omlet"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Coordinator is the device coordinator surface the API depends on.
type Coordinator interface {
	Read(ctx context.Context) (coop.Snapshot, error)
	Issue(ctx context.Context, action omlet.Action) error
	Unavailable() bool
}

// Session is the session manager surface the API depends on.
type Session interface {
	DeviceID() string
	SetDeviceID(ctx context.Context, deviceID string) error
	PermanentlyFailed() bool
	EnsureToken(ctx context.Context) (string, error)
}

// DeviceLister lists the account's devices for the setup wizard.
type DeviceLister interface {
	ListDevices(ctx context.Context, token string) ([]omlet.DeviceInfo, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	Logger      *logging.Logger
	Coordinator Coordinator
	Session     Session
	Devices     DeviceLister
	Version     string
}

// Server is the local HTTP API server.
//
// It manages the HTTP listener, routes and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	logger      *logging.Logger
	coordinator Coordinator
	session     Session
	devices     DeviceLister
	version     string
	server      *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, coordinator, session)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Coordinator == nil {
		return nil, fmt.Errorf("coordinator is required")
	}
	if deps.Session == nil {
		return nil, fmt.Errorf("session is required")
	}
	// Devices is optional - without it the discovery endpoint returns 404

	return &Server{
		cfg:         deps.Config,
		logger:      deps.Logger,
		coordinator: deps.Coordinator,
		session:     deps.Session,
		devices:     deps.Devices,
		version:     deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It builds the router and launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(_ context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server started", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
