package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/fieldlogger/internal/dutycycle"
	"github.com/nerrad567/fieldlogger/internal/infrastructure/config"
	"github.com/nerrad567/fieldlogger/internal/infrastructure/logging"
	"github.com/nerrad567/fieldlogger/internal/nvstate"
	"github.com/nerrad567/fieldlogger/internal/process"
	"github.com/nerrad567/fieldlogger/internal/reading"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 5 * time.Second

// healthCheckTimeout bounds the database check behind GET /health.
const healthCheckTimeout = 2 * time.Second

// CycleSource reports the most recent duty cycle. *dutycycle.Scheduler
// satisfies it.
type CycleSource interface {
	LastReport() (dutycycle.CycleReport, bool)
}

// StateSource reads the persistent scheduler state. *nvstate.State
// satisfies it.
type StateSource interface {
	Load(ctx context.Context) (nvstate.Snapshot, error)
}

// HealthChecker reports whether the non-volatile store is usable.
// *database.DB satisfies it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// LinkSource reports the supervised link daemons. *connectivity.Manager
// satisfies it.
type LinkSource interface {
	Links() []process.Stats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	DeviceID string
	Version  string

	// Mode is required; the rest are optional and their endpoints report
	// 404 or empty values when absent.
	Mode     *dutycycle.Mode
	Cycles   CycleSource
	State    StateSource
	Cache    *reading.Cache
	Settings *config.Store
	Metrics  http.Handler
	Health   HealthChecker
	Links    LinkSource
}

// Server is the administrative HTTP server.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	deviceID  string
	version   string
	mode      *dutycycle.Mode
	cycles    CycleSource
	state     StateSource
	cache     *reading.Cache
	settings  *config.Store
	metrics   http.Handler
	health    HealthChecker
	links     LinkSource
	startTime time.Time
	server    *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Logger and Mode are required
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Mode == nil {
		return nil, fmt.Errorf("mode is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		deviceID:  deps.DeviceID,
		version:   deps.Version,
		mode:      deps.Mode,
		cycles:    deps.Cycles,
		state:     deps.State,
		cache:     deps.Cache,
		settings:  deps.Settings,
		metrics:   deps.Metrics,
		health:    deps.Health,
		links:     deps.Links,
		startTime: time.Now(),
	}, nil
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
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
