package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/audit"
	"github.com/nerrad567/gray-logic-hub/internal/entry"
	"github.com/nerrad567/gray-logic-hub/internal/history"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-hub/internal/state"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Entries is the entry bookkeeping the API reads and controls.
// *entry.Manager satisfies it.
type Entries interface {
	List() []*entry.Entry
	Get(id string) (*entry.Entry, error)
}

// HealthChecker is implemented by infrastructure clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Entries  Entries
	States   *state.Store

	// History is optional; without it the history route answers 503.
	History history.Repository

	// Audit is optional; without it control actions are only logged and
	// the audit route answers 503.
	Audit *audit.Trail

	// Metrics, when set, is mounted at MetricsPath.
	Metrics     http.Handler
	MetricsPath string

	// Health lists optional components reported by /health.
	Health map[string]HealthChecker

	Version string
}

// Server is the HTTP API server.
//
// Thread Safety: All methods are safe for concurrent use.
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	secCfg      config.SecurityConfig
	logger      *logging.Logger
	entries     Entries
	states      *state.Store
	history     history.Repository
	audit       *audit.Trail
	metrics     http.Handler
	metricsPath string
	health      map[string]HealthChecker
	version     string
	startTime   time.Time

	hub *Hub

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
	stopFeed func()
}

// New creates a server. It is not listening until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Entries == nil {
		return nil, fmt.Errorf("entries are required")
	}
	if deps.States == nil {
		return nil, fmt.Errorf("state store is required")
	}

	metricsPath := deps.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	return &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		secCfg:      deps.Security,
		logger:      deps.Logger,
		entries:     deps.Entries,
		states:      deps.States,
		history:     deps.History,
		audit:       deps.Audit,
		metrics:     deps.Metrics,
		metricsPath: metricsPath,
		health:      deps.Health,
		version:     deps.Version,
		startTime:   time.Now(),
		hub:         NewHub(deps.WS, deps.Logger),
	}, nil
}

// Hub returns the WebSocket hub. It is also a coordinator.RefreshObserver.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start starts the event stream and begins listening in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	s.startFeed(srvCtx)

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server listening", "address", ln.Addr().String())
	return nil
}

// startFeed runs the hub and relays store changes to it until ctx ends.
func (s *Server) startFeed(ctx context.Context) {
	go s.hub.Run(ctx)
	s.stopFeed = s.states.Subscribe(s.relayState)
}

// relayState broadcasts one entity change.
func (s *Server) relayState(entityID string) {
	st, ok := s.states.Get(entityID)
	if !ok {
		s.hub.Broadcast(ChannelStateChanged, map[string]any{
			"entity_id": entityID,
			"removed":   true,
		})
		return
	}
	s.hub.Broadcast(ChannelStateChanged, st)
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	s.mu.Lock()
	srv, cancel, stop := s.server, s.cancel, s.stopFeed
	s.server, s.cancel, s.stopFeed, s.listener = nil, nil, nil, nil
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	if cancel != nil {
		cancel()
	}
	if srv == nil {
		return nil
	}

	ctx, cancelShutdown := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancelShutdown()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
