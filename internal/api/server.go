package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-accessors/internal/audit"
	"github.com/nerrad567/gray-logic-accessors/internal/host"
	"github.com/nerrad567/gray-logic-accessors/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-accessors/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-accessors/internal/instance"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// AccessorHost is the subset of *host.Host the API uses.
type AccessorHost interface {
	Start(ctx context.Context, spec host.Spec) (host.Instance, error)
	Remove(id string) error
	Instances() []host.Instance
	Instance(id string) (host.Instance, error)
	Describe(id string) (host.Description, error)
	Has(id, name string) bool
	Write(ctx context.Context, id, name string, value any) error
	Read(ctx context.Context, id, name string) (any, error)
	Stats() host.Stats
}

// InstanceStore is the subset of *instance.Registry the API uses.
type InstanceStore interface {
	List() []instance.Record
	Get(ctx context.Context, id string) (*instance.Record, error)
	Create(ctx context.Context, rec *instance.Record) error
	Delete(ctx context.Context, id string) error
}

// Connectivity reports whether a backing service is reachable.
type Connectivity interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Logger    *logging.Logger
	Host      AccessorHost
	Instances InstanceStore   // optional
	MQTT      Connectivity    // optional, reported in metrics
	Metrics   http.Handler    // optional, served at /metrics
	Hub       *Hub            // if set, used instead of creating one
	Audit     *audit.Recorder // optional
	Mirror    MirrorReader    // optional

	// OnRemove runs after an instance is deleted, e.g. to clear mirrored
	// state. Optional.
	OnRemove func(ctx context.Context, id string)

	Version string
}

// Server is the HTTP API server.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	host      AccessorHost
	instances InstanceStore
	mqtt      Connectivity
	metrics   http.Handler
	onRemove  func(ctx context.Context, id string)
	auditor   *audit.Recorder
	mirror    MirrorReader
	version   string
	startTime time.Time

	// lifecycle serialises instance create and delete so the store and
	// the host stay in step.
	lifecycle sync.Mutex

	server *http.Server
	hub    *Hub
	cancel context.CancelFunc
}

// New creates a server. It is not listening until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Host == nil {
		return nil, fmt.Errorf("accessor host is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		host:      deps.Host,
		instances: deps.Instances,
		mqtt:      deps.MQTT,
		metrics:   deps.Metrics,
		onRemove:  deps.OnRemove,
		auditor:   deps.Audit,
		mirror:    deps.Mirror,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       deps.Hub,
	}
	if s.hub == nil {
		s.hub = NewHub(deps.WS, deps.Logger)
	}
	return s, nil
}

// Hub returns the WebSocket hub. Register it with the host as a sink.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start launches the listener in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server listening", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Close waits up to gracefulShutdownTimeout for in-flight requests, then
// closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server has been started.
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
