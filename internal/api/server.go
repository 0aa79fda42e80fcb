package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-bthome/internal/bridges/health"
	"github.com/nerrad567/gray-logic-bthome/internal/homie"
	"github.com/nerrad567/gray-logic-bthome/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-bthome/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-bthome/internal/inspector"
	"github.com/nerrad567/gray-logic-bthome/internal/metrics"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// watchBuffer is the topic update buffer between the tree and the hub.
const watchBuffer = 256

// DeviceSource lists the published Homie devices. Implemented by
// *homie.Registry.
type DeviceSource interface {
	Devices() []homie.DeviceDescriptor
	Device(id string) (*homie.Device, bool)
}

// ConnectionChecker reports MQTT connectivity. Implemented by *mqtt.Client.
type ConnectionChecker interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Devices DeviceSource

	// Optional.
	MQTT     ConnectionChecker
	Topics   *inspector.Tree
	Bridges  map[string]health.StatsSource
	Gatherer prometheus.Gatherer

	// Zigbee2MQTT is nil when the zigbee2mqtt bridge is disabled.
	Zigbee2MQTT Zigbee2MQTTSource
	Metrics     *metrics.Metrics
	Version     string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	logger      *logging.Logger
	devices     DeviceSource
	mqtt        ConnectionChecker
	topics      *inspector.Tree
	bridges     map[string]health.StatsSource
	zigbee2mqtt Zigbee2MQTTSource
	gatherer    prometheus.Gatherer
	metrics     *metrics.Metrics
	version     string
	startTime   time.Time

	server   *http.Server
	listener net.Listener
	hub      *Hub
	cancel   context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device source is required")
	}

	s := &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		logger:      deps.Logger,
		devices:     deps.Devices,
		mqtt:        deps.MQTT,
		topics:      deps.Topics,
		bridges:     deps.Bridges,
		zigbee2mqtt: deps.Zigbee2MQTT,
		gatherer:    deps.Gatherer,
		metrics:     deps.Metrics,
		version:     deps.Version,
		startTime:   time.Now(),
	}
	s.hub = NewHub(s.wsCfg, s.logger, s.metrics)
	return s, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, relays inspector updates into it and serves
// HTTP in a background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	if s.topics != nil {
		values, stop := s.topics.Watch(watchBuffer)
		go s.relayTopics(srvCtx, values, stop)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
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

// HealthCheck verifies the API server is running.
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

// relayTopics forwards inspector updates to WebSocket subscribers until ctx
// is cancelled.
func (s *Server) relayTopics(ctx context.Context, values <-chan inspector.Value, stop func()) {
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-values:
			if !ok {
				return
			}
			s.hub.BroadcastTopic(v)
		}
	}
}
