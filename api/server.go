package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/agentflow/component"
	"github.com/kbukum/agentflow/logger"
	"github.com/kbukum/agentflow/observability"
	"github.com/kbukum/agentflow/sse"
	"github.com/kbukum/agentflow/workflow"
)

// Deps are the components the API serves.
type Deps struct {
	Orchestrator *workflow.Orchestrator
	Registry     *workflow.Registry
	// Loader resolves workflows by name. Nil disables the named workflow
	// routes.
	Loader  workflow.DefinitionLoader
	Metrics *observability.Metrics
	// Events streams run progress on /v1/events. Nil disables the route.
	Events *sse.Hub

	// Checkers are reported by /health next to the executor registry.
	Checkers []observability.HealthChecker
	Service  string
	Version  string
	Started  time.Time
}

// Server serves the workflow API over HTTP/1.1 and cleartext HTTP/2.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     Config
	deps       Deps
	log        *logger.Logger
	serving    atomic.Bool
}

// New creates a Server with the middleware stack and routes installed.
// Auth is enforced when cfg.Auth carries a secret.
func New(cfg Config, deps Deps, log *logger.Logger) (*Server, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Orchestrator == nil || deps.Registry == nil {
		return nil, fmt.Errorf("api: orchestrator and registry are required")
	}
	if deps.Started.IsZero() {
		deps.Started = time.Now()
	}

	if gin.Mode() != gin.TestMode {
		if zerolog.GlobalLevel() <= zerolog.DebugLevel {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}
	}

	s := &Server{
		engine: gin.New(),
		config: cfg,
		deps:   deps,
		log:    log.WithComponent("api"),
	}

	s.engine.Use(Recovery(s.log))
	s.engine.Use(RequestID())
	s.engine.Use(Tracing())
	s.engine.Use(RequestLogger(s.log, deps.Metrics))
	s.engine.Use(BodySizeLimit(cfg.MaxBodyBytes))
	if cfg.Auth.Enabled() {
		tokens, err := NewTokenService(cfg.Auth)
		if err != nil {
			return nil, err
		}
		s.engine.Use(Auth(tokens, "/health"))
	}
	s.routes()

	h2s := &http2.Server{
		MaxConcurrentStreams: 250,
		IdleTimeout:          120 * time.Second,
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      h2c.NewHandler(s.engine, h2s),
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.IdleTimeout) * time.Second,
	}
	return s, nil
}

func (s *Server) routes() {
	s.engine.GET("/health", s.health)
	s.engine.GET("/info", s.info)

	v1 := s.engine.Group("/v1")
	v1.GET("/executors", s.listExecutors)
	v1.POST("/runs", s.runInline)
	if s.deps.Loader != nil {
		v1.GET("/workflows", s.listWorkflows)
		v1.GET("/workflows/:name", s.getWorkflow)
		v1.POST("/workflows/:name/runs", s.runNamed)
	}
	if s.deps.Events != nil {
		v1.GET("/events", s.streamEvents)
	}
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start binds the port and begins serving. It returns once the listener is
// bound; serving continues in a goroutine.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server failed to bind %s: %w", s.httpServer.Addr, err)
	}
	s.httpServer.Addr = listener.Addr().String()

	s.serving.Store(true)
	go func() {
		defer s.serving.Store(false)
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("server error", logger.Fields(logger.FieldError, err.Error()))
		}
	}()

	s.log.Info("HTTP server started", logger.Fields("addr", s.httpServer.Addr))
	return nil
}

// Stop gracefully shuts down the server with a 5-second deadline.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.log.Info("HTTP server shut down")
	return nil
}

// Addr returns the listen address. After Start it is the bound address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Name implements component.Component.
func (s *Server) Name() string { return "http" }

// Health reports whether the server is accepting connections.
func (s *Server) Health(_ context.Context) observability.Health {
	h := observability.Health{Name: s.Name(), Status: observability.HealthStatusUp}
	if !s.serving.Load() {
		h.Status = observability.HealthStatusDown
		h.Message = "not serving"
	}
	return h
}

// Describe implements component.Describable.
func (s *Server) Describe() component.Description {
	return component.Description{
		Name:    "HTTP API",
		Type:    "server",
		Details: s.httpServer.Addr + " auth=" + strconv.FormatBool(s.config.Auth.Enabled()),
	}
}
