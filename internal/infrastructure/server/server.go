package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/playground/internal/api/http"
	"github.com/GriffinCanCode/playground/internal/api/middleware"
	"github.com/GriffinCanCode/playground/internal/api/ws"
	"github.com/GriffinCanCode/playground/internal/domain/workspace"
	"github.com/GriffinCanCode/playground/internal/infrastructure/config"
	"github.com/GriffinCanCode/playground/internal/infrastructure/logging"
	"github.com/GriffinCanCode/playground/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/playground/internal/preview/bridge"
	"github.com/GriffinCanCode/playground/internal/preview/sandbox"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router     *gin.Engine
	http       *http.Server
	workspaces *workspace.Manager
	logger     *logging.Logger
	config     *config.Config
	metrics    *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger := logging.NewFromLevel(cfg.Logging.Level, cfg.Logging.Development)

	logger.Info("Initializing playground server",
		zap.String("port", cfg.Server.Port),
		zap.Duration("sandbox_timeout", cfg.Sandbox.Timeout),
		zap.Int("max_workspaces", cfg.Preview.MaxWorkspaces),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()

	workspaces := workspace.NewManager(workspaceConfig(cfg),
		workspace.WithLogger(logger),
		workspace.WithObserver(metrics),
	)

	handlers, err := apihttp.NewHandlers(workspaces, metrics, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create handlers: %w", err)
	}
	wsHandler := ws.NewHandler(workspaces, metrics, logger)

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger.Component("access")))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	router.Use(middleware.BodyLimit(middleware.MaxBodySize))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	// Register routes
	handlers.Register(router)
	router.GET("/workspaces/:id/stream", wsHandler.HandleConnection)

	logger.Info("Server initialized successfully")

	return &Server{
		router:     router,
		workspaces: workspaces,
		logger:     logger,
		config:     cfg,
		metrics:    metrics,
	}, nil
}

// workspaceConfig maps environment settings onto the preview stack.
func workspaceConfig(cfg *config.Config) workspace.Config {
	host := bridge.DefaultConfig()
	host.Sandbox = sandbox.Config{
		Timeout:      cfg.Sandbox.Timeout,
		MaxCallStack: cfg.Sandbox.MaxCallStack,
		QueueSize:    cfg.Sandbox.QueueSize,
	}
	if cfg.Preview.SubscriberBuffer > 0 {
		host.SubscriberBuffer = cfg.Preview.SubscriberBuffer
	}
	return workspace.Config{
		Host:          host,
		Debounce:      cfg.Preview.RebuildDebounce,
		MaxWorkspaces: cfg.Preview.MaxWorkspaces,
	}
}

// Router exposes the gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
}

// Run starts the HTTP server and blocks until it stops. A clean Shutdown
// returns nil.
func (s *Server) Run() error {
	s.http = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, waits for in-flight requests and
// tears down every workspace.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if err := s.workspaces.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close workspaces: %w", err))
	}
	s.logger.Info("Closed workspaces")

	// Sync logger before exit
	_ = s.logger.Sync()

	return errors.Join(errs...)
}
