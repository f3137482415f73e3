package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"github.com/microcosm-cc/bluemonday"

	"github.com/GriffinCanCode/playground/internal/domain/bundle"
	"github.com/GriffinCanCode/playground/internal/domain/workspace"
	"github.com/GriffinCanCode/playground/internal/infrastructure/logging"
	"github.com/GriffinCanCode/playground/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/playground/internal/preview/sandbox"
)

// Version is reported by Root.
const Version = "0.3.0"

// readTimeout bounds how long a read waits on a busy boundary.
const readTimeout = 5 * time.Second

// Handlers contains all HTTP handlers
type Handlers struct {
	workspaces *workspace.Manager
	metrics    *monitoring.Metrics
	logger     *logging.Logger
	sanitizer  *bluemonday.Policy
	gzip       func(http.Handler) http.HandlerFunc
	started    time.Time
}

// NewHandlers creates a new handler set
func NewHandlers(workspaces *workspace.Manager, metrics *monitoring.Metrics, logger *logging.Logger) (*Handlers, error) {
	gz, err := gzhttp.NewWrapper(gzhttp.MinSize(512))
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handlers{
		workspaces: workspaces,
		metrics:    metrics,
		logger:     logger.Component("http"),
		sanitizer:  bluemonday.UGCPolicy(),
		gzip:       gz,
		started:    time.Now(),
	}, nil
}

// Register mounts every REST route on r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/templates", h.ListTemplates)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	ws := r.Group("/workspaces")
	ws.POST("", h.CreateWorkspace)
	ws.GET("", h.ListWorkspaces)
	ws.GET("/:id", h.GetWorkspace)
	ws.DELETE("/:id", h.DeleteWorkspace)
	ws.PUT("/:id/sources", h.ReplaceSources)
	ws.PUT("/:id/sources/:kind", h.UpdateSource)
	ws.GET("/:id/sources", h.GetSources)
	ws.GET("/:id/document", h.Document)
	ws.GET("/:id/dom", h.DOM)
	ws.GET("/:id/logs", h.Logs)
	ws.GET("/:id/selection", h.Selection)
	ws.POST("/:id/inspect/toggle", h.ToggleInspect)
	ws.POST("/:id/input", h.Input)
}

// Root handles service identification
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "playground preview service",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":     "healthy",
		"workspaces": h.workspaces.Len(),
		"uptime":     time.Since(h.started).Round(time.Second).String(),
	}
	if h.metrics != nil {
		body["metrics"] = h.metrics.Snapshot()
	}
	c.JSON(http.StatusOK, body)
}

// ListTemplates lists the starter bundles
func (h *Handlers) ListTemplates(c *gin.Context) {
	templates, err := bundle.Templates()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates})
}

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, workspace.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workspace.ErrLimit):
		return http.StatusTooManyRequests
	case errors.Is(err, bundle.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, bundle.ErrUnknownKind),
		errors.Is(err, bundle.ErrUnknownTemplate),
		errors.Is(err, sandbox.ErrNoTarget),
		errors.Is(err, sandbox.ErrUnknownInput):
		return http.StatusBadRequest
	case errors.Is(err, sandbox.ErrClosed):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusOf(err), gin.H{"error": err.Error()})
}

func (h *Handlers) badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

// workspace resolves the :id parameter, writing 404 when it is unknown.
func (h *Handlers) workspace(c *gin.Context) (*workspace.Workspace, bool) {
	w, err := h.workspaces.Get(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return w, true
}

func readContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), readTimeout)
}
