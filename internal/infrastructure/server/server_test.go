package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/playground/internal/api/middleware"
	"github.com/GriffinCanCode/playground/internal/infrastructure/config"
)

func newServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Logging.Level = "error"
	if mutate != nil {
		mutate(cfg)
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func TestRoutesAndMiddleware(t *testing.T) {
	s := newServer(t, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/workspaces", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	s.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `playground_http_requests_total{method="POST",path="/workspaces",status="201"} 1`)
	assert.Contains(t, w.Body.String(), "playground_workspaces_active 1")
}

func TestRateLimitFromConfig(t *testing.T) {
	s := newServer(t, func(cfg *config.Config) {
		cfg.RateLimit.RequestsPerSecond = 1
		cfg.RateLimit.Burst = 1
	})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/health", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		s.Router().ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestWorkspaceConfigMapping(t *testing.T) {
	cfg := config.Default()
	cfg.Sandbox.Timeout = 300 * time.Millisecond
	cfg.Preview.RebuildDebounce = 50 * time.Millisecond
	cfg.Preview.SubscriberBuffer = 4
	cfg.Preview.MaxWorkspaces = 3

	wc := workspaceConfig(cfg)
	assert.Equal(t, 300*time.Millisecond, wc.Host.Sandbox.Timeout)
	assert.Equal(t, 4, wc.Host.SubscriberBuffer)
	assert.Equal(t, 50*time.Millisecond, wc.Debounce)
	assert.Equal(t, 3, wc.MaxWorkspaces)
}

func TestAddr(t *testing.T) {
	s := newServer(t, func(cfg *config.Config) {
		cfg.Server.Host = "127.0.0.1"
		cfg.Server.Port = "9001"
	})
	assert.Equal(t, "127.0.0.1:9001", s.Addr())
}
