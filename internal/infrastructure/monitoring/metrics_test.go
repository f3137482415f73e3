package monitoring

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.BoundaryBuilt()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.BoundariesBuilt))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.BoundariesBuilt))
}

func TestProtocolCounters(t *testing.T) {
	m := NewMetrics()
	m.MessageReceived("log")
	m.MessageReceived("log")
	m.MessageSent("INSPECT_ON")
	m.MessageDropped("stale_origin")
	m.BoundaryFailed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Messages.WithLabelValues("inbound", "log")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Messages.WithLabelValues("outbound", "INSPECT_ON")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesDropped.WithLabelValues("stale_origin")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BoundariesFailed))
}

func TestWorkspaceGauge(t *testing.T) {
	m := NewMetrics()
	m.WorkspacesActive(2)
	m.WorkspacesActive(1)
	m.WorkspacesActive(3)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.ActiveWorkspaces))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.WorkspacesTotal))
	assert.Equal(t, int64(3), m.Snapshot().ActiveWorkspaces)
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	r := gin.New()
	r.Use(Middleware(m))
	r.GET("/items/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	for _, path := range []string{"/items/1", "/items/2", "/missing"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/items/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "unmatched", "404")))

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.TotalErrors)
	assert.Greater(t, snap.UptimeSeconds, 0.0)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "playground_http_requests_total")
	assert.Contains(t, string(body), "playground_uptime_seconds")
}

func TestWSConnections(t *testing.T) {
	m := NewMetrics()
	m.IncWSConnections()
	m.IncWSConnections()
	m.DecWSConnections()
	m.RecordWSMessage("in", "ping")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.WSConnections))
	assert.Equal(t, int64(1), m.Snapshot().ActiveConnections)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WSMessages.WithLabelValues("in", "ping")))
}
