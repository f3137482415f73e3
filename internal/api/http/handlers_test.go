package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/playground/internal/domain/bundle"
	"github.com/GriffinCanCode/playground/internal/domain/workspace"
	"github.com/GriffinCanCode/playground/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/playground/internal/preview/bridge"
)

type fixture struct {
	t       *testing.T
	router  *gin.Engine
	manager *workspace.Manager
}

func newFixture(t *testing.T, max int) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	metrics := monitoring.NewMetrics()
	manager := workspace.NewManager(workspace.Config{
		Host:          bridge.DefaultConfig(),
		MaxWorkspaces: max,
	}, workspace.WithObserver(metrics))
	t.Cleanup(func() { _ = manager.Close() })

	h, err := NewHandlers(manager, metrics, nil)
	require.NoError(t, err)

	router := gin.New()
	h.Register(router)
	return &fixture{t: t, router: router, manager: manager}
}

func (f *fixture) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	f.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(f.t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (f *fixture) create(template string) workspace.Info {
	f.t.Helper()
	w := f.do("POST", "/workspaces", map[string]string{"template": template})
	require.Equal(f.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[workspace.Info](f.t, w)
}

type logsResponse struct {
	Generation uint64   `json:"generation"`
	Logs       []string `json:"logs"`
}

func TestRootAndHealth(t *testing.T) {
	f := newFixture(t, 0)
	f.create("blank")

	w := f.do("GET", "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), Version)

	w = f.do("GET", "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	health := decode[map[string]any](t, w)
	assert.Equal(t, "healthy", health["status"])
	assert.EqualValues(t, 1, health["workspaces"])
	assert.Contains(t, health, "metrics")

	w = f.do("GET", "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "playground_boundaries_built_total")
}

func TestListTemplates(t *testing.T) {
	f := newFixture(t, 0)

	w := f.do("GET", "/templates", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Templates []struct {
			Name string `json:"name"`
		} `json:"templates"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	var names []string
	for _, tpl := range body.Templates {
		names = append(names, tpl.Name)
	}
	assert.Subset(t, names, []string{"default", "blank", "counter"})
}

func TestWorkspaceLifecycle(t *testing.T) {
	f := newFixture(t, 0)

	w := f.do("POST", "/workspaces", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	info := decode[workspace.Info](t, w)
	assert.True(t, strings.HasPrefix(info.ID.String(), "ws_"))
	assert.Equal(t, "default", info.Template)
	assert.Equal(t, bridge.StateRunning, info.Preview.State)
	path := "/workspaces/" + info.ID.String()

	w = f.do("GET", "/workspaces", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["count"])

	w = f.do("GET", path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, info.ID, decode[workspace.Info](t, w).ID)

	w = f.do("GET", path+"/logs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"JS Loaded"}, decode[logsResponse](t, w).Logs)

	w = f.do("DELETE", path, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do("GET", path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = f.do("DELETE", path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateErrors(t *testing.T) {
	f := newFixture(t, 1)

	w := f.do("POST", "/workspaces", map[string]string{"template": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.create("blank")
	w = f.do("POST", "/workspaces", map[string]string{"template": "blank"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestUpdateSource(t *testing.T) {
	f := newFixture(t, 0)
	info := f.create("blank")
	path := "/workspaces/" + info.ID.String()

	w := f.do("PUT", path+"/sources/js", map[string]string{"content": `console.log("a"); console.log("b")`})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[workspace.Info](t, w)
	assert.Greater(t, updated.Preview.Generation, info.Preview.Generation)
	assert.NotEqual(t, info.Fingerprint, updated.Fingerprint)

	w = f.do("GET", path+"/logs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"a", "b"}, decode[logsResponse](t, w).Logs)

	w = f.do("GET", path+"/sources", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `console.log("a"); console.log("b")`, decode[map[string]string](t, w)["script"])

	tests := []struct {
		name string
		kind string
		body any
		want int
	}{
		{"unknown kind", "wasm", map[string]string{"content": "x"}, http.StatusBadRequest},
		{"missing content", "markup", map[string]string{}, http.StatusBadRequest},
		{"no body", "style", nil, http.StatusBadRequest},
		{"oversized", "script", map[string]string{"content": strings.Repeat("x", bundle.MaxSourceSize+1)}, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do("PUT", path+"/sources/"+tt.kind, tt.body)
			assert.Equal(t, tt.want, w.Code)
		})
	}

	w = f.do("PUT", "/workspaces/ws_missing/sources/markup", map[string]string{"content": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReplaceSources(t *testing.T) {
	f := newFixture(t, 0)
	info := f.create("default")
	path := "/workspaces/" + info.ID.String()

	w := f.do("PUT", path+"/sources", map[string]string{
		"markup": `<p id="p">x</p>`,
		"style":  "p { color: red }",
		"script": `console.log(document.getElementById("p").textContent)`,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, info.Preview.Generation+1, decode[workspace.Info](t, w).Preview.Generation)

	w = f.do("GET", path+"/logs", nil)
	assert.Equal(t, []string{"x"}, decode[logsResponse](t, w).Logs)

	// Unknown buffers are rejected and leave the sources untouched.
	w = f.do("PUT", path+"/sources", map[string]string{"html": "<p>y</p>", "wasm": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	w = f.do("GET", path+"/sources", nil)
	assert.Equal(t, `<p id="p">x</p>`, decode[map[string]string](t, w)["markup"])

	// Aliases name the same buffers as the canonical kinds.
	w = f.do("PUT", path+"/sources", map[string]string{"html": "<p>alias</p>", "css": "p { margin: 0 }"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = f.do("GET", path+"/sources", nil)
	sources := decode[map[string]string](t, w)
	assert.Equal(t, "<p>alias</p>", sources["markup"])
	assert.Equal(t, "p { margin: 0 }", sources["style"])
	assert.Empty(t, sources["script"])
}

func TestDocument(t *testing.T) {
	f := newFixture(t, 0)
	info := f.create("counter")
	path := "/workspaces/" + info.ID.String() + "/document"

	w := f.do("GET", path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	etag := w.Header().Get("ETag")
	assert.Equal(t, `"`+info.Fingerprint+`"`, etag)
	assert.Contains(t, w.Body.String(), `<button id="inc"`)
	plain := w.Body.String()

	w = f.do("GET", path, nil, "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())

	w = f.do("GET", path, nil, "Accept-Encoding", "gzip")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	unzipped, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, plain, string(unzipped))
}

func TestDOMIsSanitised(t *testing.T) {
	f := newFixture(t, 0)
	info := f.create("blank")
	path := "/workspaces/" + info.ID.String()

	w := f.do("PUT", path+"/sources", map[string]string{
		"markup": `<p onclick="steal()">hi</p><a href="javascript:alert(1)">x</a>`,
		"script": `document.querySelector("p").textContent = "changed"`,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do("GET", path+"/dom", nil)
	require.Equal(t, http.StatusOK, w.Code)
	html := decode[map[string]any](t, w)["html"].(string)
	assert.Contains(t, html, "<p>changed</p>")
	assert.NotContains(t, html, "onclick")
	assert.NotContains(t, html, "javascript:")
	assert.NotContains(t, html, "<script")
}

func TestInspectFlow(t *testing.T) {
	f := newFixture(t, 0)
	info := f.create("counter")
	path := "/workspaces/" + info.ID.String()

	w := f.do("GET", path+"/selection", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode[map[string]any](t, w)["selected"])

	w = f.do("POST", path+"/inspect/toggle", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode[map[string]any](t, w)["inspecting"])

	w = f.do("POST", path+"/input", map[string]string{"kind": "move", "target": "#title"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []any{"h1#title"}, decode[map[string]any](t, w)["highlighted"])

	w = f.do("POST", path+"/input", map[string]string{"kind": "move", "target": "#inc"})
	assert.Equal(t, []any{"button#inc"}, decode[map[string]any](t, w)["highlighted"])

	w = f.do("POST", path+"/input", map[string]string{"kind": "click", "target": "#inc"})
	require.Equal(t, http.StatusOK, w.Code)
	clicked := decode[map[string]any](t, w)
	assert.Equal(t, false, clicked["inspecting"])
	assert.Empty(t, clicked["highlighted"])

	w = f.do("GET", path+"/selection", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sel struct {
		Selected bool `json:"selected"`
		Element  struct {
			Tag       string `json:"tag"`
			ID        string `json:"id"`
			ClassName string `json:"className"`
			Styles    string `json:"styles"`
		} `json:"element"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sel))
	assert.True(t, sel.Selected)
	assert.Equal(t, "button", sel.Element.Tag)
	assert.Equal(t, "inc", sel.Element.ID)
	assert.Equal(t, "btn primary", sel.Element.ClassName)
	assert.Equal(t, "padding: 8px", sel.Element.Styles)

	// The pick swallowed the click, so the page counter did not move.
	w = f.do("GET", path+"/logs", nil)
	assert.Empty(t, decode[logsResponse](t, w).Logs)

	w = f.do("POST", path+"/input", map[string]string{"kind": "click", "target": "#inc"})
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do("GET", path+"/logs", nil)
	assert.Equal(t, []string{"count 1"}, decode[logsResponse](t, w).Logs)
}

func TestInputErrors(t *testing.T) {
	f := newFixture(t, 0)
	info := f.create("counter")
	path := "/workspaces/" + info.ID.String() + "/input"

	tests := []struct {
		name string
		body any
		want int
	}{
		{"no target", map[string]string{"kind": "click", "target": "#missing"}, http.StatusBadRequest},
		{"bad selector", map[string]string{"kind": "click", "target": "[["}, http.StatusBadRequest},
		{"unknown kind", map[string]string{"kind": "scroll", "target": "#inc"}, http.StatusBadRequest},
		{"no body", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do("POST", path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}
