package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/playground/internal/domain/bundle"
	"github.com/GriffinCanCode/playground/internal/domain/workspace"
	"github.com/GriffinCanCode/playground/internal/preview/bridge"
	"github.com/GriffinCanCode/playground/internal/preview/sandbox"
)

// CreateRequest is the body of POST /workspaces. It may be omitted.
type CreateRequest struct {
	Template string `json:"template"`
}

// SourceRequest is the body of PUT /workspaces/:id/sources/:kind.
type SourceRequest struct {
	Content *string `json:"content"`
}

// CreateWorkspace starts a workspace from a template
func (h *Handlers) CreateWorkspace(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.badRequest(c, "invalid request body")
		return
	}

	w, err := h.workspaces.Create(req.Template)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, w.Info())
}

// ListWorkspaces lists live workspaces
func (h *Handlers) ListWorkspaces(c *gin.Context) {
	list := h.workspaces.List()
	infos := make([]workspace.Info, 0, len(list))
	for _, w := range list {
		infos = append(infos, w.Info())
	}
	c.JSON(http.StatusOK, gin.H{"workspaces": infos, "count": len(infos)})
}

// GetWorkspace returns one workspace summary
func (h *Handlers) GetWorkspace(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, w.Info())
}

// DeleteWorkspace tears a workspace down
func (h *Handlers) DeleteWorkspace(c *gin.Context) {
	if err := h.workspaces.Delete(c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetSources returns the three source buffers
func (h *Handlers) GetSources(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, w.Bundle())
}

// UpdateSource replaces one buffer and rebuilds the preview
func (h *Handlers) UpdateSource(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	kind, err := bundle.ParseKind(c.Param("kind"))
	if err != nil {
		h.fail(c, err)
		return
	}
	var req SourceRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Content == nil {
		h.badRequest(c, "content is required")
		return
	}

	h.rebuilt(c, w, w.Update(kind, *req.Content))
}

// ReplaceSources swaps all three buffers with a single rebuild
func (h *Handlers) ReplaceSources(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	var sources map[string]string
	if err := c.ShouldBindJSON(&sources); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	b, err := bundle.FromMap(sources)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.rebuilt(c, w, w.Replace(b))
}

// rebuilt answers a source edit. A boundary that failed to build is not a
// request error: the failure is reported through the preview state.
func (h *Handlers) rebuilt(c *gin.Context, w *workspace.Workspace, err error) {
	if err != nil && !errors.Is(err, sandbox.ErrConstruction) {
		h.fail(c, err)
		return
	}
	if err != nil {
		h.logger.Debug("rebuild left preview failed",
			zap.String("workspace", w.ID().String()), zap.Error(err))
	}
	c.JSON(http.StatusOK, w.Info())
}

// Document serves the compiled preview document. The ETag is the document
// fingerprint, so unchanged buffers answer 304.
func (h *Handlers) Document(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	doc := w.Document()
	etag := fmt.Sprintf("%q", doc.Fingerprint())

	h.gzip(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		hdr := rw.Header()
		hdr.Set("ETag", etag)
		hdr.Set("Cache-Control", "no-cache")
		hdr.Set("X-Content-Type-Options", "nosniff")
		// An opaque origin for the document, same as a sandboxed frame.
		hdr.Set("Content-Security-Policy", "sandbox allow-scripts")
		if r.Header.Get("If-None-Match") == etag {
			rw.WriteHeader(http.StatusNotModified)
			return
		}
		hdr.Set("Content-Type", "text/html; charset=utf-8")
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write(doc.Bytes())
	})).ServeHTTP(c.Writer, c.Request)
}

// DOM returns the live body of the preview, sanitised for static display
func (h *Handlers) DOM(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	ctx, cancel := readContext(c)
	defer cancel()

	host := w.Host()
	if err := w.Flush(ctx); err != nil {
		h.fail(c, err)
		return
	}
	raw, err := host.HTML(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"generation": host.Preview().Generation,
		"html":       h.sanitizer.Sanitize(raw),
	})
}

// Logs returns the log stream of the current generation
func (h *Handlers) Logs(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	ctx, cancel := readContext(c)
	defer cancel()

	if err := w.Flush(ctx); err != nil {
		h.fail(c, err)
		return
	}
	host := w.Host()
	c.JSON(http.StatusOK, gin.H{
		"generation": host.Preview().Generation,
		"logs":       host.Logs(),
	})
}

// Selection returns the last picked element, in display form
func (h *Handlers) Selection(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	ctx, cancel := readContext(c)
	defer cancel()

	if err := w.Flush(ctx); err != nil {
		h.fail(c, err)
		return
	}
	host := w.Host()
	snap, picked := host.Selection()
	body := gin.H{"selected": picked, "inspecting": host.Inspecting()}
	if picked {
		body["element"] = snap.Display()
	}
	c.JSON(http.StatusOK, body)
}

// ToggleInspect flips the inspection session
func (h *Handlers) ToggleInspect(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	ctx, cancel := readContext(c)
	defer cancel()

	session, err := w.Host().ToggleInspect(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session, "inspecting": session == bridge.SessionActive})
}

// Input simulates a pointer move or click inside the preview
func (h *Handlers) Input(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	var in sandbox.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	ctx, cancel := readContext(c)
	defer cancel()

	host := w.Host()
	if err := host.Dispatch(ctx, in); err != nil {
		h.fail(c, err)
		return
	}
	if err := host.Flush(ctx); err != nil {
		h.fail(c, err)
		return
	}
	highlighted, err := host.Highlighted(ctx)
	if err != nil && !errors.Is(err, sandbox.ErrClosed) {
		h.fail(c, err)
		return
	}
	if highlighted == nil {
		highlighted = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"inspecting":  host.Inspecting(),
		"highlighted": highlighted,
	})
}
