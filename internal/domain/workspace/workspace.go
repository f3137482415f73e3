package workspace

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/playground/internal/domain/bundle"
	"github.com/GriffinCanCode/playground/internal/infrastructure/logging"
	"github.com/GriffinCanCode/playground/internal/preview/bridge"
	"github.com/GriffinCanCode/playground/internal/preview/compiler"
	"github.com/GriffinCanCode/playground/internal/shared/id"
)

// Workspace is one playground session: three source buffers, the document
// compiled from them and the host running its preview. Every edit
// recompiles and rebuilds the preview from scratch.
type Workspace struct {
	id       id.WorkspaceID
	template string
	created  time.Time
	host     *bridge.Host
	debounce time.Duration
	logger   *logging.Logger

	mu      sync.Mutex
	bundle  bundle.Bundle
	doc     compiler.Document
	updated time.Time
	pending *time.Timer
	closed  bool
}

// Info is the serialisable summary of a workspace.
type Info struct {
	ID          id.WorkspaceID `json:"id"`
	Template    string         `json:"template"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Fingerprint string         `json:"fingerprint"`
	Preview     bridge.Preview `json:"preview"`
	Inspecting  bool           `json:"inspecting"`
	LogCount    int            `json:"log_count"`
}

// ID returns the workspace id.
func (w *Workspace) ID() id.WorkspaceID { return w.id }

// Host returns the preview host.
func (w *Workspace) Host() *bridge.Host { return w.host }

// Bundle returns the current source buffers.
func (w *Workspace) Bundle() bundle.Bundle {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bundle
}

// Document returns the document compiled from the current buffers.
func (w *Workspace) Document() compiler.Document {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.doc
}

// Info summarises the workspace.
func (w *Workspace) Info() Info {
	w.mu.Lock()
	info := Info{
		ID:          w.id,
		Template:    w.template,
		CreatedAt:   w.created,
		UpdatedAt:   w.updated,
		Fingerprint: w.doc.Fingerprint(),
	}
	w.mu.Unlock()

	info.Preview = w.host.Preview()
	info.Inspecting = w.host.Inspecting()
	info.LogCount = len(w.host.Logs())
	return info
}

// Update replaces one buffer and rebuilds the preview.
func (w *Workspace) Update(kind bundle.Kind, content string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.bundle.Set(kind, content); err != nil {
		return err
	}
	return w.rebuild()
}

// Replace swaps all three buffers and rebuilds the preview once.
func (w *Workspace) Replace(b bundle.Bundle) error {
	if err := b.Validate(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bundle = b
	return w.rebuild()
}

// Flush waits for the preview to apply everything queued so far. A
// debounced rebuild that has not fired yet is run first.
func (w *Workspace) Flush(ctx context.Context) error {
	w.mu.Lock()
	if w.pending != nil && w.pending.Stop() {
		w.pending = nil
		doc := w.doc
		w.mu.Unlock()
		w.reload(doc)
	} else {
		w.mu.Unlock()
	}
	return w.host.Flush(ctx)
}

// rebuild recompiles and reloads. Callers hold w.mu.
func (w *Workspace) rebuild() error {
	if w.closed {
		return ErrNotFound
	}
	w.doc = compiler.Compile(w.bundle)
	w.updated = time.Now()

	if w.debounce <= 0 {
		return w.host.Reload(w.doc)
	}
	if w.pending != nil {
		w.pending.Stop()
	}
	doc := w.doc
	w.pending = time.AfterFunc(w.debounce, func() { w.reload(doc) })
	return nil
}

func (w *Workspace) reload(doc compiler.Document) {
	w.mu.Lock()
	stale := w.closed || doc.Fingerprint() != w.doc.Fingerprint()
	w.mu.Unlock()
	if stale {
		return
	}
	if err := w.host.Reload(doc); err != nil {
		w.logger.Warn("debounced rebuild failed", zap.String("workspace", w.id.String()), zap.Error(err))
	}
}

func (w *Workspace) close() error {
	w.mu.Lock()
	w.closed = true
	if w.pending != nil {
		w.pending.Stop()
		w.pending = nil
	}
	w.mu.Unlock()
	return w.host.Close()
}
