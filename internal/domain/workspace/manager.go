package workspace

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/playground/internal/domain/bundle"
	"github.com/GriffinCanCode/playground/internal/infrastructure/logging"
	"github.com/GriffinCanCode/playground/internal/preview/bridge"
	"github.com/GriffinCanCode/playground/internal/shared/id"
)

var (
	// ErrNotFound is returned for unknown or deleted workspaces.
	ErrNotFound = errors.New("workspace not found")
	// ErrLimit is returned when the workspace cap is reached.
	ErrLimit = errors.New("workspace limit reached")
)

// Config defines manager limits.
type Config struct {
	Host          bridge.Config
	Debounce      time.Duration
	MaxWorkspaces int
}

// Observer extends the bridge counters with a workspace gauge.
type Observer interface {
	bridge.Observer
	WorkspacesActive(n int)
}

// Manager holds workspaces keyed by id.
type Manager struct {
	cfg      Config
	logger   *logging.Logger
	observer Observer

	mu    sync.RWMutex
	items map[id.WorkspaceID]*Workspace
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger handed to workspaces and hosts.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithObserver sets the metrics sink.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// NewManager creates an empty manager.
func NewManager(cfg Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:    cfg,
		logger: logging.NewNop(),
		items:  make(map[id.WorkspaceID]*Workspace),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a workspace from the named template (empty selects the
// default) and builds its first preview.
func (m *Manager) Create(template string) (*Workspace, error) {
	if template == "" {
		template = bundle.DefaultTemplate
	}
	src, err := bundle.FromTemplate(template)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.cfg.MaxWorkspaces > 0 && len(m.items) >= m.cfg.MaxWorkspaces {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w (%d)", ErrLimit, m.cfg.MaxWorkspaces)
	}

	hostOpts := []bridge.Option{bridge.WithLogger(m.logger)}
	if m.observer != nil {
		hostOpts = append(hostOpts, bridge.WithObserver(m.observer))
	}
	w := &Workspace{
		id:       id.NewWorkspaceID(),
		template: template,
		created:  time.Now(),
		host:     bridge.New(m.cfg.Host, hostOpts...),
		debounce: m.cfg.Debounce,
		logger:   m.logger.Component("workspace"),
		bundle:   src,
	}
	m.items[w.id] = w
	n := len(m.items)
	m.mu.Unlock()
	m.gauge(n)

	w.host.Start()
	if err := w.Replace(src); err != nil {
		// The workspace stays usable: the next edit retries the build.
		m.logger.Warn("initial preview failed", zap.String("workspace", w.id.String()), zap.Error(err))
	}
	m.logger.Info("workspace created", zap.String("workspace", w.id.String()), zap.String("template", template))
	return w, nil
}

// Get returns a workspace by id.
func (m *Manager) Get(wid string) (*Workspace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.items[id.WorkspaceID(wid)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, wid)
	}
	return w, nil
}

// List returns every workspace in creation order.
func (m *Manager) List() []*Workspace {
	m.mu.RLock()
	out := make([]*Workspace, 0, len(m.items))
	for _, w := range m.items {
		out = append(out, w)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Len returns the number of live workspaces.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Delete closes a workspace and its preview.
func (m *Manager) Delete(wid string) error {
	m.mu.Lock()
	w, ok := m.items[id.WorkspaceID(wid)]
	if ok {
		delete(m.items, w.id)
	}
	n := len(m.items)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, wid)
	}
	m.gauge(n)
	m.logger.Info("workspace deleted", zap.String("workspace", wid))
	return w.close()
}

// Close tears down every workspace.
func (m *Manager) Close() error {
	m.mu.Lock()
	items := m.items
	m.items = make(map[id.WorkspaceID]*Workspace)
	m.mu.Unlock()

	var errs []error
	for _, w := range items {
		if err := w.close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.gauge(0)
	return errors.Join(errs...)
}

func (m *Manager) gauge(n int) {
	if m.observer != nil {
		m.observer.WorkspacesActive(n)
	}
}
