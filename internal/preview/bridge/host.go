package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/playground/internal/infrastructure/logging"
	"github.com/GriffinCanCode/playground/internal/preview/compiler"
	"github.com/GriffinCanCode/playground/internal/preview/sandbox"
	"github.com/GriffinCanCode/playground/internal/preview/wire"
)

// ErrNotStarted is returned by Flush before Start.
var ErrNotStarted = errors.New("host not started")

// item is one inbox entry: an envelope or a flush barrier.
type item struct {
	env     wire.Envelope
	barrier chan struct{}
}

// Host owns the current boundary and all host-visible preview state: the
// log stream, the selected element and the inspection session. Messages
// from boundaries are handled on a single goroutine in arrival order.
type Host struct {
	cfg      Config
	logger   *logging.Logger
	observer Observer

	inbox     chan item
	stop      chan struct{}
	stopped   chan struct{}
	started   atomic.Bool
	startOnce sync.Once
	closeOnce sync.Once

	mu         sync.RWMutex
	current    *sandbox.Boundary
	generation uint64
	state      State
	failure    string
	logs       []string
	selection  *wire.Snapshot
	session    Session
	subs       map[int]chan Event
	nextSub    int
}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the host logger.
func WithLogger(l *logging.Logger) Option {
	return func(h *Host) { h.logger = l.Component("bridge") }
}

// WithObserver sets the protocol counters sink.
func WithObserver(o Observer) Option {
	return func(h *Host) {
		if o != nil {
			h.observer = o
		}
	}
}

// New creates a host with no preview loaded.
func New(cfg Config, opts ...Option) *Host {
	def := DefaultConfig()
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = def.InboxSize
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = def.SubscriberBuffer
	}
	h := &Host{
		cfg:      cfg,
		logger:   logging.NewNop(),
		observer: nopObserver{},
		inbox:    make(chan item, cfg.InboxSize),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
		state:    StateEmpty,
		session:  SessionIdle,
		subs:     make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start begins consuming boundary messages. It is idempotent.
func (h *Host) Start() {
	h.startOnce.Do(func() {
		h.started.Store(true)
		go h.loop()
	})
}

// Close stops message handling, tears down the current boundary and ends
// every subscription.
func (h *Host) Close() error {
	h.closeOnce.Do(func() {
		close(h.stop)
		h.startOnce.Do(func() { close(h.stopped) })
		<-h.stopped

		h.mu.Lock()
		defer h.mu.Unlock()
		if h.current != nil {
			_ = h.current.Close()
			h.current = nil
		}
		for key, ch := range h.subs {
			close(ch)
			delete(h.subs, key)
		}
	})
	return nil
}

// Deliver implements sandbox.Sink. It is called from boundary goroutines.
func (h *Host) Deliver(env wire.Envelope) {
	select {
	case h.inbox <- item{env: env}:
	case <-h.stop:
		h.observer.MessageDropped(DropClosed)
	}
}

func (h *Host) loop() {
	defer close(h.stopped)
	for {
		select {
		case <-h.stop:
			return
		case it := <-h.inbox:
			if it.barrier != nil {
				close(it.barrier)
				continue
			}
			h.handle(it.env)
		}
	}
}

// handle applies one boundary message. Messages from any boundary other
// than the current one, and messages with unrecognised or host-to-boundary
// tags, change nothing.
func (h *Host) handle(env wire.Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	msg := env.Message
	if h.current == nil || env.Origin != h.current.ID() {
		h.drop(env, DropStale)
		return
	}
	if !msg.Known() {
		h.drop(env, DropUnknown)
		return
	}
	h.observer.MessageReceived(string(msg.Type))

	switch msg.Type {
	case wire.TypeLog, wire.TypeError:
		h.logs = append(h.logs, msg.Text)
		typ := EventLog
		if msg.Type == wire.TypeError {
			typ = EventError
		}
		h.publish(Event{Type: typ, Text: msg.Text})
	case wire.TypeElementSelected:
		if msg.Element == nil {
			h.drop(env, DropUnknown)
			return
		}
		snap := *msg.Element
		h.selection = &snap
		h.session = SessionIdle
		h.publish(Event{Type: EventSelection, Selection: &snap})
		h.publish(Event{Type: EventInspect, Inspecting: false})
	default:
		h.drop(env, DropDirection)
	}
}

func (h *Host) drop(env wire.Envelope, reason string) {
	h.observer.MessageDropped(reason)
	h.logger.Debug("ignoring boundary message",
		zap.String("reason", reason),
		zap.String("type", string(env.Message.Type)),
		zap.String("origin", env.Origin.String()),
		zap.Uint64("generation", env.Generation))
}

// Reload replaces the preview with doc. The previous boundary is discarded,
// the log stream is cleared and the session returns to Idle. The new
// boundary is registered as current before it starts, so its first
// messages are accepted.
func (h *Host) Reload(doc compiler.Document) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.current != nil {
		_ = h.current.Close()
		h.current = nil
	}
	h.generation++
	h.logs = nil
	h.session = SessionIdle

	b, err := sandbox.New(h.cfg.Sandbox, doc, h,
		sandbox.WithGeneration(h.generation),
		sandbox.WithLogger(h.logger))
	if err == nil {
		h.current = b
		err = b.Start()
	}
	if err != nil {
		h.current = nil
		h.state = StateFailed
		h.failure = err.Error()
		h.observer.BoundaryFailed()
		h.logger.Warn("preview boundary construction failed",
			zap.Uint64("generation", h.generation), zap.Error(err))
		h.publish(Event{Type: EventFailed, Text: h.failure})
		return fmt.Errorf("reload generation %d: %w", h.generation, err)
	}

	h.state = StateRunning
	h.failure = ""
	h.observer.BoundaryBuilt()
	h.publish(Event{Type: EventReload})
	return nil
}

// ToggleInspect flips the inspection session and sends the matching
// command into the current boundary. Without a boundary it does nothing.
func (h *Host) ToggleInspect(ctx context.Context) (Session, error) {
	h.mu.Lock()
	b := h.current
	if b == nil {
		s := h.session
		h.mu.Unlock()
		return s, nil
	}
	cmd := wire.InspectEnable()
	prev, next := h.session, SessionActive
	if prev == SessionActive {
		cmd = wire.InspectDisable()
		next = SessionIdle
	}
	h.session = next
	h.publish(Event{Type: EventInspect, Inspecting: next == SessionActive})
	h.mu.Unlock()

	// Posting outside the lock keeps a full boundary queue from stalling
	// message handling.
	if err := b.Post(ctx, cmd); err != nil {
		if errors.Is(err, sandbox.ErrClosed) {
			return h.Session(), nil
		}
		// The command never reached the page; undo the flip unless a
		// reload or another toggle already moved the session on.
		h.mu.Lock()
		if h.current == b && h.session == next {
			h.session = prev
			h.publish(Event{Type: EventInspect, Inspecting: prev == SessionActive})
		}
		s := h.session
		h.mu.Unlock()
		return s, fmt.Errorf("send %s: %w", cmd.Type, err)
	}
	h.observer.MessageSent(string(cmd.Type))
	return next, nil
}

// Dispatch forwards simulated input to the current boundary.
func (h *Host) Dispatch(ctx context.Context, in sandbox.Input) error {
	b := h.Boundary()
	if b == nil {
		return nil
	}
	return b.Dispatch(ctx, in)
}

// Flush returns once every message emitted by work queued before the call
// has been applied to host state.
func (h *Host) Flush(ctx context.Context) error {
	if !h.started.Load() {
		return ErrNotStarted
	}
	select {
	case <-h.stop:
		return nil
	default:
	}
	if b := h.Boundary(); b != nil {
		if err := b.Settle(ctx); err != nil && !errors.Is(err, sandbox.ErrClosed) {
			return err
		}
	}

	barrier := make(chan struct{})
	select {
	case h.inbox <- item{barrier: barrier}:
	case <-h.stop:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-barrier:
		return nil
	case <-h.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Boundary returns the current boundary, or nil.
func (h *Host) Boundary() *sandbox.Boundary {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Logs returns a copy of the current generation's log stream.
func (h *Host) Logs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string{}, h.logs...)
}

// Selection returns the last picked element. It survives reloads.
func (h *Host) Selection() (wire.Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.selection == nil {
		return wire.Snapshot{}, false
	}
	return *h.selection, true
}

// Session returns the inspection session state.
func (h *Host) Session() Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.session
}

// Inspecting reports whether the session is Active.
func (h *Host) Inspecting() bool { return h.Session() == SessionActive }

// Preview describes the current generation.
func (h *Host) Preview() Preview {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p := Preview{Generation: h.generation, State: h.state, Error: h.failure}
	if h.current != nil {
		p.Boundary = h.current.ID()
	}
	return p
}

// HTML serialises the live body of the current boundary.
func (h *Host) HTML(ctx context.Context) (string, error) {
	b := h.Boundary()
	if b == nil {
		return "", nil
	}
	return b.HTML(ctx)
}

// Highlighted lists elements currently highlighted in the current boundary.
func (h *Host) Highlighted(ctx context.Context) ([]string, error) {
	b := h.Boundary()
	if b == nil {
		return nil, nil
	}
	return b.Highlighted(ctx)
}

// Subscribe streams host events. Events are dropped for a subscriber whose
// buffer is full. The returned cancel func ends the subscription.
func (h *Host) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, h.cfg.SubscriberBuffer)
	select {
	case <-h.stop:
		close(ch)
		return ch, func() {}
	default:
	}
	key := h.nextSub
	h.nextSub++
	h.subs[key] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if cur, ok := h.subs[key]; ok {
				close(cur)
				delete(h.subs, key)
			}
		})
	}
}

// publish fans ev out to subscribers. Callers hold h.mu.
func (h *Host) publish(ev Event) {
	ev.Generation = h.generation
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.observer.MessageDropped("slow_subscriber")
		}
	}
}
