package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/playground/internal/infrastructure/logging"
	"github.com/GriffinCanCode/playground/internal/preview/compiler"
	"github.com/GriffinCanCode/playground/internal/preview/wire"
	"github.com/GriffinCanCode/playground/internal/shared/id"
)

// Boundary is one isolated execution context for a compiled document: a
// private DOM plus a goja runtime driven by a single-threaded event loop.
// Host and boundary share no mutable state; they talk only through Post and
// the Sink.
type Boundary struct {
	id         id.BoundaryID
	generation uint64
	cfg        Config
	sink       Sink
	logger     *logging.Logger
	created    time.Time

	// Owned by the loop goroutine.
	vm         *goja.Runtime
	dom        *DOM
	events     *registry
	nodes      map[*html.Node]*goja.Object
	objects    map[*goja.Object]*html.Node
	timers     map[int64]*timer
	nextTimer  int64
	rejections []*goja.Promise
	readyState string
	aborted    bool
	reporting  bool

	tasks     chan func()
	done      chan struct{}
	stopped   chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

// Option configures a boundary.
type Option func(*Boundary)

// WithGeneration tags every emitted envelope with the preview generation.
func WithGeneration(gen uint64) Option {
	return func(b *Boundary) { b.generation = gen }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *logging.Logger) Option {
	return func(b *Boundary) { b.logger = l.Component("sandbox") }
}

// New builds a boundary around doc. The event loop is not running until
// Start; nothing executes before then.
func New(cfg Config, doc compiler.Document, sink Sink, opts ...Option) (*Boundary, error) {
	if sink == nil {
		return nil, fmt.Errorf("%w: nil sink", ErrConstruction)
	}
	if doc.IsZero() {
		return nil, fmt.Errorf("%w: empty document", ErrConstruction)
	}
	dom, err := parseDOM(doc.String())
	if err != nil {
		return nil, fmt.Errorf("%w: parse document: %v", ErrConstruction, err)
	}

	cfg = cfg.withDefaults()
	b := &Boundary{
		id:         id.NewBoundaryID(),
		cfg:        cfg,
		sink:       sink,
		logger:     logging.NewNop(),
		created:    time.Now(),
		vm:         goja.New(),
		dom:        dom,
		events:     newRegistry(),
		nodes:      make(map[*html.Node]*goja.Object),
		objects:    make(map[*goja.Object]*html.Node),
		timers:     make(map[int64]*timer),
		readyState: "loading",
		tasks:      make(chan func(), cfg.QueueSize),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.vm.SetMaxCallStackSize(cfg.MaxCallStack)
	if err := b.setupGlobals(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConstruction, err)
	}
	return b, nil
}

// ID returns the boundary's unique identity.
func (b *Boundary) ID() id.BoundaryID { return b.id }

// Generation returns the preview generation the boundary was built for.
func (b *Boundary) Generation() uint64 { return b.generation }

// Start launches the event loop. The document load (every <script> in
// document order, then DOMContentLoaded and load) runs before any queued
// task.
func (b *Boundary) Start() error {
	if b.isClosed() {
		return ErrClosed
	}
	b.startOnce.Do(func() { go b.loop() })
	return nil
}

// Post queues a host-to-boundary message. It is delivered asynchronously to
// the window's message listeners.
func (b *Boundary) Post(ctx context.Context, msg wire.Message) error {
	return b.enqueue(ctx, b.guarded(func() {
		data, err := b.messageData(msg)
		if err != nil {
			b.logger.Debug("encode host message", zap.String("type", string(msg.Type)), zap.Error(err))
			return
		}
		ev := b.newEvent("message", false, false, true)
		_ = ev.obj.Set("data", data)
		_ = ev.obj.Set("origin", "null")
		_ = ev.obj.Set("source", b.vm.Get("parent"))
		if _, err := b.dispatch(window, ev); err != nil {
			_ = b.report(err)
		}
	}))
}

// Dispatch simulates a pointer action on the element matched by in.Target.
func (b *Boundary) Dispatch(ctx context.Context, in Input) error {
	typ, ok := in.Kind.eventType()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownInput, in.Kind)
	}
	return b.call(ctx, func() error {
		n, err := b.dom.Find(in.Target)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNoTarget, err)
		}
		if n == nil {
			return fmt.Errorf("%w: %s", ErrNoTarget, in.Target)
		}
		ev := b.newEvent(typ, true, true, true)
		for _, k := range []string{"clientX", "clientY", "screenX", "screenY", "button"} {
			_ = ev.obj.Set(k, 0)
		}
		if _, err := b.dispatch(n, ev); err != nil {
			_ = b.report(err)
		}
		return nil
	})
}

// Settle returns once every task queued before the call has run. Pending
// timers are not waited for.
func (b *Boundary) Settle(ctx context.Context) error {
	return b.call(ctx, func() error { return nil })
}

// HTML serialises the live <body> content.
func (b *Boundary) HTML(ctx context.Context) (string, error) {
	var out string
	err := b.call(ctx, func() error {
		s, err := b.dom.RenderBody()
		out = s
		return err
	})
	return out, err
}

// Highlighted returns tag#id descriptors of elements currently carrying the
// inspector highlight class.
func (b *Boundary) Highlighted(ctx context.Context) ([]string, error) {
	var out []string
	err := b.call(ctx, func() error {
		out = nil
		for _, n := range byClass(b.dom.Root(), compiler.HighlightClass) {
			out = append(out, describe(n))
		}
		return nil
	})
	return out, err
}

// Close tears the boundary down. A running task is interrupted and queued
// tasks are discarded.
func (b *Boundary) Close() error {
	b.closeOnce.Do(func() {
		close(b.done)
		b.vm.Interrupt(ErrClosed)
	})
	return nil
}

// Done is closed once the event loop has exited.
func (b *Boundary) Done() <-chan struct{} { return b.stopped }

func (b *Boundary) isClosed() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

func (b *Boundary) loop() {
	defer close(b.stopped)
	defer b.stopTimers()
	b.load()
	for {
		select {
		case <-b.done:
			return
		case task := <-b.tasks:
			if b.isClosed() {
				return
			}
			task()
		}
	}
}

func (b *Boundary) enqueue(ctx context.Context, task func()) error {
	if b.isClosed() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case b.tasks <- task:
		return nil
	case <-b.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call runs fn on the loop and waits for its result.
func (b *Boundary) call(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	if err := b.enqueue(ctx, b.guarded(func() { errc <- fn() })); err != nil {
		return err
	}
	select {
	case err := <-errc:
		return err
	case <-b.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// guarded wraps a task with the execution time limit. A task that exceeds it
// is interrupted and reported as an error message.
func (b *Boundary) guarded(fn func()) func() {
	return func() {
		b.aborted = false
		fired := make(chan struct{})
		deadline := time.AfterFunc(b.cfg.Timeout, func() {
			b.vm.Interrupt(ErrTimeout)
			close(fired)
		})

		fn()
		if !b.aborted {
			b.flushRejections()
		}

		if !deadline.Stop() {
			<-fired
		}
		b.vm.ClearInterrupt()
		if b.aborted && !b.isClosed() {
			b.emit(wire.Error(fmt.Sprintf("Uncaught Error: %v after %s", ErrTimeout, b.cfg.Timeout)))
		}
		b.aborted = false
	}
}

// load executes the document's scripts, each under its own time limit.
func (b *Boundary) load() {
	for i, script := range b.dom.Scripts() {
		if b.isClosed() {
			return
		}
		if !isClassicScript(script) {
			continue
		}
		name := scriptName(script, i)
		if src, ok := attr(script, "src"); ok {
			b.guarded(func() {
				b.emit(wire.Error(fmt.Sprintf("Blocked loading external script %q", src)))
			})()
			continue
		}
		code := textContent(script)
		b.guarded(func() {
			if _, err := b.vm.RunScript(name, code); err != nil {
				_ = b.report(err)
			}
		})()
	}

	b.guarded(func() {
		b.readyState = "interactive"
		if _, err := b.dispatch(b.dom.Root(), b.newEvent("DOMContentLoaded", true, false, true)); err != nil {
			_ = b.report(err)
		}
	})()
	b.guarded(func() {
		b.readyState = "complete"
		if _, err := b.dispatch(window, b.newEvent("load", false, false, true)); err != nil {
			_ = b.report(err)
		}
	})()
}

func isClassicScript(n *html.Node) bool {
	typ, ok := attr(n, "type")
	if !ok || typ == "" {
		return true
	}
	switch typ {
	case "text/javascript", "application/javascript", "module":
		return true
	}
	return false
}

func scriptName(n *html.Node, i int) string {
	if _, ok := attr(n, compiler.ShimMarker); ok {
		return "preview-shim.js"
	}
	if _, ok := attr(n, compiler.UserScriptMarker); ok {
		return "script.js"
	}
	return fmt.Sprintf("inline-script-%d.js", i)
}

// emit delivers a boundary-to-host message through the sink.
func (b *Boundary) emit(m wire.Message) {
	b.sink.Deliver(wire.Envelope{Origin: b.id, Generation: b.generation, Message: m})
}

// report surfaces a script failure. Exceptions are raised as a window error
// event so in-page handlers and the shim observe them; an interrupt marks
// the task aborted and is returned so callers unwind.
func (b *Boundary) report(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		b.aborted = true
		return err
	}

	msg := err.Error()
	reason := goja.Undefined()
	var exc *goja.Exception
	if errors.As(err, &exc) && exc.Value() != nil {
		reason = exc.Value()
		msg = "Uncaught " + exc.Value().String()
	}
	if b.reporting {
		b.emit(wire.Error(msg))
		return nil
	}

	b.reporting = true
	defer func() { b.reporting = false }()
	ev := b.newEvent("error", false, true, true)
	_ = ev.obj.Set("message", msg)
	_ = ev.obj.Set("error", reason)
	_, derr := b.dispatch(window, ev)
	return derr
}

// trackRejection follows promises rejected without a handler.
func (b *Boundary) trackRejection(p *goja.Promise, op goja.PromiseRejectionOperation) {
	switch op {
	case goja.PromiseRejectionReject:
		b.rejections = append(b.rejections, p)
	case goja.PromiseRejectionHandle:
		for i, cur := range b.rejections {
			if cur == p {
				b.rejections = append(b.rejections[:i], b.rejections[i+1:]...)
				return
			}
		}
	}
}

func (b *Boundary) flushRejections() {
	pending := b.rejections
	b.rejections = nil
	for _, p := range pending {
		ev := b.newEvent("unhandledrejection", false, true, true)
		_ = ev.obj.Set("reason", p.Result())
		if _, err := b.dispatch(window, ev); err != nil {
			_ = b.report(err)
			return
		}
	}
}

// messageData converts a host message into a plain script object.
func (b *Boundary) messageData(msg wire.Message) (goja.Value, error) {
	raw, err := wire.Encode(msg)
	if err != nil {
		return nil, err
	}
	parse, ok := goja.AssertFunction(b.vm.Get("JSON").ToObject(b.vm).Get("parse"))
	if !ok {
		return nil, errors.New("JSON.parse unavailable")
	}
	return parse(goja.Undefined(), b.vm.ToValue(string(raw)))
}

func (b *Boundary) elapsed() float64 {
	return float64(time.Since(b.created).Microseconds()) / 1000
}
