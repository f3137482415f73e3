package sandbox

import (
	"errors"

	"github.com/dop251/goja"
	"golang.org/x/net/html"
)

// Event phases as exposed on event.eventPhase.
const (
	phaseNone     = 0
	phaseCapture  = 1
	phaseAtTarget = 2
	phaseBubble   = 3
)

// target identifies an event target: an *html.Node or the window.
type target any

type windowTarget struct{}

var window target = windowTarget{}

type listener struct {
	fn      goja.Value
	call    goja.Callable
	capture bool
	once    bool
	removed bool
}

// registry holds listeners per target and event type, in registration order.
type registry struct {
	byTarget map[target]map[string][]*listener
}

func newRegistry() *registry {
	return &registry{byTarget: make(map[target]map[string][]*listener)}
}

// add registers a listener unless the same (fn, capture) pair is present.
func (r *registry) add(t target, typ string, l *listener) {
	types := r.byTarget[t]
	if types == nil {
		types = make(map[string][]*listener)
		r.byTarget[t] = types
	}
	for _, cur := range types[typ] {
		if cur.capture == l.capture && cur.fn.StrictEquals(l.fn) {
			return
		}
	}
	types[typ] = append(types[typ], l)
}

func (r *registry) remove(t target, typ string, fn goja.Value, capture bool) {
	types := r.byTarget[t]
	if types == nil {
		return
	}
	list := types[typ]
	for i, cur := range list {
		if cur.capture == capture && cur.fn.StrictEquals(fn) {
			cur.removed = true
			types[typ] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// snapshot returns the current listeners so that additions made while
// dispatching do not run in the same pass.
func (r *registry) snapshot(t target, typ string) []*listener {
	list := r.byTarget[t][typ]
	if len(list) == 0 {
		return nil
	}
	return append([]*listener(nil), list...)
}

// event is the Go-side state of one dispatch.
type event struct {
	obj        *goja.Object
	typ        string
	bubbles    bool
	cancelable bool
	stopped    bool
	immediate  bool
	prevented  bool
}

// listenerOptions reads the third argument of addEventListener.
func listenerOptions(v goja.Value) (capture, once bool) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return false, false
	}
	if obj, ok := v.(*goja.Object); ok {
		if c := obj.Get("capture"); c != nil {
			capture = c.ToBoolean()
		}
		if o := obj.Get("once"); o != nil {
			once = o.ToBoolean()
		}
		return capture, once
	}
	return v.ToBoolean(), false
}

// newEvent creates a fresh event object of the given type.
func (b *Boundary) newEvent(typ string, bubbles, cancelable, trusted bool) *event {
	obj := b.vm.NewObject()
	_ = obj.Set("type", typ)
	_ = obj.Set("bubbles", bubbles)
	_ = obj.Set("cancelable", cancelable)
	_ = obj.Set("isTrusted", trusted)
	return &event{obj: obj, typ: typ, bubbles: bubbles, cancelable: cancelable}
}

// adoptEvent wraps an object passed to dispatchEvent by user code.
func (b *Boundary) adoptEvent(v goja.Value) (*event, error) {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, errors.New("parameter 1 is not of type 'Event'")
	}
	typ := obj.Get("type")
	if typ == nil || goja.IsUndefined(typ) {
		return nil, errors.New("event has no type")
	}
	ev := &event{obj: obj, typ: typ.String()}
	if v := obj.Get("bubbles"); v != nil {
		ev.bubbles = v.ToBoolean()
	}
	if v := obj.Get("cancelable"); v != nil {
		ev.cancelable = v.ToBoolean()
	}
	_ = obj.Set("isTrusted", false)
	return ev, nil
}

// arm installs the control methods bound to this dispatch.
func (b *Boundary) arm(ev *event, t target) {
	obj := ev.obj
	_ = obj.Set("target", b.targetValue(t))
	_ = obj.Set("srcElement", b.targetValue(t))
	_ = obj.Set("defaultPrevented", false)
	_ = obj.Set("timeStamp", b.elapsed())
	_ = obj.Set("preventDefault", func(goja.FunctionCall) goja.Value {
		if ev.cancelable {
			ev.prevented = true
			_ = obj.Set("defaultPrevented", true)
		}
		return goja.Undefined()
	})
	_ = obj.Set("stopPropagation", func(goja.FunctionCall) goja.Value {
		ev.stopped = true
		return goja.Undefined()
	})
	_ = obj.Set("stopImmediatePropagation", func(goja.FunctionCall) goja.Value {
		ev.stopped = true
		ev.immediate = true
		return goja.Undefined()
	})
	_ = obj.Set("composedPath", func(goja.FunctionCall) goja.Value {
		path := b.path(t)
		vals := make([]any, 0, len(path))
		for i := len(path) - 1; i >= 0; i-- {
			vals = append(vals, b.targetValue(path[i]))
		}
		return b.vm.NewArray(vals...)
	})
}

// path returns the propagation path from the outermost ancestor down to t.
// Nodes attached to the document are rooted at the window.
func (b *Boundary) path(t target) []target {
	n, ok := t.(*html.Node)
	if !ok {
		return []target{t}
	}
	var rev []target
	for p := n; p != nil; p = p.Parent {
		rev = append(rev, p)
	}
	if rev[len(rev)-1] == target(b.dom.Root()) {
		rev = append(rev, window)
	}
	out := make([]target, len(rev))
	for i, v := range rev {
		out[len(rev)-1-i] = v
	}
	return out
}

// dispatch runs an event through capture, target and bubble phases. It
// reports whether the default action is still allowed. Listener exceptions
// are reported and do not stop propagation; an interrupt aborts dispatch.
func (b *Boundary) dispatch(t target, ev *event) (bool, error) {
	b.arm(ev, t)
	path := b.path(t)
	last := len(path) - 1

	for i := 0; i < last && !ev.stopped; i++ {
		if err := b.invoke(path[i], ev, phaseCapture); err != nil {
			return false, err
		}
	}
	if !ev.stopped {
		if err := b.invoke(path[last], ev, phaseAtTarget); err != nil {
			return false, err
		}
	}
	if ev.bubbles {
		for i := last - 1; i >= 0 && !ev.stopped; i-- {
			if err := b.invoke(path[i], ev, phaseBubble); err != nil {
				return false, err
			}
		}
	}

	_ = ev.obj.Set("eventPhase", phaseNone)
	_ = ev.obj.Set("currentTarget", goja.Null())
	return !ev.prevented, nil
}

func (b *Boundary) invoke(t target, ev *event, phase int) error {
	this := b.targetValue(t)
	_ = ev.obj.Set("eventPhase", phase)
	_ = ev.obj.Set("currentTarget", this)

	for _, l := range b.events.snapshot(t, ev.typ) {
		if l.removed {
			continue
		}
		if phase == phaseCapture && !l.capture || phase == phaseBubble && l.capture {
			continue
		}
		if l.once {
			b.events.remove(t, ev.typ, l.fn, l.capture)
		}
		if _, err := l.call(this, ev.obj); err != nil {
			if err := b.report(err); err != nil {
				return err
			}
		}
		if ev.immediate {
			return nil
		}
	}
	if phase == phaseCapture {
		return nil
	}
	return b.invokeHandler(t, this, ev)
}

// invokeHandler runs an on<type> property handler, falling back to an
// inline attribute handler on elements.
func (b *Boundary) invokeHandler(t target, this goja.Value, ev *event) error {
	obj, ok := this.(*goja.Object)
	if !ok {
		return nil
	}
	name := "on" + ev.typ
	fn, ok := goja.AssertFunction(obj.Get(name))
	if !ok {
		n, isNode := t.(*html.Node)
		if !isNode || n.Type != html.ElementNode {
			return nil
		}
		src, has := attr(n, name)
		if !has {
			return nil
		}
		compiled, err := b.vm.RunString("(function (event) {\n" + src + "\n})")
		if err != nil {
			return b.report(err)
		}
		if fn, ok = goja.AssertFunction(compiled); !ok {
			return nil
		}
	}
	ret, err := fn(this, ev.obj)
	if err != nil {
		return b.report(err)
	}
	if ret != nil && ret.StrictEquals(b.vm.ToValue(false)) && ev.cancelable {
		ev.prevented = true
		_ = ev.obj.Set("defaultPrevented", true)
	}
	return nil
}

// targetValue returns the script-side object for a target.
func (b *Boundary) targetValue(t target) goja.Value {
	if n, ok := t.(*html.Node); ok {
		return b.wrap(n)
	}
	return b.vm.GlobalObject()
}

// installEventTarget adds addEventListener, removeEventListener and
// dispatchEvent for t onto obj.
func (b *Boundary) installEventTarget(obj *goja.Object, t target) {
	_ = obj.Set("addEventListener", func(call goja.FunctionCall) goja.Value {
		typ := call.Argument(0).String()
		fnv := call.Argument(1)
		fn, ok := goja.AssertFunction(fnv)
		if !ok {
			return goja.Undefined()
		}
		capture, once := listenerOptions(call.Argument(2))
		b.events.add(t, typ, &listener{fn: fnv, call: fn, capture: capture, once: once})
		return goja.Undefined()
	})
	_ = obj.Set("removeEventListener", func(call goja.FunctionCall) goja.Value {
		capture, _ := listenerOptions(call.Argument(2))
		b.events.remove(t, call.Argument(0).String(), call.Argument(1), capture)
		return goja.Undefined()
	})
	_ = obj.Set("dispatchEvent", func(call goja.FunctionCall) goja.Value {
		ev, err := b.adoptEvent(call.Argument(0))
		if err != nil {
			panic(b.vm.NewTypeError(err.Error()))
		}
		ok, err := b.dispatch(t, ev)
		if err != nil {
			b.reinterrupt(err)
		}
		return b.vm.ToValue(ok)
	})
}

// reinterrupt re-arms an interrupt observed by a nested call so that the
// enclosing script unwinds as well.
func (b *Boundary) reinterrupt(err error) {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		b.aborted = true
		b.vm.Interrupt(interrupted.Value())
	}
}
