package sandbox

import (
	"fmt"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/playground/internal/preview/wire"
)

// Origin reported by location inside the preview.
const Origin = "about:srcdoc"

// blocked names are removed from the global scope.
var blocked = []string{
	"require", "process", "module", "exports",
	"fetch", "XMLHttpRequest", "WebSocket", "EventSource",
	"importScripts", "Worker", "SharedWorker",
}

// prelude defines the constructors scripts expect to exist.
const prelude = `(function (g) {
  function DOMException(message, name) {
    this.message = message === undefined ? "" : String(message);
    this.name = name === undefined ? "Error" : String(name);
  }
  DOMException.prototype = Object.create(Error.prototype);
  DOMException.prototype.constructor = DOMException;

  function Event(type, init) {
    if (arguments.length === 0) throw new TypeError("Failed to construct 'Event': 1 argument required");
    init = init || {};
    this.type = String(type);
    this.bubbles = !!init.bubbles;
    this.cancelable = !!init.cancelable;
    this.defaultPrevented = false;
  }
  function CustomEvent(type, init) {
    Event.call(this, type, init);
    this.detail = init && init.detail !== undefined ? init.detail : null;
  }
  CustomEvent.prototype = Object.create(Event.prototype);
  CustomEvent.prototype.constructor = CustomEvent;

  g.DOMException = DOMException;
  g.Event = Event;
  g.CustomEvent = CustomEvent;
  g.queueMicrotask = function (fn) { Promise.resolve().then(fn); };
})(this);`

// setupGlobals installs the restricted window surface.
func (b *Boundary) setupGlobals() error {
	global := b.vm.GlobalObject()
	for _, name := range blocked {
		global.Delete(name)
	}
	if _, err := b.vm.RunScript("prelude.js", prelude); err != nil {
		return fmt.Errorf("prelude: %w", err)
	}
	b.vm.SetPromiseRejectionTracker(b.trackRejection)

	set := func(name string, v any) {
		_ = global.Set(name, v)
	}
	set("window", global)
	set("self", global)
	set("frames", global)
	set("frameElement", goja.Null())
	set("console", b.silentConsole())

	host := b.hostProxy()
	set("parent", host)
	set("top", host)
	set("opener", goja.Null())

	location := b.location()
	set("location", location)
	set("navigator", map[string]any{
		"userAgent": "playground-preview",
		"language":  "en-US",
		"languages": []string{"en-US"},
		"onLine":    false,
	})
	set("innerWidth", 1024)
	set("innerHeight", 768)
	set("devicePixelRatio", 1)

	for _, name := range []string{"localStorage", "sessionStorage", "indexedDB"} {
		b.denied(global, name)
	}

	set("open", func(goja.FunctionCall) goja.Value {
		b.throw("SecurityError", "Blocked opening a window from a sandboxed preview")
		return nil
	})
	set("alert", func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	set("confirm", func(goja.FunctionCall) goja.Value { return b.vm.ToValue(false) })
	set("prompt", func(goja.FunctionCall) goja.Value { return goja.Null() })
	set("postMessage", func(call goja.FunctionCall) goja.Value {
		b.postSelf(call.Argument(0))
		return goja.Undefined()
	})
	set("getComputedStyle", func(call goja.FunctionCall) goja.Value {
		n := b.nodeArg(call.Argument(0))
		if n == nil {
			panic(b.vm.NewTypeError("getComputedStyle: parameter 1 is not of type 'Element'"))
		}
		return b.styleObject(n)
	})

	b.installTimers(global)
	b.installEventTarget(global, window)

	doc := b.wrap(b.dom.Root())
	set("document", doc)
	return nil
}

// silentConsole is replaced method by method by the shim; before that,
// output goes nowhere.
func (b *Boundary) silentConsole() *goja.Object {
	console := b.vm.NewObject()
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	for _, m := range []string{"log", "info", "warn", "error", "debug", "trace", "table", "group", "groupEnd", "clear"} {
		_ = console.Set(m, noop)
	}
	return console
}

// hostProxy is the only view of the embedding page: postMessage and nothing
// else. The proxy is frozen so page code cannot replace the relay.
func (b *Boundary) hostProxy() *goja.Object {
	host := b.vm.NewObject()
	post := b.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		b.toHost(call.Argument(0))
		return goja.Undefined()
	})
	_ = host.DefineDataProperty("postMessage", post, goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)
	if freeze, ok := goja.AssertFunction(b.vm.Get("Object").ToObject(b.vm).Get("freeze")); ok {
		_, _ = freeze(goja.Undefined(), host)
	}
	return host
}

// toHost decodes a value posted to the parent and hands it to the sink.
// Values that are not protocol frames never leave the boundary.
func (b *Boundary) toHost(v goja.Value) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return
	}
	msg, err := wire.FromValue(v.Export())
	if err != nil {
		b.logger.Debug("dropping malformed boundary message", zap.Error(err))
		return
	}
	b.emit(msg)
}

// postSelf delivers a message to this window's own listeners on a later
// task. A full queue drops it.
func (b *Boundary) postSelf(data goja.Value) {
	task := b.guarded(func() {
		ev := b.newEvent("message", false, false, true)
		_ = ev.obj.Set("data", data)
		_ = ev.obj.Set("origin", "null")
		_ = ev.obj.Set("source", b.vm.GlobalObject())
		if _, err := b.dispatch(window, ev); err != nil {
			_ = b.report(err)
		}
	})
	select {
	case b.tasks <- task:
	default:
		b.logger.Debug("dropping window.postMessage: queue full")
	}
}

// location is read-only; every navigation attempt throws.
func (b *Boundary) location() *goja.Object {
	loc := b.vm.NewObject()
	fields := map[string]string{
		"href": Origin, "protocol": "about:", "pathname": "srcdoc",
		"origin": "null", "host": "", "hostname": "", "port": "", "search": "", "hash": "",
	}
	for name, val := range fields {
		val := val
		getter := b.vm.ToValue(func(goja.FunctionCall) goja.Value { return b.vm.ToValue(val) })
		setter := b.vm.ToValue(func(goja.FunctionCall) goja.Value {
			b.throw("SecurityError", "Navigation is not allowed in the preview")
			return nil
		})
		_ = loc.DefineAccessorProperty(name, getter, setter, goja.FLAG_FALSE, goja.FLAG_TRUE)
	}
	navigate := func(goja.FunctionCall) goja.Value {
		b.throw("SecurityError", "Navigation is not allowed in the preview")
		return nil
	}
	for _, m := range []string{"assign", "replace", "reload"} {
		_ = loc.Set(m, navigate)
	}
	_ = loc.Set("toString", func(goja.FunctionCall) goja.Value { return b.vm.ToValue(Origin) })
	return loc
}

// denied defines name on obj as an accessor that throws SecurityError.
func (b *Boundary) denied(obj *goja.Object, name string) {
	fail := b.vm.ToValue(func(goja.FunctionCall) goja.Value {
		b.throw("SecurityError", fmt.Sprintf("Access to '%s' is denied for this document", name))
		return nil
	})
	_ = obj.DefineAccessorProperty(name, fail, fail, goja.FLAG_FALSE, goja.FLAG_TRUE)
}

// throw raises a DOMException with the given name inside the running script.
func (b *Boundary) throw(name, msg string) {
	ctor := b.vm.Get("DOMException")
	if ctor != nil {
		if exc, err := b.vm.New(ctor, b.vm.ToValue(msg), b.vm.ToValue(name)); err == nil {
			panic(exc)
		}
	}
	panic(b.vm.NewTypeError(name + ": " + msg))
}
