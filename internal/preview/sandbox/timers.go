package sandbox

import (
	"time"

	"github.com/dop251/goja"
)

// Browsers clamp nested timers; a floor keeps a zero-delay interval from
// monopolising the loop.
const minInterval = 4 * time.Millisecond

type timer struct {
	id     int64
	fn     goja.Callable
	code   string
	args   []goja.Value
	delay  time.Duration
	repeat bool
	clock  *time.Timer
}

func (b *Boundary) installTimers(global *goja.Object) {
	_ = global.Set("setTimeout", func(call goja.FunctionCall) goja.Value {
		return b.vm.ToValue(b.schedule(call, false))
	})
	_ = global.Set("setInterval", func(call goja.FunctionCall) goja.Value {
		return b.vm.ToValue(b.schedule(call, true))
	})
	cancelFn := func(call goja.FunctionCall) goja.Value {
		b.cancel(call.Argument(0).ToInteger())
		return goja.Undefined()
	}
	_ = global.Set("clearTimeout", cancelFn)
	_ = global.Set("clearInterval", cancelFn)
	_ = global.Set("requestAnimationFrame", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(b.vm.NewTypeError("requestAnimationFrame: callback is not a function"))
		}
		return b.vm.ToValue(b.frame(fn))
	})
	_ = global.Set("cancelAnimationFrame", cancelFn)
}

// frame schedules a frame callback roughly one 60Hz frame out.
func (b *Boundary) frame(fn goja.Callable) int64 {
	t := &timer{fn: fn, delay: 16 * time.Millisecond}
	t.args = []goja.Value{b.vm.ToValue(b.elapsed() + 16)}
	return b.start(t)
}

func (b *Boundary) schedule(call goja.FunctionCall, repeat bool) int64 {
	t := &timer{repeat: repeat}
	if fn, ok := goja.AssertFunction(call.Argument(0)); ok {
		t.fn = fn
	} else {
		t.code = call.Argument(0).String()
	}
	if d := call.Argument(1); !goja.IsUndefined(d) {
		if ms := d.ToInteger(); ms > 0 {
			t.delay = time.Duration(ms) * time.Millisecond
		}
	}
	if repeat && t.delay < minInterval {
		t.delay = minInterval
	}
	if len(call.Arguments) > 2 {
		t.args = append([]goja.Value(nil), call.Arguments[2:]...)
	}
	return b.start(t)
}

func (b *Boundary) start(t *timer) int64 {
	b.nextTimer++
	t.id = b.nextTimer
	b.timers[t.id] = t
	b.wind(t)
	return t.id
}

// wind starts the wall clock for t. The callback only queues a task; the
// timer table is touched exclusively from the loop.
func (b *Boundary) wind(t *timer) {
	tid := t.id
	t.clock = time.AfterFunc(t.delay, func() {
		select {
		case b.tasks <- b.guarded(func() { b.fire(tid) }):
		case <-b.done:
		}
	})
}

func (b *Boundary) fire(tid int64) {
	t, ok := b.timers[tid]
	if !ok {
		return
	}
	if !t.repeat {
		delete(b.timers, tid)
	}

	var err error
	if t.fn != nil {
		_, err = t.fn(goja.Undefined(), t.args...)
	} else {
		_, err = b.vm.RunString(t.code)
	}
	if err != nil {
		if b.report(err) != nil {
			delete(b.timers, tid)
			return
		}
	}

	if cur, ok := b.timers[tid]; ok && cur == t && t.repeat {
		b.wind(t)
	}
}

func (b *Boundary) cancel(tid int64) {
	if t, ok := b.timers[tid]; ok {
		t.clock.Stop()
		delete(b.timers, tid)
	}
}

func (b *Boundary) stopTimers() {
	for tid, t := range b.timers {
		t.clock.Stop()
		delete(b.timers, tid)
	}
}
