package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/playground/internal/domain/bundle"
	"github.com/GriffinCanCode/playground/internal/preview/compiler"
	"github.com/GriffinCanCode/playground/internal/preview/sandbox"
	"github.com/GriffinCanCode/playground/internal/preview/wire"
	"github.com/GriffinCanCode/playground/internal/shared/id"
)

type countingObserver struct {
	mu       sync.Mutex
	received map[string]int
	sent     map[string]int
	dropped  map[string]int
	built    int
	failed   int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{
		received: map[string]int{},
		sent:     map[string]int{},
		dropped:  map[string]int{},
	}
}

func (o *countingObserver) MessageReceived(typ string) { o.inc(o.received, typ) }
func (o *countingObserver) MessageSent(typ string)     { o.inc(o.sent, typ) }
func (o *countingObserver) MessageDropped(r string)    { o.inc(o.dropped, r) }

func (o *countingObserver) BoundaryBuilt() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.built++
}

func (o *countingObserver) BoundaryFailed() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed++
}

func (o *countingObserver) inc(m map[string]int, key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	m[key]++
}

func (o *countingObserver) droppedFor(reason string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped[reason]
}

func newHost(t *testing.T, opts ...Option) *Host {
	t.Helper()
	h := New(DefaultConfig(), opts...)
	h.Start()
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func load(t *testing.T, h *Host, markup, style, script string) {
	t.Helper()
	require.NoError(t, h.Reload(compiler.Compile(bundle.New(markup, style, script))))
	flush(t, h)
}

func flush(t *testing.T, h *Host) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Flush(ctx))
}

func toggle(t *testing.T, h *Host) Session {
	t.Helper()
	s, err := h.ToggleInspect(context.Background())
	require.NoError(t, err)
	flush(t, h)
	return s
}

func dispatch(t *testing.T, h *Host, kind sandbox.InputKind, target string) {
	t.Helper()
	require.NoError(t, h.Dispatch(context.Background(), sandbox.Input{Kind: kind, Target: target}))
	flush(t, h)
}

func TestLogStreamOrder(t *testing.T) {
	h := newHost(t)
	load(t, h, "", "", `console.log("a"); console.log("b")`)
	assert.Equal(t, []string{"a", "b"}, h.Logs())
}

func TestErrorsJoinLogStream(t *testing.T) {
	h := newHost(t)
	load(t, h, "", "", `console.log("a"); console.error("e"); undefinedFn()`)
	logs := h.Logs()
	require.Len(t, logs, 3)
	assert.Equal(t, []string{"a", "e"}, logs[:2])
	assert.Contains(t, logs[2], "ReferenceError")
}

func TestDoubleToggleChangesNothing(t *testing.T) {
	h := newHost(t)
	load(t, h, `<p id="a">A</p>`, "", `console.log("ready")`)
	logs := h.Logs()
	_, hadSelection := h.Selection()

	assert.Equal(t, SessionActive, toggle(t, h))
	assert.True(t, h.Inspecting())
	assert.Equal(t, SessionIdle, toggle(t, h))
	assert.False(t, h.Inspecting())

	assert.Equal(t, logs, h.Logs())
	_, hasSelection := h.Selection()
	assert.Equal(t, hadSelection, hasSelection)
}

func TestToggleRollsBackWhenSendFails(t *testing.T) {
	h := newHost(t)
	load(t, h, `<p id="a">A</p>`, "", "")
	events, cancel := h.Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	stop()
	s, err := h.ToggleInspect(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, SessionIdle, s)
	assert.Equal(t, SessionIdle, h.Session())
	assert.False(t, h.Inspecting())

	var inspecting []bool
	for len(inspecting) < 2 {
		select {
		case ev := <-events:
			if ev.Type == EventInspect {
				inspecting = append(inspecting, ev.Inspecting)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("received only %v", inspecting)
		}
	}
	assert.Equal(t, []bool{true, false}, inspecting)

	// The page never armed, so the next toggle still arms it.
	assert.Equal(t, SessionActive, toggle(t, h))
	dispatch(t, h, sandbox.InputClick, "#a")
	sel, ok := h.Selection()
	require.True(t, ok)
	assert.Equal(t, "a", sel.ID)
}

func TestHighlightSequence(t *testing.T) {
	h := newHost(t)
	load(t, h, `<p id="a">A</p><p id="b">B</p><p id="c">C</p>`, "", "")
	toggle(t, h)

	for _, target := range []string{"#a", "#b", "#c"} {
		dispatch(t, h, sandbox.InputMove, target)
	}
	got, err := h.Highlighted(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"p#c"}, got)
}

func TestPickUpdatesSelectionAndEndsSession(t *testing.T) {
	h := newHost(t)
	load(t, h, `<div id="x" class="y z">hi</div>`, "", "")
	toggle(t, h)

	dispatch(t, h, sandbox.InputMove, "#x")
	dispatch(t, h, sandbox.InputClick, "#x")

	sel, ok := h.Selection()
	require.True(t, ok)
	assert.Equal(t, wire.Snapshot{Tag: "div", ID: "x", ClassName: "y z", InlineStyle: "—"}, sel)
	assert.Equal(t, SessionIdle, h.Session())

	got, err := h.Highlighted(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)

	// Next toggle arms again rather than disarming.
	assert.Equal(t, SessionActive, toggle(t, h))
}

func TestReloadWhileArmed(t *testing.T) {
	obs := newCountingObserver()
	h := newHost(t, WithObserver(obs))
	load(t, h, `<p id="a">A</p>`, "", `console.log("first")`)
	toggle(t, h)
	dispatch(t, h, sandbox.InputMove, "#a")
	old := h.Preview()

	load(t, h, `<p id="a">A</p>`, "", `console.log("second")`)
	cur := h.Preview()

	assert.Equal(t, SessionIdle, h.Session())
	assert.Equal(t, []string{"second"}, h.Logs())
	assert.Equal(t, old.Generation+1, cur.Generation)
	assert.NotEqual(t, old.Boundary, cur.Boundary)

	// The new boundary starts disarmed: movement highlights nothing.
	dispatch(t, h, sandbox.InputMove, "#a")
	got, err := h.Highlighted(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)

	// Anything still in flight from the old boundary is ignored.
	h.Deliver(wire.Envelope{Origin: old.Boundary, Generation: old.Generation, Message: wire.Log("late")})
	h.Deliver(wire.Envelope{Origin: old.Boundary, Generation: old.Generation,
		Message: wire.ElementPicked(wire.Snapshot{Tag: "p", ID: "a"})})
	flush(t, h)

	assert.Equal(t, []string{"second"}, h.Logs())
	_, ok := h.Selection()
	assert.False(t, ok)
	assert.Equal(t, 2, obs.droppedFor(DropStale))
}

func TestSelectionSurvivesReload(t *testing.T) {
	h := newHost(t)
	load(t, h, `<b id="k">k</b>`, "", "")
	toggle(t, h)
	dispatch(t, h, sandbox.InputClick, "#k")

	load(t, h, "", "", "")
	sel, ok := h.Selection()
	require.True(t, ok)
	assert.Equal(t, "k", sel.ID)
	assert.Empty(t, h.Logs())
}

func TestUnknownMessagesChangeNothing(t *testing.T) {
	obs := newCountingObserver()
	h := newHost(t, WithObserver(obs))
	load(t, h, `<p id="a">A</p>`, "", `console.log("x")`)
	toggle(t, h)

	current := h.Preview()
	for _, msg := range []wire.Message{
		{Type: "SOMETHING_ELSE", Text: "payload"},
		wire.InspectEnable(),
		wire.InspectDisable(),
	} {
		h.Deliver(wire.Envelope{Origin: current.Boundary, Generation: current.Generation, Message: msg})
	}
	h.Deliver(wire.Envelope{Origin: id.NewBoundaryID(), Message: wire.Log("forged")})
	flush(t, h)

	assert.Equal(t, []string{"x"}, h.Logs())
	_, ok := h.Selection()
	assert.False(t, ok)
	assert.Equal(t, SessionActive, h.Session())
	assert.Equal(t, 1, obs.droppedFor(DropUnknown))
	assert.Equal(t, 2, obs.droppedFor(DropDirection))
	assert.Equal(t, 1, obs.droppedFor(DropStale))
}

func TestConstructionFailure(t *testing.T) {
	obs := newCountingObserver()
	h := newHost(t, WithObserver(obs))
	load(t, h, "", "", `console.log("ok")`)

	err := h.Reload(compiler.Document{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sandbox.ErrConstruction))

	p := h.Preview()
	assert.Equal(t, StateFailed, p.State)
	assert.NotEmpty(t, p.Error)
	assert.Empty(t, p.Boundary)
	assert.Nil(t, h.Boundary())
	assert.Empty(t, h.Logs())

	// Without a boundary every command is a no-op.
	s, err := h.ToggleInspect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SessionIdle, s)
	assert.NoError(t, h.Dispatch(context.Background(), sandbox.Input{Kind: sandbox.InputClick, Target: "p"}))

	assert.Equal(t, 1, obs.built)
	assert.Equal(t, 1, obs.failed)

	// A later good document recovers.
	load(t, h, "", "", `console.log("back")`)
	assert.Equal(t, StateRunning, h.Preview().State)
	assert.Equal(t, []string{"back"}, h.Logs())
}

func TestToggleWithoutPreview(t *testing.T) {
	h := newHost(t)
	s, err := h.ToggleInspect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SessionIdle, s)
	assert.Equal(t, StateEmpty, h.Preview().State)
}

func TestSubscribe(t *testing.T) {
	h := newHost(t)
	events, cancel := h.Subscribe()
	defer cancel()

	load(t, h, `<i id="i">i</i>`, "", `console.log("hello")`)
	toggle(t, h)
	dispatch(t, h, sandbox.InputClick, "#i")

	var got []EventType
	timeout := time.After(2 * time.Second)
	for len(got) < 5 {
		select {
		case ev := <-events:
			got = append(got, ev.Type)
			assert.Equal(t, uint64(1), ev.Generation)
		case <-timeout:
			t.Fatalf("received only %v", got)
		}
	}
	assert.Equal(t, []EventType{EventReload, EventLog, EventInspect, EventSelection, EventInspect}, got)

	cancel()
	_, open := <-events
	assert.False(t, open)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SubscriberBuffer = 1
	h := New(cfg)
	h.Start()
	defer h.Close()

	_, cancel := h.Subscribe()
	defer cancel()

	load(t, h, "", "", `for (var i = 0; i < 50; i++) console.log(i)`)
	assert.Len(t, h.Logs(), 50)
}

func TestFlushRequiresStart(t *testing.T) {
	h := New(DefaultConfig())
	defer h.Close()
	assert.True(t, errors.Is(h.Flush(context.Background()), ErrNotStarted))
}

func TestCloseEndsSubscriptions(t *testing.T) {
	h := New(DefaultConfig())
	h.Start()
	events, _ := h.Subscribe()
	require.NoError(t, h.Reload(compiler.Compile(bundle.New("", "", ""))))

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	for range events {
	}
	assert.Nil(t, h.Boundary())
}
