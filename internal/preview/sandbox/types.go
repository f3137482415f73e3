package sandbox

import (
	"errors"
	"time"

	"github.com/GriffinCanCode/playground/internal/preview/wire"
)

var (
	// ErrConstruction marks a boundary that could not be built.
	ErrConstruction = errors.New("boundary construction failed")
	// ErrClosed is returned when commanding a torn-down boundary.
	ErrClosed = errors.New("boundary is closed")
	// ErrNoTarget is returned when simulated input matches no element.
	ErrNoTarget = errors.New("no element matches input target")
	// ErrUnknownInput is returned for input kinds other than move and click.
	ErrUnknownInput = errors.New("unknown input kind")
	// ErrTimeout is the interrupt value of a task that exceeded its time limit.
	ErrTimeout = errors.New("script execution timed out")
)

// Config defines boundary limits.
type Config struct {
	Timeout      time.Duration // Per-task execution time limit
	MaxCallStack int           // goja call stack limit
	QueueSize    int           // Pending task capacity
}

// DefaultConfig returns the default limits.
func DefaultConfig() Config {
	return Config{
		Timeout:      2 * time.Second,
		MaxCallStack: 1024,
		QueueSize:    256,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.MaxCallStack <= 0 {
		c.MaxCallStack = def.MaxCallStack
	}
	if c.QueueSize <= 0 {
		c.QueueSize = def.QueueSize
	}
	return c
}

// Sink receives every message the boundary emits toward the host.
// Deliver is called from the boundary's loop goroutine.
type Sink interface {
	Deliver(env wire.Envelope)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(env wire.Envelope)

// Deliver calls f(env).
func (f SinkFunc) Deliver(env wire.Envelope) { f(env) }

// InputKind is a simulated pointer action.
type InputKind string

const (
	InputMove  InputKind = "move"
	InputClick InputKind = "click"
)

// Input is a simulated user action inside the preview. Target is a CSS
// selector, or an XPath expression when it starts with "/" or "(".
type Input struct {
	Kind   InputKind `json:"kind"`
	Target string    `json:"target"`
}

// eventType maps an input kind to the DOM event it fires.
func (k InputKind) eventType() (string, bool) {
	switch k {
	case InputMove:
		return "mousemove", true
	case InputClick:
		return "click", true
	}
	return "", false
}
