package bridge

import (
	"github.com/GriffinCanCode/playground/internal/preview/sandbox"
	"github.com/GriffinCanCode/playground/internal/preview/wire"
	"github.com/GriffinCanCode/playground/internal/shared/id"
)

// Session is the host-side inspection session state.
type Session string

const (
	SessionIdle   Session = "idle"
	SessionActive Session = "active"
)

// State is the lifecycle of the current preview.
type State string

const (
	StateEmpty   State = "empty"   // Nothing loaded yet
	StateRunning State = "running" // A boundary is current
	StateFailed  State = "failed"  // The last boundary could not be built
)

// Drop reasons reported to the Observer.
const (
	DropStale     = "stale_origin"
	DropUnknown   = "unknown_type"
	DropDirection = "wrong_direction"
	DropClosed    = "host_closed"
)

// Preview describes the current preview generation.
type Preview struct {
	Generation uint64        `json:"generation"`
	Boundary   id.BoundaryID `json:"boundary,omitempty"`
	State      State         `json:"state"`
	Error      string        `json:"error,omitempty"`
}

// EventType tags host events streamed to subscribers.
type EventType string

const (
	EventLog       EventType = "log"
	EventError     EventType = "error"
	EventSelection EventType = "selection"
	EventInspect   EventType = "inspect"
	EventReload    EventType = "reload"
	EventFailed    EventType = "failed"
)

// Event is a host-visible state change.
type Event struct {
	Type       EventType      `json:"type"`
	Generation uint64         `json:"generation"`
	Text       string         `json:"text,omitempty"`
	Selection  *wire.Snapshot `json:"selection,omitempty"`
	Inspecting bool           `json:"inspecting"`
}

// Config defines host limits.
type Config struct {
	Sandbox          sandbox.Config
	InboxSize        int // Envelopes buffered between boundaries and the host loop
	SubscriberBuffer int // Events buffered per subscriber before dropping
}

// DefaultConfig returns the default host configuration.
func DefaultConfig() Config {
	return Config{
		Sandbox:          sandbox.DefaultConfig(),
		InboxSize:        1024,
		SubscriberBuffer: 256,
	}
}

// Observer receives protocol counters. monitoring.Metrics satisfies it.
type Observer interface {
	MessageReceived(typ string)
	MessageSent(typ string)
	MessageDropped(reason string)
	BoundaryBuilt()
	BoundaryFailed()
}

type nopObserver struct{}

func (nopObserver) MessageReceived(string) {}
func (nopObserver) MessageSent(string)     {}
func (nopObserver) MessageDropped(string)  {}
func (nopObserver) BoundaryBuilt()         {}
func (nopObserver) BoundaryFailed()        {}
