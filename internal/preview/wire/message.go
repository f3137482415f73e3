package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/playground/internal/shared/id"
)

// Type is the self-describing tag of a boundary message.
type Type string

const (
	TypeLog             Type = "log"
	TypeError           Type = "error"
	TypeInspectOn       Type = "INSPECT_ON"
	TypeInspectOff      Type = "INSPECT_OFF"
	TypeElementSelected Type = "ELEMENT_SELECTED"
)

// NoInlineStyle is recorded in place of an absent style attribute.
const NoInlineStyle = "—"

// ErrMalformed is returned when a frame is not a JSON object with a string type.
var ErrMalformed = errors.New("malformed boundary message")

// Known reports whether t is one of the five protocol tags.
func (t Type) Known() bool {
	switch t {
	case TypeLog, TypeError, TypeInspectOn, TypeInspectOff, TypeElementSelected:
		return true
	}
	return false
}

// Snapshot is the element record captured at pick time. It is replaced
// wholesale by the next pick, never merged.
type Snapshot struct {
	Tag         string `json:"tag"`
	ID          string `json:"id"`
	ClassName   string `json:"className"`
	InlineStyle string `json:"styles"`
}

// Display returns the snapshot with empty fields replaced by the "—" sentinel,
// the way an inspector panel renders it.
func (s Snapshot) Display() Snapshot {
	dash := func(v string) string {
		if v == "" {
			return NoInlineStyle
		}
		return v
	}
	return Snapshot{
		Tag:         dash(s.Tag),
		ID:          dash(s.ID),
		ClassName:   dash(s.ClassName),
		InlineStyle: dash(s.InlineStyle),
	}
}

// Message is one BoundaryMessage. Text is set for log and error, Element for
// ELEMENT_SELECTED; the two inspect commands carry nothing.
type Message struct {
	Type    Type
	Text    string
	Element *Snapshot
}

// Log builds a LogEmitted message.
func Log(text string) Message { return Message{Type: TypeLog, Text: text} }

// Error builds an ErrorEmitted message.
func Error(text string) Message { return Message{Type: TypeError, Text: text} }

// InspectEnable builds the INSPECT_ON command.
func InspectEnable() Message { return Message{Type: TypeInspectOn} }

// InspectDisable builds the INSPECT_OFF command.
func InspectDisable() Message { return Message{Type: TypeInspectOff} }

// ElementPicked builds an ELEMENT_SELECTED event.
func ElementPicked(s Snapshot) Message { return Message{Type: TypeElementSelected, Element: &s} }

// Known reports whether the message carries a recognised tag.
func (m Message) Known() bool { return m.Type.Known() }

// frame is the wire shape: {type, message}.
type frame struct {
	Type    Type            `json:"type"`
	Message json.RawMessage `json:"message,omitempty"`
}

// MarshalJSON encodes the message in its wire shape.
func (m Message) MarshalJSON() ([]byte, error) {
	f := frame{Type: m.Type}
	var payload any
	switch m.Type {
	case TypeLog, TypeError:
		payload = m.Text
	case TypeElementSelected:
		if m.Element == nil {
			return nil, fmt.Errorf("%w: %s without element", ErrMalformed, m.Type)
		}
		payload = m.Element
	case TypeInspectOn, TypeInspectOff:
	default:
		if m.Text != "" {
			payload = m.Text
		}
	}
	if payload != nil {
		raw, err := sonic.Marshal(payload)
		if err != nil {
			return nil, err
		}
		f.Message = raw
	}
	return sonic.Marshal(f)
}

// UnmarshalJSON decodes a wire frame. Unrecognised types decode successfully
// with their payload discarded; receivers check Known.
func (m *Message) UnmarshalJSON(data []byte) error {
	var f frame
	if err := sonic.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if f.Type == "" {
		return fmt.Errorf("%w: missing type", ErrMalformed)
	}

	out := Message{Type: f.Type}
	switch f.Type {
	case TypeLog, TypeError:
		out.Text = textPayload(f.Message)
	case TypeElementSelected:
		var s Snapshot
		if len(f.Message) > 0 {
			if err := sonic.Unmarshal(f.Message, &s); err != nil {
				return fmt.Errorf("%w: element payload: %v", ErrMalformed, err)
			}
		}
		out.Element = &s
	}
	*m = out
	return nil
}

// textPayload renders a log payload. Strings are taken verbatim; any other
// JSON value is kept in its encoded form.
func textPayload(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := sonic.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Encode serialises a message to its wire form.
func Encode(m Message) ([]byte, error) {
	return m.MarshalJSON()
}

// Decode parses a wire frame.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := m.UnmarshalJSON(data); err != nil {
		return Message{}, err
	}
	return m, nil
}

// FromValue converts a value exported from the JavaScript runtime (maps,
// strings, numbers) into a message by round-tripping it through the codec.
func FromValue(v any) (Message, error) {
	if v == nil {
		return Message{}, fmt.Errorf("%w: null", ErrMalformed)
	}
	raw, err := sonic.Marshal(v)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return Decode(raw)
}

// Envelope is a message as received by the host: the payload plus the
// identity of the boundary instance that emitted it.
type Envelope struct {
	Origin     id.BoundaryID
	Generation uint64
	Message    Message
}
