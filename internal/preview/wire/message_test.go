package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Message
		known bool
	}{
		{
			name:  "log",
			input: `{"type":"log","message":"a b"}`,
			want:  Log("a b"),
			known: true,
		},
		{
			name:  "error",
			input: `{"type":"error","message":"boom"}`,
			want:  Error("boom"),
			known: true,
		},
		{
			name:  "inspect on without message",
			input: `{"type":"INSPECT_ON"}`,
			want:  InspectEnable(),
			known: true,
		},
		{
			name:  "inspect off",
			input: `{"type":"INSPECT_OFF"}`,
			want:  InspectDisable(),
			known: true,
		},
		{
			name:  "element selected",
			input: `{"type":"ELEMENT_SELECTED","message":{"tag":"p","id":"x","className":"y z","styles":"—"}}`,
			want:  ElementPicked(Snapshot{Tag: "p", ID: "x", ClassName: "y z", InlineStyle: "—"}),
			known: true,
		},
		{
			name:  "unknown type is kept but not known",
			input: `{"type":"HELLO","message":{"anything":1}}`,
			want:  Message{Type: "HELLO"},
			known: false,
		},
		{
			name:  "non-string log payload keeps json",
			input: `{"type":"log","message":42}`,
			want:  Log("42"),
			known: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.known, got.Known())
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, input := range []string{
		`not json`,
		`"log"`,
		`{"message":"no type"}`,
		`{"type":7}`,
		`{"type":"ELEMENT_SELECTED","message":"oops"}`,
	} {
		_, err := Decode([]byte(input))
		assert.ErrorIs(t, err, ErrMalformed, input)
	}
}

func TestEncodeShape(t *testing.T) {
	raw, err := Encode(InspectEnable())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"INSPECT_ON"}`, string(raw))

	raw, err = Encode(Log("hello"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"log","message":"hello"}`, string(raw))

	raw, err = Encode(ElementPicked(Snapshot{Tag: "div", InlineStyle: NoInlineStyle}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ELEMENT_SELECTED","message":{"tag":"div","id":"","className":"","styles":"—"}}`, string(raw))

	_, err = Encode(Message{Type: TypeElementSelected})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestFromValue(t *testing.T) {
	got, err := FromValue(map[string]any{
		"type": "ELEMENT_SELECTED",
		"message": map[string]any{
			"tag":       "button",
			"id":        "inc",
			"className": "btn",
			"styles":    "padding: 8px",
		},
	})
	require.NoError(t, err)
	require.NotNil(t, got.Element)
	assert.Equal(t, Snapshot{Tag: "button", ID: "inc", ClassName: "btn", InlineStyle: "padding: 8px"}, *got.Element)

	_, err = FromValue(nil)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = FromValue("just a string")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestSnapshotDisplay(t *testing.T) {
	s := Snapshot{Tag: "p", InlineStyle: NoInlineStyle}.Display()
	assert.Equal(t, Snapshot{Tag: "p", ID: "—", ClassName: "—", InlineStyle: "—"}, s)
}
