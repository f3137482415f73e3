package bundle

import (
	"errors"
	"fmt"
	"strings"
)

// MaxSourceSize caps the length of each buffer in bytes.
const MaxSourceSize = 512 * 1024

var (
	// ErrUnknownKind is returned for any buffer kind other than markup, style or script.
	ErrUnknownKind = errors.New("unknown buffer kind")
	// ErrTooLarge is returned for a buffer longer than MaxSourceSize.
	ErrTooLarge = errors.New("source exceeds size limit")
)

// Kind names one of the three source buffers.
type Kind string

const (
	Markup Kind = "markup"
	Style  Kind = "style"
	Script Kind = "script"
)

// Kinds lists the buffer kinds in compilation order.
var Kinds = []Kind{Markup, Style, Script}

// aliases maps the editor tab names onto buffer kinds.
var aliases = map[string]Kind{
	"markup": Markup,
	"html":   Markup,
	"style":  Style,
	"css":    Style,
	"script": Script,
	"js":     Script,
}

// ParseKind resolves a kind name or one of its file aliases (html, css, js).
func ParseKind(name string) (Kind, error) {
	if k, ok := aliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// Valid reports whether k is one of the three buffer kinds.
func (k Kind) Valid() bool {
	switch k {
	case Markup, Style, Script:
		return true
	}
	return false
}

// FileName returns the conventional file name for the buffer.
func (k Kind) FileName() string {
	switch k {
	case Markup:
		return "index.html"
	case Style:
		return "style.css"
	case Script:
		return "app.js"
	}
	return ""
}

// Bundle holds the three source buffers. The zero value is an empty bundle.
type Bundle struct {
	Markup string `json:"markup" yaml:"markup"`
	Style  string `json:"style" yaml:"style"`
	Script string `json:"script" yaml:"script"`
}

// New builds a bundle from the three buffer contents.
func New(markup, style, script string) Bundle {
	return Bundle{Markup: markup, Style: style, Script: script}
}

// FromMap builds a bundle from a kind-name → content mapping. Every key must
// resolve to a known kind; missing kinds are left empty.
func FromMap(m map[string]string) (Bundle, error) {
	var b Bundle
	for name, content := range m {
		k, err := ParseKind(name)
		if err != nil {
			return Bundle{}, err
		}
		if err := b.Set(k, content); err != nil {
			return Bundle{}, err
		}
	}
	return b, nil
}

// Get returns the content of one buffer.
func (b Bundle) Get(k Kind) (string, error) {
	switch k {
	case Markup:
		return b.Markup, nil
	case Style:
		return b.Style, nil
	case Script:
		return b.Script, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, k)
}

// Set replaces the content of one buffer.
func (b *Bundle) Set(k Kind, content string) error {
	if k.Valid() {
		if err := checkSize(k, content); err != nil {
			return err
		}
	}
	switch k {
	case Markup:
		b.Markup = content
	case Style:
		b.Style = content
	case Script:
		b.Script = content
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, k)
	}
	return nil
}

// With returns a copy of b with one buffer replaced. Unknown kinds and
// oversized content leave the copy unchanged.
func (b Bundle) With(k Kind, content string) Bundle {
	_ = b.Set(k, content)
	return b
}

// Validate checks every buffer against MaxSourceSize.
func (b Bundle) Validate() error {
	for k, content := range b.Map() {
		if err := checkSize(k, content); err != nil {
			return err
		}
	}
	return nil
}

func checkSize(k Kind, content string) error {
	if len(content) > MaxSourceSize {
		return fmt.Errorf("%w: %s is %d bytes, limit %d", ErrTooLarge, k, len(content), MaxSourceSize)
	}
	return nil
}

// Map returns the bundle as a kind → content mapping.
func (b Bundle) Map() map[Kind]string {
	return map[Kind]string{
		Markup: b.Markup,
		Style:  b.Style,
		Script: b.Script,
	}
}
