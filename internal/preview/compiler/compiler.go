package compiler

import (
	_ "embed"
	"encoding/hex"
	"regexp"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/GriffinCanCode/playground/internal/domain/bundle"
)

// HighlightClass is the class the shim toggles on the hovered element.
const HighlightClass = "__inspect-hover"

// highlightRule wins over user CSS through !important and its position after
// the style buffer in the same cascade.
const highlightRule = "." + HighlightClass + " {\n  outline: 2px solid #3b82f6 !important;\n  cursor: crosshair !important;\n}"

// ShimMarker is set as an attribute on the shim's script element.
const ShimMarker = "data-preview-shim"

// UserScriptMarker is set as an attribute on the user script element.
const UserScriptMarker = "data-preview-script"

//go:embed shim.js
var shimSource string

// Shim returns the runtime shim source injected into every document.
func Shim() string {
	return shimSource
}

var (
	scriptClose = regexp.MustCompile(`(?i)</(script)`)
	commentOpen = regexp.MustCompile(`<!--`)
	styleClose  = regexp.MustCompile(`(?i)</(style)`)
)

// Document is a compiled, self-contained preview document.
type Document struct {
	html        string
	fingerprint string
}

// String returns the document markup.
func (d Document) String() string { return d.html }

// Bytes returns the document markup as bytes.
func (d Document) Bytes() []byte { return []byte(d.html) }

// Fingerprint returns a content hash, stable for identical bundles.
func (d Document) Fingerprint() string { return d.fingerprint }

// IsZero reports whether d was never compiled.
func (d Document) IsZero() bool { return d.html == "" }

// Compile merges the three buffers into one document. It is pure and total:
// malformed markup, style or script compiles fine and fails, if at all,
// inside the sandbox.
//
// Layout: the style buffer and the highlight rule share one <style> in
// <head>, followed by the shim; the markup buffer forms the body, and the
// script buffer is the last element of the body. The shim therefore runs
// before every user script, including inline scripts in the markup.
func Compile(b bundle.Bundle) Document {
	var sb strings.Builder
	sb.Grow(len(b.Markup) + len(b.Style) + len(b.Script) + len(shimSource) + 512)

	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<style>\n")
	sb.WriteString(escapeStyle(b.Style))
	sb.WriteString("\n")
	sb.WriteString(highlightRule)
	sb.WriteString("\n</style>\n<script ")
	sb.WriteString(ShimMarker)
	sb.WriteString(">\n")
	sb.WriteString(shimSource)
	sb.WriteString("</script>\n</head>\n<body>\n")
	sb.WriteString(b.Markup)
	sb.WriteString("\n<script ")
	sb.WriteString(UserScriptMarker)
	sb.WriteString(">\n")
	sb.WriteString(escapeScript(b.Script))
	sb.WriteString("\n</script>\n</body>\n</html>\n")

	html := sb.String()
	sum := blake2b.Sum256([]byte(html))
	return Document{html: html, fingerprint: hex.EncodeToString(sum[:])}
}

// escapeScript keeps the script buffer inside its element: "</script" would
// end the element early and "<!--" switches the tokenizer into escaped mode.
// Both rewrites are no-ops for JavaScript string and regexp contents.
func escapeScript(src string) string {
	src = scriptClose.ReplaceAllString(src, `<\/$1`)
	return commentOpen.ReplaceAllString(src, `<\!--`)
}

// escapeStyle keeps the style buffer inside its element. "\/" is a valid
// CSS escape for "/".
func escapeStyle(src string) string {
	return styleClose.ReplaceAllString(src, `<\/$1`)
}
