// Package bundle defines the SourceBundle: the three editor buffers
// (markup, style, script) a preview is compiled from.
//
// Exactly three kinds exist. ParseKind accepts the kind names and the editor
// tab aliases html/css/js; anything else yields ErrUnknownKind.
//
// The package also carries the starter template catalog (embedded YAML) and
// a directory loader used by the playctl command. The loader honours an
// optional playground.toml and decodes legacy-encoded text to UTF-8. Each
// buffer is capped at MaxSourceSize.
package bundle
