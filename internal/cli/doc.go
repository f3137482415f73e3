// Package cli implements playctl, the command-line companion of the
// playground server.
//
// Commands:
//   - compile DIR: print the compiled preview document
//   - run DIR: execute DIR in a local isolation boundary and print the log
//     stream, one ">> line" per entry
//   - watch DIR: like run, re-executed whenever a source file changes
//   - push DIR: upload DIR to a server workspace
//   - bench DIR: time repeated reloads of DIR
//   - templates: list the built-in starter bundles
//
// DIR is scanned for index.html, style.css and app.js (falling back to the
// first *.html, *.css and *.js found). A playground.toml in DIR can pin
// the files instead.
package cli
