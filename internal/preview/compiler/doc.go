// Package compiler turns a SourceBundle into one executable preview document.
//
// Compile is pure, deterministic and total. The document it produces is
// served verbatim to browsers (inside <iframe sandbox="allow-scripts">) and
// executed headlessly by package sandbox; the injected shim (shim.js) behaves
// the same in both.
package compiler
