// Package bridge is the host side of the preview: it owns the current
// isolation boundary, applies the messages it emits to host-visible state
// (log stream, selected element, inspection session) and sends inspector
// commands into it.
//
// Every reload builds a brand-new boundary. Messages are attributed by the
// boundary id stamped on each envelope, so anything still in flight from a
// discarded boundary is dropped instead of leaking into the new generation.
package bridge
