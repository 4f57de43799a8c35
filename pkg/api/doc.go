// Package api defines the wire-level types shared across fragmentd:
// fragments, file-tree nodes, messages, execution results, streaming
// events, the error taxonomy, and identifier generation.
//
// The package contains no I/O. All types serialize to the JSON shapes
// consumed by the web client; custom marshalers are used where the wire
// format differs from the natural Go representation.
package api
