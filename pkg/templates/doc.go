// Package templates holds the sandbox template catalog: per-template
// runtime metadata, main-file mapping, and the system prompt handed to the
// model. The catalog is loaded once at startup and injected; nothing in
// the hot path touches the filesystem.
package templates
