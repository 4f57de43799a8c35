// Package storage provides utilities shared across workspace store
// implementations, including sentinel errors, path normalization, and user
// context helpers.
//
// Store adapters (memory, postgres) implement the WorkspaceStore interface
// defined in store.go.
package storage
