package provider

import (
	"context"

	"github.com/fragmentd/fragmentd/pkg/api"
)

// Provider abstracts an LLM inference backend that streams fragment JSON
// as incremental text deltas.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Provider interface {
	// Name returns the provider identifier (e.g., "openaicompat").
	Name() string

	// Stream starts a generation. The returned channel receives Event
	// values and is closed by the provider when the stream completes,
	// errors, or the context is cancelled.
	Stream(ctx context.Context, req *Request) (<-chan Event, error)

	// Close releases provider resources (HTTP clients, connections).
	Close() error
}

// Request is the backend-facing generation request.
type Request struct {
	Model    string
	System   string
	Messages []api.Message

	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// EventType classifies a streaming event from the backend.
type EventType int

const (
	EventTextDelta EventType = iota // Incremental text content
	EventDone                       // Stream finished
	EventError                      // Stream error
)

// Event is a single streaming event from the backend.
type Event struct {
	// Type indicates what kind of event this is.
	Type EventType

	// Delta contains incremental text data.
	Delta string

	// Err is populated if the stream encountered an error.
	Err error
}
