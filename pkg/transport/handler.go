package transport

import (
	"context"

	"github.com/fragmentd/fragmentd/pkg/api"
)

// EventWriter abstracts streaming output for a generation. The transport
// layer creates an EventWriter per request; the handler pushes ordered
// stream events through it. After a terminal event the writer refuses
// further writes.
type EventWriter interface {
	// WriteEvent sends a single streaming event. Returns an error if called
	// after a terminal event has been sent.
	WriteEvent(ctx context.Context, event api.StreamEvent) error

	// Flush ensures buffered data is sent to the client. Returns an error
	// if the client has disconnected.
	Flush() error
}

// GenerationHandler is the core generate operation. The implementation
// consumes the request, drives the fragment stream, and writes every event
// to the EventWriter, ending with a terminal event.
type GenerationHandler interface {
	Generate(ctx context.Context, req *api.GenerateRequest, w EventWriter) error
}

// GenerationHandlerFunc adapts an ordinary function to GenerationHandler.
type GenerationHandlerFunc func(ctx context.Context, req *api.GenerateRequest, w EventWriter) error

// Generate calls f(ctx, req, w).
func (f GenerationHandlerFunc) Generate(ctx context.Context, req *api.GenerateRequest, w EventWriter) error {
	return f(ctx, req, w)
}
