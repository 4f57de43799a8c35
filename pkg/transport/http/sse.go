package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fragmentd/fragmentd/pkg/api"
	"github.com/fragmentd/fragmentd/pkg/transport"
)

// writerState tracks the SSE writer lifecycle.
type writerState int

const (
	// writerIdle means no event has been written; errors can still go out
	// as a plain JSON response.
	writerIdle writerState = iota

	// writerStreaming means SSE headers are committed and events flow.
	writerStreaming

	// writerCompleted means a terminal event has been written; further
	// writes are refused.
	writerCompleted
)

// SSEWriter writes stream events as server-sent events. Each event goes out
// as an "event:" line naming the type and a "data:" line carrying the JSON
// payload. A terminal event is followed by the "data: [DONE]" sentinel and
// completes the writer.
type SSEWriter struct {
	w     http.ResponseWriter
	rc    *http.ResponseController
	state writerState

	// onStarted, when set, is invoked once with the generation ID of the
	// first event that carries one. The adapter uses it to register the
	// in-flight generation for explicit cancellation.
	onStarted func(generationID string)
}

// Ensure SSEWriter implements EventWriter at compile time.
var _ transport.EventWriter = (*SSEWriter)(nil)

// NewSSEWriter creates an SSE writer over the response. Headers are not
// committed until the first event is written, so early failures can still
// produce a JSON error response.
func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	return &SSEWriter{
		w:  w,
		rc: http.NewResponseController(w),
	}
}

// WriteEvent writes a single event and flushes it to the client.
func (s *SSEWriter) WriteEvent(ctx context.Context, event api.StreamEvent) error {
	if s.state == writerCompleted {
		return fmt.Errorf("write after terminal event %s", event.Type)
	}
	if s.state == writerIdle {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
		s.state = writerStreaming
	}

	if s.onStarted != nil && event.GenerationID != "" {
		s.onStarted(event.GenerationID)
		s.onStarted = nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return err
	}

	if event.Type.IsTerminal() {
		if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
			return err
		}
		s.state = writerCompleted
	}

	return s.Flush()
}

// Flush pushes buffered data to the client.
func (s *SSEWriter) Flush() error {
	return s.rc.Flush()
}

// Started reports whether SSE headers have been committed. Before the first
// event, errors can still be written as a JSON response body.
func (s *SSEWriter) Started() bool {
	return s.state != writerIdle
}
