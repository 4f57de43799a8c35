package api

// StreamEventType identifies the type of a streaming event sent to the
// client while a fragment is being generated and executed.
type StreamEventType string

// Delta events convey incremental fragment content.
const (
	EventFragmentDelta     StreamEventType = "fragment.delta"
	EventFragmentCompleted StreamEventType = "fragment.completed"
)

// Lifecycle events track the generation state machine.
const (
	EventGenerationStarted   StreamEventType = "generation.started"
	EventGenerationCompleted StreamEventType = "generation.completed"
	EventGenerationFailed    StreamEventType = "generation.failed"
	EventGenerationCancelled StreamEventType = "generation.cancelled"
)

// Sandbox events report session provisioning driven by a completed fragment.
const (
	EventSandboxCreating StreamEventType = "sandbox.creating"
	EventSandboxCreated  StreamEventType = "sandbox.created"
	EventSandboxFailed   StreamEventType = "sandbox.failed"
)

// StreamEvent represents a single server-sent event in a generation stream.
// Fragment snapshots carry the full partial fragment, not a diff: each
// emission replaces whatever the client held before.
type StreamEvent struct {
	Type           StreamEventType  `json:"type"`
	SequenceNumber int              `json:"sequence_number"`
	GenerationID   string           `json:"generation_id,omitempty"`
	Fragment       *Fragment        `json:"fragment,omitempty"`
	Result         *ExecutionResult `json:"result,omitempty"`
	Error          *APIError        `json:"error,omitempty"`
}

// IsTerminal reports whether the event ends the generation stream.
func (t StreamEventType) IsTerminal() bool {
	switch t {
	case EventGenerationCompleted, EventGenerationFailed, EventGenerationCancelled:
		return true
	}
	return false
}
