package api

import "fmt"

// GenerationState tracks the lifecycle of one fragment generation.
type GenerationState string

const (
	GenerationIdle      GenerationState = "idle"
	GenerationStreaming GenerationState = "streaming"
	GenerationComplete  GenerationState = "complete"
	GenerationErrored   GenerationState = "errored"
	GenerationCancelled GenerationState = "cancelled"
)

// ValidateGenerationTransition checks whether a generation state transition
// is valid. Complete, errored, and cancelled are terminal: a new generation
// starts from idle rather than reusing a finished one.
func ValidateGenerationTransition(from, to GenerationState) *APIError {
	valid := map[GenerationState][]GenerationState{
		GenerationIdle:      {GenerationStreaming},
		GenerationStreaming: {GenerationComplete, GenerationErrored, GenerationCancelled},
	}

	allowed, exists := valid[from]
	if !exists {
		return NewInvalidRequestError("state",
			fmt.Sprintf("invalid transition from %s to %s", from, to))
	}

	for _, s := range allowed {
		if s == to {
			return nil
		}
	}

	return NewInvalidRequestError("state",
		fmt.Sprintf("invalid transition from %s to %s", from, to))
}
