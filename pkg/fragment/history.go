package fragment

import (
	"github.com/fragmentd/fragmentd/pkg/api"
)

// History is the conversation assembled during one generation turn. The
// message list is append-only with a single exception: the assistant
// message produced by the current turn is replaced in place on every
// fragment snapshot, so a turn never yields more than one assistant entry.
type History struct {
	messages    []api.Message
	assistantID string // ID of this turn's assistant message, empty until first snapshot
}

// NewHistory copies the incoming conversation so concurrent readers of the
// request never observe in-place mutation.
func NewHistory(initial []api.Message) *History {
	messages := make([]api.Message, len(initial))
	copy(messages, initial)
	return &History{messages: messages}
}

// SetAssistantFragment installs the latest fragment snapshot as this turn's
// assistant message. The first call appends; every later call overwrites
// the same entry.
func (h *History) SetAssistantFragment(frag *api.Fragment) {
	msg := api.Message{
		Role:     api.RoleAssistant,
		Fragment: frag,
	}
	if frag != nil && frag.Commentary != "" {
		msg.Content = []api.ContentPart{{Type: api.ContentText, Text: frag.Commentary}}
	}

	if h.assistantID == "" {
		msg.ID = api.NewMessageID()
		h.assistantID = msg.ID
		h.messages = append(h.messages, msg)
		return
	}

	msg.ID = h.assistantID
	for i := len(h.messages) - 1; i >= 0; i-- {
		if h.messages[i].ID == h.assistantID {
			msg.Result = h.messages[i].Result
			h.messages[i] = msg
			return
		}
	}
}

// SetAssistantResult attaches an execution result to this turn's assistant
// message. A result arriving before any fragment snapshot is dropped.
func (h *History) SetAssistantResult(result *api.ExecutionResult) {
	if h.assistantID == "" {
		return
	}
	for i := len(h.messages) - 1; i >= 0; i-- {
		if h.messages[i].ID == h.assistantID {
			h.messages[i].Result = result
			return
		}
	}
}

// Messages returns the current conversation.
func (h *History) Messages() []api.Message {
	return h.messages
}

// AssistantCount reports how many assistant messages the conversation holds.
func (h *History) AssistantCount() int {
	n := 0
	for _, m := range h.messages {
		if m.Role == api.RoleAssistant {
			n++
		}
	}
	return n
}
