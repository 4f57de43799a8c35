package fragment

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/fragmentd/fragmentd/pkg/api"
	"github.com/fragmentd/fragmentd/pkg/provider"
)

// Executor provisions a sandbox for a completed fragment and returns the
// execution result. Implementations are expected to be slow (tens of
// seconds) and must honor context cancellation.
type Executor interface {
	Execute(ctx context.Context, userID string, frag *api.Fragment) (*api.ExecutionResult, error)
}

// PromptSource supplies the system prompt for a template.
type PromptSource interface {
	SystemPrompt(template api.TemplateID) string
}

// Consumer turns provider text deltas into fragment stream events. It owns
// the generation state machine: one assistant message per turn, whole-field
// fragment replacement on every snapshot, single-flight sandbox
// provisioning on completion, and compare-and-discard of generations
// superseded by a newer one.
type Consumer struct {
	provider provider.Provider
	executor Executor
	prompts  PromptSource

	current atomic.Uint64 // latest generation number, for staleness checks
}

// NewConsumer creates a Consumer. The executor may be nil when sandbox
// provisioning is disabled; completed fragments then end the stream without
// sandbox events.
func NewConsumer(p provider.Provider, ex Executor, prompts PromptSource) *Consumer {
	return &Consumer{
		provider: p,
		executor: ex,
		prompts:  prompts,
	}
}

// Generation is one in-flight fragment generation. Events carries the
// ordered stream and is closed after a terminal event. Cancel stops the
// generation; it is safe to call more than once and after completion.
type Generation struct {
	ID     string
	Events <-chan api.StreamEvent

	history *History
	cancel  context.CancelFunc
	done    chan struct{}
}

// Cancel aborts the generation.
func (g *Generation) Cancel() {
	g.cancel()
}

// Messages returns the conversation including this turn's assistant
// message. Safe to call only after the event channel is closed.
func (g *Generation) Messages() []api.Message {
	<-g.done
	return g.history.Messages()
}

// Start begins a generation for the request. The previous generation, if
// any, is superseded: its sandbox result will be discarded if it has not
// been delivered yet.
func (c *Consumer) Start(ctx context.Context, req *api.GenerateRequest) (*Generation, error) {
	if len(req.Messages) == 0 {
		return nil, api.NewInvalidRequestError("messages", "at least one message is required")
	}
	if req.Template != "" && !api.IsKnownTemplate(req.Template) {
		return nil, api.NewInvalidRequestError("template", "unknown template "+string(req.Template))
	}

	genNum := c.current.Add(1)
	genID := api.NewGenerationID()

	provReq := &provider.Request{
		Model:    req.Model,
		Messages: req.Messages,
	}
	if c.prompts != nil {
		provReq.System = c.prompts.SystemPrompt(req.Template)
	}
	if req.Config != nil {
		provReq.Temperature = req.Config.Temperature
		provReq.TopP = req.Config.TopP
		provReq.MaxTokens = req.Config.MaxTokens
	}

	ctx, cancel := context.WithCancel(ctx)
	stream, err := c.provider.Stream(ctx, provReq)
	if err != nil {
		cancel()
		return nil, Classify(err)
	}

	events := make(chan api.StreamEvent, 32)
	gen := &Generation{
		ID:      genID,
		Events:  events,
		history: NewHistory(req.Messages),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go c.run(ctx, gen, genNum, req.UserID, stream, events)

	return gen, nil
}

// run drives one generation to a terminal event.
func (c *Consumer) run(ctx context.Context, gen *Generation, genNum uint64, userID string, stream <-chan provider.Event, events chan<- api.StreamEvent) {
	defer close(events)
	defer close(gen.done)
	defer gen.cancel()

	// Delivery is blocking: the channel is buffered and the transport
	// drains it to the end even after a client disconnect, so terminal
	// events are never lost to cancellation races.
	seq := 0
	emit := func(ev api.StreamEvent) {
		ev.SequenceNumber = seq
		ev.GenerationID = gen.ID
		seq++
		events <- ev
	}

	state := api.GenerationIdle
	transition := func(to api.GenerationState) {
		if err := api.ValidateGenerationTransition(state, to); err != nil {
			slog.Error("generation state machine violation",
				"generation_id", gen.ID, "from", state, "to", to)
			return
		}
		state = to
	}

	emit(api.StreamEvent{Type: api.EventGenerationStarted})
	transition(api.GenerationStreaming)

	var raw []byte
	var lastFragment *api.Fragment

	for ev := range stream {
		switch ev.Type {
		case provider.EventTextDelta:
			// The provider channel is buffered, so deltas can still arrive
			// after a stop. A stopped generation must not touch history.
			if ctx.Err() != nil {
				continue
			}
			raw = append(raw, ev.Delta...)
			frag, ok := Parse(string(raw))
			if !ok {
				continue
			}
			// Full snapshot on every delta: the client and the history
			// both replace, never merge.
			lastFragment = frag
			gen.history.SetAssistantFragment(frag)
			emit(api.StreamEvent{Type: api.EventFragmentDelta, Fragment: frag})

		case provider.EventDone:
			if ctx.Err() != nil {
				transition(api.GenerationCancelled)
				emit(api.StreamEvent{Type: api.EventGenerationCancelled})
				return
			}
			c.finish(ctx, gen, genNum, userID, string(raw), lastFragment, emit, transition)
			return

		case provider.EventError:
			if ctx.Err() != nil {
				transition(api.GenerationCancelled)
				emit(api.StreamEvent{Type: api.EventGenerationCancelled})
				return
			}
			transition(api.GenerationErrored)
			emit(api.StreamEvent{Type: api.EventGenerationFailed, Error: Classify(ev.Err)})
			return
		}
	}

	// Stream closed without a done or error event: cancellation.
	transition(api.GenerationCancelled)
	emit(api.StreamEvent{Type: api.EventGenerationCancelled})
}

// finish handles the streaming-to-complete edge: strict final parse,
// fragment.completed, and at most one sandbox provisioning.
func (c *Consumer) finish(ctx context.Context, gen *Generation, genNum uint64, userID, raw string, lastFragment *api.Fragment, emit func(api.StreamEvent), transition func(api.GenerationState)) {
	frag, err := ParseComplete(raw)
	if err != nil {
		// Fall back to the last tolerant snapshot before declaring failure.
		if lastFragment == nil {
			transition(api.GenerationErrored)
			emit(api.StreamEvent{Type: api.EventGenerationFailed, Error: Classify(err)})
			return
		}
		frag = lastFragment
	}

	transition(api.GenerationComplete)
	gen.history.SetAssistantFragment(frag)
	emit(api.StreamEvent{Type: api.EventFragmentCompleted, Fragment: frag})

	if c.executor != nil && frag.IsComplete() {
		c.provision(ctx, gen, genNum, userID, frag, emit)
	}

	emit(api.StreamEvent{Type: api.EventGenerationCompleted, Fragment: frag})
}

// provision runs the executor exactly once for this generation. A result
// that arrives after a newer generation has started is discarded rather
// than surfaced, so a stale sandbox can never clobber the current preview.
func (c *Consumer) provision(ctx context.Context, gen *Generation, genNum uint64, userID string, frag *api.Fragment, emit func(api.StreamEvent)) {
	emit(api.StreamEvent{Type: api.EventSandboxCreating, Fragment: frag})

	result, err := c.executor.Execute(ctx, userID, frag)

	if c.current.Load() != genNum {
		slog.Debug("discarding sandbox result from superseded generation",
			"generation_id", gen.ID)
		return
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		apiErr, ok := err.(*api.APIError)
		if !ok {
			apiErr = api.NewRemoteExecutionError("sandbox provisioning failed", err.Error())
		}
		emit(api.StreamEvent{Type: api.EventSandboxFailed, Error: apiErr})
		return
	}

	gen.history.SetAssistantResult(result)
	emit(api.StreamEvent{Type: api.EventSandboxCreated, Result: result})
}
