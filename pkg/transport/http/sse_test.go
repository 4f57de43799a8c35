package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fragmentd/fragmentd/pkg/api"
)

func TestSSEWriter_CommitsHeadersOnFirstEvent(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewSSEWriter(rec)

	if w.Started() {
		t.Error("writer should start idle")
	}

	ev := api.StreamEvent{Type: api.EventGenerationStarted, GenerationID: "gen-1"}
	if err := w.WriteEvent(context.Background(), ev); err != nil {
		t.Fatal(err)
	}

	if !w.Started() {
		t.Error("writer should report started after the first event")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("cache control = %q", cc)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "event: generation.started\n") {
		t.Errorf("body = %q, want event line", body)
	}
	if !strings.Contains(body, `"generation_id":"gen-1"`) {
		t.Errorf("body = %q, want JSON payload", body)
	}
}

func TestSSEWriter_TerminalEventAppendsDone(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewSSEWriter(rec)

	ev := api.StreamEvent{Type: api.EventGenerationCompleted, GenerationID: "gen-1"}
	if err := w.WriteEvent(context.Background(), ev); err != nil {
		t.Fatal(err)
	}

	if !strings.HasSuffix(rec.Body.String(), "data: [DONE]\n\n") {
		t.Errorf("body = %q, want trailing DONE sentinel", rec.Body.String())
	}
}

func TestSSEWriter_RefusesWriteAfterTerminal(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewSSEWriter(rec)

	terminal := api.StreamEvent{Type: api.EventGenerationCancelled}
	if err := w.WriteEvent(context.Background(), terminal); err != nil {
		t.Fatal(err)
	}

	err := w.WriteEvent(context.Background(), api.StreamEvent{Type: api.EventFragmentDelta})
	if err == nil {
		t.Error("expected an error writing after a terminal event")
	}
}

func TestSSEWriter_OnStartedFiresOnce(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewSSEWriter(rec)

	var ids []string
	w.onStarted = func(id string) { ids = append(ids, id) }

	events := []api.StreamEvent{
		{Type: api.EventGenerationStarted, GenerationID: "gen-1"},
		{Type: api.EventFragmentDelta, GenerationID: "gen-1"},
	}
	for _, ev := range events {
		if err := w.WriteEvent(context.Background(), ev); err != nil {
			t.Fatal(err)
		}
	}

	if len(ids) != 1 || ids[0] != "gen-1" {
		t.Errorf("onStarted calls = %v, want exactly one with gen-1", ids)
	}
}
