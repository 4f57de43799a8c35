package openaicompat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fragmentd/fragmentd/pkg/api"
	"github.com/fragmentd/fragmentd/pkg/provider"
)

func sseBody(payloads ...string) string {
	var b strings.Builder
	for _, p := range payloads {
		b.WriteString("data: ")
		b.WriteString(p)
		b.WriteString("\n\n")
	}
	return b.String()
}

func collect(t *testing.T, ch <-chan provider.Event) []provider.Event {
	t.Helper()
	var events []provider.Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestClient_Stream_TextDeltas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(sseBody(
			`{"choices":[{"delta":{"role":"assistant"}}]}`,
			`{"choices":[{"delta":{"content":"{\"commentary\":"}}]}`,
			`{"choices":[{"delta":{"content":"\"hi\"}"}}]}`,
			`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
			`[DONE]`,
		)))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "test-model", 0)
	ch, err := c.Stream(context.Background(), &provider.Request{
		Messages: []api.Message{{Role: api.RoleUser, Content: []api.ContentPart{{Type: api.ContentText, Text: "hi"}}}},
	})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	events := collect(t, ch)

	var text strings.Builder
	sawDone := false
	for _, ev := range events {
		switch ev.Type {
		case provider.EventTextDelta:
			text.WriteString(ev.Delta)
		case provider.EventDone:
			sawDone = true
		case provider.EventError:
			t.Fatalf("unexpected error event: %v", ev.Err)
		}
	}
	if text.String() != `{"commentary":"hi"}` {
		t.Errorf("assembled text = %q", text.String())
	}
	if !sawDone {
		t.Error("no done event")
	}
}

func TestClient_Stream_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode api.StreamErrorCode
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"rate limit exceeded"}}`, api.StreamErrorRateLimit},
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, api.StreamErrorAuth},
		{"forbidden", http.StatusForbidden, ``, api.StreamErrorAuth},
		{"gateway timeout", http.StatusGatewayTimeout, ``, api.StreamErrorTimeout},
		{"server error", http.StatusInternalServerError, ``, api.StreamErrorGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "", "test-model", 0)
			_, err := c.Stream(context.Background(), &provider.Request{})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			apiErr, ok := err.(*api.APIError)
			if !ok {
				t.Fatalf("error type = %T", err)
			}
			if apiErr.Type != api.ErrorTypeStreamError || apiErr.Code != tt.wantCode {
				t.Errorf("error = %v/%v, want stream_error/%v", apiErr.Type, apiErr.Code, tt.wantCode)
			}
		})
	}
}

func TestClient_Stream_ExtractsBackendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"You have exceeded your quota"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "test-model", 0)
	_, err := c.Stream(context.Background(), &provider.Request{})
	apiErr, ok := err.(*api.APIError)
	if !ok || !strings.Contains(apiErr.Message, "exceeded your quota") {
		t.Errorf("error = %v, want backend message preserved", err)
	}
}

func TestClient_Stream_TruncatedStream(t *testing.T) {
	// The stream ends without finish_reason or [DONE].
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(sseBody(`{"choices":[{"delta":{"content":"partial"}}]}`)))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "test-model", 0)
	ch, err := c.Stream(context.Background(), &provider.Request{})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	events := collect(t, ch)
	last := events[len(events)-1]
	if last.Type != provider.EventError {
		t.Fatalf("last event type = %v, want error", last.Type)
	}
	apiErr, ok := last.Err.(*api.APIError)
	if !ok || apiErr.Code != api.StreamErrorNetwork {
		t.Errorf("error = %v, want network classification", last.Err)
	}
}

func TestClient_Stream_NoModelConfigured(t *testing.T) {
	c := NewClient("http://localhost:1", "", "", 0)
	_, err := c.Stream(context.Background(), &provider.Request{})
	if err == nil {
		t.Fatal("expected configuration error")
	}
	apiErr, ok := err.(*api.APIError)
	if !ok || apiErr.Type != api.ErrorTypeConfigurationMissing {
		t.Errorf("error = %v, want configuration_missing", err)
	}
}

func TestClient_Stream_ContextCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(sseBody(`{"choices":[{"delta":{"content":"x"}}]}`)))
		w.(http.Flusher).Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(srv.URL, "", "test-model", 0)
	ch, err := c.Stream(ctx, &provider.Request{})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	cancel()

	// The channel must close promptly after cancellation.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel did not close after context cancellation")
		}
	}
}

func TestTranslateMessages(t *testing.T) {
	frag := &api.Fragment{Template: api.TemplateStreamlit, Code: "import streamlit", FilePath: "app.py"}
	messages := []api.Message{
		{Role: api.RoleUser, Content: []api.ContentPart{
			{Type: api.ContentText, Text: "make an app"},
			{Type: api.ContentImage, Image: "data:image/png;base64,..."},
		}},
		{Role: api.RoleAssistant, Fragment: frag},
	}

	out := translateMessages("you write fragments", messages)

	if len(out) != 3 {
		t.Fatalf("got %d messages, want 3", len(out))
	}
	if out[0].Role != "system" || out[0].Content != "you write fragments" {
		t.Errorf("system message = %+v", out[0])
	}
	if out[1].Content != "make an app" {
		t.Errorf("user content = %q, image part must be dropped", out[1].Content)
	}
	if !strings.Contains(out[2].Content, `"file_path":"app.py"`) {
		t.Errorf("assistant content = %q, want fragment JSON", out[2].Content)
	}
}
