package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/fragmentd/fragmentd/pkg/api"
	"github.com/fragmentd/fragmentd/pkg/provider"
)

// parseSSEStream reads Chat Completions SSE chunks from the given reader,
// translates each chunk to provider events, and sends them on ch. The
// channel is NOT closed by this function; the caller is responsible for
// closing it.
//
// SSE format expected:
//
//	data: {"id":"...","choices":[...]}\n
//	\n
//	data: [DONE]\n
//	\n
//
// Malformed chunks are logged and skipped. Context cancellation stops
// reading immediately.
func parseSSEStream(ctx context.Context, body io.Reader, ch chan<- provider.Event) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	sawDone := false

	for scanner.Scan() {
		// Check for context cancellation between lines.
		if ctx.Err() != nil {
			return
		}

		line := scanner.Text()

		// SSE lines that don't start with "data: " are ignored
		// (e.g., empty lines, comments starting with ":").
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		payload := strings.TrimPrefix(line, "data: ")

		// Handle the [DONE] sentinel.
		if payload == "[DONE]" {
			sawDone = true
			ch <- provider.Event{Type: provider.EventDone}
			return
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			slog.Warn("skipping malformed SSE chunk",
				"error", err.Error(),
				"data", truncate(payload, 200),
			)
			continue
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if choice.Delta.Content != nil && *choice.Delta.Content != "" {
			ch <- provider.Event{
				Type:  provider.EventTextDelta,
				Delta: *choice.Delta.Content,
			}
		}

		if choice.FinishReason != nil {
			sawDone = true
			ch <- provider.Event{Type: provider.EventDone}
			return
		}
	}

	// Scanner error or truncated stream (connection dropped).
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return
		}
		ch <- provider.Event{
			Type: provider.EventError,
			Err:  api.NewStreamError(api.StreamErrorNetwork, "stream read error: "+err.Error()),
		}
		return
	}
	if !sawDone {
		ch <- provider.Event{
			Type: provider.EventError,
			Err:  api.NewStreamError(api.StreamErrorNetwork, "stream ended before completion"),
		}
	}
}

// truncate limits a string to maxLen characters for log output.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
