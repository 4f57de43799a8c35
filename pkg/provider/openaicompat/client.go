package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fragmentd/fragmentd/pkg/api"
	"github.com/fragmentd/fragmentd/pkg/provider"
)

// Ensure Client implements provider.Provider.
var _ provider.Provider = (*Client)(nil)

// Client performs HTTP requests against an OpenAI-compatible Chat
// Completions backend and parses the SSE stream into provider events.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewClient creates a new Client for an OpenAI-compatible backend. The
// model is the default used when a request does not name one.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(baseURL, "/")

	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
	}
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return "openaicompat"
}

// Stream starts a generation against the Chat Completions endpoint. It
// returns a channel of events closed when the stream completes, errors, or
// the context is cancelled.
//
// The HTTP client timeout is not applied for streaming requests because a
// stream can legitimately last longer than any fixed timeout. Lifecycle
// control relies on context cancellation instead.
func (c *Client) Stream(ctx context.Context, req *provider.Request) (<-chan provider.Event, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	if model == "" {
		return nil, api.NewConfigurationMissingError("no model configured for generation")
	}

	chatReq := &chatRequest{
		Model:          model,
		Messages:       translateMessages(req.System, req.Messages),
		Temperature:    req.Temperature,
		TopP:           req.TopP,
		MaxTokens:      req.MaxTokens,
		Stream:         true,
		ResponseFormat: &respFormat{Type: "json_object"},
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, api.NewServerError("failed to marshal request: " + err.Error())
	}

	url := c.baseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, api.NewServerError("failed to create HTTP request: " + err.Error())
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	// Use a client without timeout for streaming. The context controls
	// the request lifetime instead.
	streamClient := &http.Client{
		Transport: c.httpClient.Transport,
	}

	httpResp, err := streamClient.Do(httpReq)
	if err != nil {
		return nil, mapNetworkError(err)
	}

	// Check for error status codes before starting the stream.
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		defer httpResp.Body.Close()
		return nil, mapHTTPError(httpResp)
	}

	ch := make(chan provider.Event, 16)

	go func() {
		defer close(ch)
		defer httpResp.Body.Close()
		parseSSEStream(ctx, httpResp.Body, ch)
	}()

	return ch, nil
}

// Close releases client resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// translateMessages flattens the conversation into Chat Completions format.
// Text and code parts are concatenated; an assistant message carrying a
// fragment is rendered as the fragment's JSON so the model sees its own
// prior output in the format it is asked to produce.
func translateMessages(system string, messages []api.Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages)+1)
	if system != "" {
		out = append(out, chatMessage{Role: "system", Content: system})
	}

	for _, m := range messages {
		var b strings.Builder
		for _, part := range m.Content {
			if part.Type == api.ContentImage {
				continue // Image parts are not forwarded to text-only backends.
			}
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(part.Text)
		}
		if m.Role == api.RoleAssistant && m.Fragment != nil {
			raw, err := json.Marshal(m.Fragment)
			if err == nil {
				if b.Len() > 0 {
					b.WriteString("\n")
				}
				b.Write(raw)
			}
		}
		out = append(out, chatMessage{Role: string(m.Role), Content: b.String()})
	}
	return out
}
