package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fragmentd/fragmentd/pkg/api"
)

// RunnerClient calls a sandbox runner's REST API for file and command
// operations. One client is shared across sessions; the sandbox is selected
// by the base URL passed per call.
type RunnerClient struct {
	httpClient *http.Client
}

// NewRunnerClient creates a new runner HTTP client.
func NewRunnerClient() *RunnerClient {
	return &RunnerClient{
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // Overall HTTP timeout (operation budgets are enforced per call).
		},
	}
}

// ReadFile reads a file from the sandbox filesystem.
func (c *RunnerClient) ReadFile(ctx context.Context, runnerURL, path string) (string, error) {
	var resp runFileResponse
	err := c.post(ctx, runnerURL+"/files/read", &runFileRequest{Path: path}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// WriteFile writes content to a file in the sandbox filesystem, creating
// parent directories as needed.
func (c *RunnerClient) WriteFile(ctx context.Context, runnerURL, path, content string) error {
	return c.post(ctx, runnerURL+"/files/write", &runFileRequest{Path: path, Content: content}, nil)
}

// RunCommand executes a shell command in the sandbox and returns its output.
func (c *RunnerClient) RunCommand(ctx context.Context, runnerURL, command string, timeout time.Duration) (*CommandResult, error) {
	req := &runCommandRequest{
		Command:        command,
		TimeoutSeconds: int(timeout.Seconds()),
	}
	var result CommandResult
	if err := c.post(ctx, runnerURL+"/commands", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *RunnerClient) post(ctx context.Context, url string, reqBody, respBody any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return api.NewRemoteExecutionError("sandbox request failed", err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return api.NewRemoteExecutionError("read sandbox response", err.Error())
	}

	if resp.StatusCode == http.StatusNotFound {
		return api.NewNotFoundError("sandbox resource not found")
	}
	if resp.StatusCode != http.StatusOK {
		return api.NewRemoteExecutionError(
			fmt.Sprintf("sandbox returned HTTP %d", resp.StatusCode), string(raw))
	}

	if respBody != nil {
		if err := json.Unmarshal(raw, respBody); err != nil {
			return api.NewRemoteExecutionError("decode sandbox response", err.Error())
		}
	}
	return nil
}
