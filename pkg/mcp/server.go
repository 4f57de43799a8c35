// Package mcp exposes sandbox sessions as Model Context Protocol tools,
// letting MCP-capable agents read, write, and execute inside a sandbox
// through the same session layer the HTTP surface uses.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fragmentd/fragmentd/pkg/api"
	"github.com/fragmentd/fragmentd/pkg/sandbox"
)

// Server wires sandbox tools into an MCP server.
type Server struct {
	manager *sandbox.Manager
	server  *sdk.Server
	logger  *slog.Logger
}

// NewServer creates the MCP tool server backed by the given session manager.
func NewServer(manager *sandbox.Manager, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		manager: manager,
		logger:  logger,
		server: sdk.NewServer(
			&sdk.Implementation{Name: "fragmentd", Version: version},
			nil,
		),
	}

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "sandbox_run_command",
		Description: "Runs a shell command inside a sandbox and returns stdout, stderr, and the exit code",
	}, s.runCommand)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "sandbox_read_file",
		Description: "Reads a workspace file from a sandbox",
	}, s.readFile)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "sandbox_write_file",
		Description: "Writes content to a workspace file in a sandbox",
	}, s.writeFile)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "sandbox_list_files",
		Description: "Lists the sandbox file tree as JSON",
	}, s.listFiles)

	return s
}

// HTTPHandler serves the MCP server over streamable HTTP.
func (s *Server) HTTPHandler() http.Handler {
	return sdk.NewStreamableHTTPHandler(func(_ *http.Request) *sdk.Server {
		return s.server
	}, nil)
}

// RunCommandInput names the sandbox and the command to run. A missing
// sandbox ID provisions a fresh sandbox from the template.
type RunCommandInput struct {
	SandboxID string `json:"sandbox_id,omitempty" jsonschema_description:"Existing sandbox to reuse; omit to create one"`
	Template  string `json:"template,omitempty" jsonschema_description:"Template for a fresh sandbox, e.g. code-interpreter-v1"`
	Command   string `json:"command" jsonschema_description:"Shell command to execute"`
}

func (s *Server) runCommand(ctx context.Context, _ *sdk.CallToolRequest, input RunCommandInput) (*sdk.CallToolResult, struct{}, error) {
	if input.Command == "" {
		return nil, struct{}{}, fmt.Errorf("command is required")
	}

	sess, err := s.session(ctx, input.SandboxID, input.Template)
	if err != nil {
		return nil, struct{}{}, err
	}

	result, err := sess.RunCommand(ctx, input.Command)
	if err != nil {
		return nil, struct{}{}, err
	}

	text := fmt.Sprintf("sandbox: %s\nexit code: %d\nstdout:\n%s\nstderr:\n%s",
		sess.ID(), result.ExitCode, result.Stdout, result.Stderr)
	return textResult(text), struct{}{}, nil
}

// ReadFileInput names the sandbox and the workspace path to read.
type ReadFileInput struct {
	SandboxID string `json:"sandbox_id" jsonschema_description:"Sandbox to read from"`
	Path      string `json:"path" jsonschema_description:"Workspace path, e.g. /app.py"`
}

func (s *Server) readFile(ctx context.Context, _ *sdk.CallToolRequest, input ReadFileInput) (*sdk.CallToolResult, struct{}, error) {
	sess, err := s.manager.Connect(ctx, input.SandboxID)
	if err != nil {
		return nil, struct{}{}, err
	}

	content, err := sess.ReadFile(ctx, input.Path)
	if err != nil {
		return nil, struct{}{}, err
	}
	return textResult(content), struct{}{}, nil
}

// WriteFileInput names the sandbox, the workspace path, and the content.
type WriteFileInput struct {
	SandboxID string `json:"sandbox_id" jsonschema_description:"Sandbox to write into"`
	Path      string `json:"path" jsonschema_description:"Workspace path, e.g. /app.py"`
	Content   string `json:"content" jsonschema_description:"Full file content"`
}

func (s *Server) writeFile(ctx context.Context, _ *sdk.CallToolRequest, input WriteFileInput) (*sdk.CallToolResult, struct{}, error) {
	sess, err := s.manager.Connect(ctx, input.SandboxID)
	if err != nil {
		return nil, struct{}{}, err
	}

	if err := sess.WriteFile(ctx, input.Path, input.Content); err != nil {
		return nil, struct{}{}, err
	}
	return textResult(fmt.Sprintf("wrote %s", input.Path)), struct{}{}, nil
}

// ListFilesInput names the sandbox to enumerate.
type ListFilesInput struct {
	SandboxID string `json:"sandbox_id" jsonschema_description:"Sandbox to list"`
}

func (s *Server) listFiles(ctx context.Context, _ *sdk.CallToolRequest, input ListFilesInput) (*sdk.CallToolResult, struct{}, error) {
	sess, err := s.manager.Connect(ctx, input.SandboxID)
	if err != nil {
		return nil, struct{}{}, err
	}

	tree, err := sess.ListTree(ctx)
	if err != nil {
		return nil, struct{}{}, err
	}

	data, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return nil, struct{}{}, err
	}
	return textResult(string(data)), struct{}{}, nil
}

func (s *Server) session(ctx context.Context, id, template string) (*sandbox.Session, error) {
	if id == "" && template == "" {
		return nil, fmt.Errorf("either sandbox_id or template is required")
	}
	return s.manager.ConnectOrCreate(ctx, id, api.TemplateID(template))
}

func textResult(text string) *sdk.CallToolResult {
	return &sdk.CallToolResult{
		Content: []sdk.Content{&sdk.TextContent{Text: text}},
	}
}
