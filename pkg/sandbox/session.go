package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fragmentd/fragmentd/pkg/api"
	"github.com/fragmentd/fragmentd/pkg/filetree"
)

// OperationTimeout is the wall-clock budget applied to every single sandbox
// operation. Budgets nest inside the caller's context: whichever expires
// first cancels the operation.
const OperationTimeout = 60 * time.Second

// Session is a live connection to one sandbox. All file paths accepted by
// Session methods are workspace paths rooted at "/"; translation to the
// sandbox working root happens in exactly one place (ToSandboxPath) for
// reads and writes alike.
type Session struct {
	id       string
	template api.TemplateID
	url      string
	client   *RunnerClient
	timeout  time.Duration
	release  func()
}

// NewSession wraps an already-provisioned sandbox. The release function may
// be nil for externally managed sandboxes.
func NewSession(id string, template api.TemplateID, runnerURL string, client *RunnerClient, release func()) *Session {
	return &Session{
		id:       id,
		template: template,
		url:      runnerURL,
		client:   client,
		timeout:  OperationTimeout,
		release:  release,
	}
}

// ID returns the sandbox identifier.
func (s *Session) ID() string { return s.id }

// Template returns the template the sandbox was provisioned from.
func (s *Session) Template() api.TemplateID { return s.template }

// URL returns the runner base URL.
func (s *Session) URL() string { return s.url }

// ToSandboxPath translates a workspace path into an absolute sandbox path.
// A leading slash is optional on input; the result is always absolute under
// the working root.
func ToSandboxPath(workspacePath string) string {
	rel := strings.TrimPrefix(workspacePath, "/")
	if rel == "" {
		return WorkingRoot
	}
	return WorkingRoot + "/" + rel
}

// FromSandboxPath translates an absolute sandbox path back into a workspace
// path rooted at "/". Paths outside the working root are returned unchanged.
func FromSandboxPath(sandboxPath string) string {
	if sandboxPath == WorkingRoot {
		return "/"
	}
	rel, ok := strings.CutPrefix(sandboxPath, WorkingRoot+"/")
	if !ok {
		return sandboxPath
	}
	return "/" + rel
}

// ReadFile reads a workspace file from the sandbox.
func (s *Session) ReadFile(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	content, err := s.client.ReadFile(ctx, s.url, ToSandboxPath(path))
	if err != nil {
		return "", fileError("read", path, err)
	}
	return content, nil
}

// WriteFile writes content to a workspace file in the sandbox.
func (s *Session) WriteFile(ctx context.Context, path, content string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.WriteFile(ctx, s.url, ToSandboxPath(path), content); err != nil {
		return fileError("write", path, err)
	}
	return nil
}

// RunCommand executes a shell command in the sandbox. Stdout and stderr come
// back verbatim; a non-zero exit code is not an error at this layer.
func (s *Session) RunCommand(ctx context.Context, command string) (*CommandResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.client.RunCommand(ctx, s.url, command, s.timeout)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, api.NewRemoteExecutionError(
				fmt.Sprintf("command exceeded %s budget", s.timeout), command)
		}
		return nil, err
	}
	return result, nil
}

// ListTree enumerates the sandbox working root with a recursive find and
// reconstructs the file tree, inferring directories from path structure.
func (s *Session) ListTree(ctx context.Context) ([]*api.FileNode, error) {
	result, err := s.RunCommand(ctx, "find "+WorkingRoot+" -not -path '*/node_modules*'")
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		return nil, api.NewRemoteExecutionError(
			fmt.Sprintf("listing failed with exit code %d", result.ExitCode), result.Stderr)
	}
	return filetree.FromListing(result.Stdout, WorkingRoot), nil
}

// Close releases the underlying sandbox if this session owns it.
func (s *Session) Close() {
	if s.release != nil {
		s.release()
		slog.Debug("sandbox session released", "sandbox_id", s.id)
	}
}

// fileError wraps a runner failure with the workspace path while keeping the
// remote diagnostic intact. Not-found passes through untouched.
func fileError(op, path string, err error) error {
	if apiErr, ok := err.(*api.APIError); ok {
		if apiErr.Type == api.ErrorTypeNotFound {
			return apiErr
		}
		return api.NewRemoteExecutionError(
			fmt.Sprintf("%s %s: %s", op, path, apiErr.Message), apiErr.Details)
	}
	return api.NewRemoteExecutionError(fmt.Sprintf("%s %s", op, path), err.Error())
}
