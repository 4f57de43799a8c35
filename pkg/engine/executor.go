package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"

	"github.com/fragmentd/fragmentd/pkg/api"
	"github.com/fragmentd/fragmentd/pkg/fragment"
	"github.com/fragmentd/fragmentd/pkg/sandbox"
	"github.com/fragmentd/fragmentd/pkg/templates"
)

// Executor provisions a sandbox for a completed fragment.
type Executor struct {
	manager *sandbox.Manager
	catalog *templates.Catalog
	logger  *slog.Logger
}

// Compile-time check that Executor satisfies the fragment consumer's contract.
var _ fragment.Executor = (*Executor)(nil)

// New creates an Executor.
func New(manager *sandbox.Manager, catalog *templates.Catalog, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{manager: manager, catalog: catalog, logger: logger}
}

// Execute provisions a sandbox from the fragment's template, installs any
// additional dependencies, writes the code to its file path, and returns
// the execution result. Interpreter fragments run to completion and carry
// captured stdout/stderr; app fragments carry a preview URL instead.
func (e *Executor) Execute(ctx context.Context, userID string, frag *api.Fragment) (*api.ExecutionResult, error) {
	if !frag.IsComplete() {
		return nil, api.NewInvalidRequestError("fragment", "fragment is not complete")
	}

	sess, err := e.manager.Create(ctx, frag.Template)
	if err != nil {
		return nil, err
	}

	log := e.logger.With(
		"sandbox_id", sess.ID(),
		"template", frag.Template,
		"user_id", userID,
	)
	log.Info("sandbox provisioned")

	if frag.HasAdditionalDependencies && frag.InstallDependenciesCmd != "" {
		result, err := sess.RunCommand(ctx, frag.InstallDependenciesCmd)
		if err != nil {
			e.manager.Release(sess.ID())
			return nil, err
		}
		if result.ExitCode != 0 {
			e.manager.Release(sess.ID())
			return nil, api.NewRemoteExecutionError(
				fmt.Sprintf("dependency install failed with exit code %d", result.ExitCode),
				result.Stderr)
		}
		log.Info("additional dependencies installed",
			"dependencies", frag.AdditionalDependencies)
	}

	path := frag.FilePath
	if path == "" {
		path = e.catalog.MainFile(frag.Template)
	}

	// The fragment is merged into the template's starter files so app
	// templates come up with their scaffolding intact.
	files := e.catalog.FilesWithFragment(frag.Template, path, frag.Code)
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		if err := sess.WriteFile(ctx, p, files[p]); err != nil {
			e.manager.Release(sess.ID())
			return nil, err
		}
	}
	log.Info("fragment files written", "path", path, "count", len(files))

	if frag.Template == api.TemplateCodeInterpreter {
		return e.runInterpreter(ctx, sess, path)
	}
	return e.preview(sess, frag)
}

// runInterpreter executes the written script and captures its output. The
// sandbox stays tracked so follow-up file operations can reconnect to it.
func (e *Executor) runInterpreter(ctx context.Context, sess *sandbox.Session, path string) (*api.ExecutionResult, error) {
	result, err := sess.RunCommand(ctx, "python "+sandbox.ToSandboxPath(path))
	if err != nil {
		return nil, err
	}

	return &api.ExecutionResult{
		SandboxID: sess.ID(),
		Template:  sess.Template(),
		Stdout:    result.Stdout,
		Stderr:    result.Stderr,
	}, nil
}

// preview builds the result for an app template. The template image watches
// the main file and serves on its declared port; the preview URL points the
// client at that port on the sandbox host.
func (e *Executor) preview(sess *sandbox.Session, frag *api.Fragment) (*api.ExecutionResult, error) {
	port := 80
	if frag.Port != nil {
		port = *frag.Port
	} else if t, ok := e.catalog.Get(frag.Template); ok && t.Port != nil {
		port = *t.Port
	}

	previewURL, err := hostWithPort(sess.URL(), port)
	if err != nil {
		return nil, api.NewRemoteExecutionError("building preview URL", err.Error())
	}

	return &api.ExecutionResult{
		SandboxID: sess.ID(),
		Template:  sess.Template(),
		URL:       previewURL,
	}, nil
}

// hostWithPort rewrites the runner base URL to point at a different port on
// the same host.
func hostWithPort(base string, port int) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s://%s:%d", u.Scheme, u.Hostname(), port), nil
}
