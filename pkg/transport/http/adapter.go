package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/fragmentd/fragmentd/pkg/api"
	"github.com/fragmentd/fragmentd/pkg/filetree"
	"github.com/fragmentd/fragmentd/pkg/observability"
	"github.com/fragmentd/fragmentd/pkg/sandbox"
	"github.com/fragmentd/fragmentd/pkg/storage"
	"github.com/fragmentd/fragmentd/pkg/templates"
	"github.com/fragmentd/fragmentd/pkg/transport"
)

// maxBodySize limits request bodies. Generation requests carry conversation
// history including data-URL images, so the ceiling is generous.
const maxBodySize = 10 * 1024 * 1024

// Adapter maps the REST surface onto the workspace store, sandbox sessions,
// the template catalog, and the generation handler. It owns the in-flight
// registry used by DELETE /generate/{id}.
type Adapter struct {
	handler   transport.GenerationHandler
	store     storage.WorkspaceStore
	sandboxes *sandbox.Manager
	catalog   *templates.Catalog
	billing   http.Handler
	inflight  *transport.InFlightRegistry
	logger    *slog.Logger
	mux       *http.ServeMux
}

// NewAdapter creates the route adapter. The billing handler may be nil, in
// which case the webhook route is not registered.
func NewAdapter(handler transport.GenerationHandler, store storage.WorkspaceStore, sandboxes *sandbox.Manager, catalog *templates.Catalog, billing http.Handler, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{
		handler:   handler,
		store:     store,
		sandboxes: sandboxes,
		catalog:   catalog,
		billing:   billing,
		inflight:  transport.NewInFlightRegistry(),
		logger:    logger,
		mux:       http.NewServeMux(),
	}
	a.registerRoutes()
	return a
}

// ServeHTTP implements http.Handler.
func (a *Adapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

func (a *Adapter) registerRoutes() {
	a.mux.HandleFunc("GET /healthz", a.handleHealth)
	a.mux.HandleFunc("GET /templates", a.handleTemplates)

	a.mux.HandleFunc("GET /files", a.handleWorkspaceTree)
	a.mux.HandleFunc("POST /files", a.handleWorkspaceCreate)
	a.mux.HandleFunc("DELETE /files", a.handleWorkspaceDelete)
	a.mux.HandleFunc("GET /files/content", a.handleWorkspaceRead)
	a.mux.HandleFunc("POST /files/content", a.handleWorkspaceWrite)

	a.mux.HandleFunc("GET /sandbox/{id}/files", a.handleSandboxTree)
	a.mux.HandleFunc("GET /sandbox/{id}/files/content", a.handleSandboxRead)
	a.mux.HandleFunc("POST /sandbox/{id}/files/content", a.handleSandboxWrite)

	a.mux.HandleFunc("POST /generate", a.handleGenerate)
	a.mux.HandleFunc("DELETE /generate/{id}", a.handleGenerateCancel)

	if a.billing != nil {
		a.mux.Handle("POST /webhooks/billing", a.billing)
	}
}

// ---------------------------------------------------------------------------
// Health and templates
// ---------------------------------------------------------------------------

func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.store != nil {
		if err := a.store.HealthCheck(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"reason": err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *Adapter) handleTemplates(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("templateId"); id != "" {
		t, ok := a.catalog.Get(api.TemplateID(id))
		if !ok {
			a.writeError(w, api.NewNotFoundError("unknown template "+id))
			return
		}
		writeJSON(w, http.StatusOK, map[api.TemplateID]templates.Template{t.ID: t})
		return
	}

	out := make(map[api.TemplateID]templates.Template)
	for _, t := range a.catalog.List() {
		out[t.ID] = t
	}
	writeJSON(w, http.StatusOK, out)
}

// ---------------------------------------------------------------------------
// Workspace files
// ---------------------------------------------------------------------------

// scoped applies the optional sessionID parameter as the storage scope when
// the request is not already bound to an authenticated user.
func scoped(ctx context.Context, sessionID string) context.Context {
	if sessionID == "" {
		return ctx
	}
	user := storage.GetUser(ctx)
	if user == "" || user == "anonymous" {
		return storage.SetUser(ctx, sessionID)
	}
	return ctx
}

func (a *Adapter) handleWorkspaceTree(w http.ResponseWriter, r *http.Request) {
	ctx := scoped(r.Context(), r.URL.Query().Get("sessionID"))
	observability.WorkspaceOperationsTotal.WithLabelValues("list").Inc()

	records, err := a.store.ListFiles(ctx)
	if err != nil {
		a.writeError(w, err)
		return
	}
	recs := make([]filetree.Record, len(records))
	for i, rec := range records {
		recs[i] = filetree.Record{
			Path:        rec.Path,
			Name:        rec.Name,
			IsDirectory: rec.IsDirectory,
			ParentPath:  rec.ParentPath,
		}
	}
	tree, err := filetree.FromRecords(recs)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if tree == nil {
		tree = []*api.FileNode{}
	}
	writeJSON(w, http.StatusOK, tree)
}

func (a *Adapter) handleWorkspaceCreate(w http.ResponseWriter, r *http.Request) {
	var req api.CreateFileRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Path == "" {
		a.writeError(w, api.NewInvalidRequestError("path", "path is required"))
		return
	}
	ctx := scoped(r.Context(), req.SessionID)
	observability.WorkspaceOperationsTotal.WithLabelValues("create").Inc()

	path := storage.NormalizePath(req.Path)
	parent, name := storage.SplitPath(path)
	rec := &storage.FileRecord{
		Path:        path,
		Name:        name,
		ParentPath:  parent,
		IsDirectory: req.IsDirectory,
		Content:     req.Content,
	}
	if err := a.store.CreateFile(ctx, rec); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.FileContent{
		Path:    path,
		Name:    name,
		Content: rec.Content,
	})
}

func (a *Adapter) handleWorkspaceDelete(w http.ResponseWriter, r *http.Request) {
	var req api.DeleteFileRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Path == "" {
		a.writeError(w, api.NewInvalidRequestError("path", "path is required"))
		return
	}
	ctx := scoped(r.Context(), req.SessionID)
	observability.WorkspaceOperationsTotal.WithLabelValues("delete").Inc()

	opts := storage.DeleteOptions{DeepCascade: r.URL.Query().Get("deep") == "true"}
	removed, err := a.store.DeleteFile(ctx, req.Path, opts)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": removed})
}

func (a *Adapter) handleWorkspaceRead(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		a.writeError(w, api.NewInvalidRequestError("path", "path is required"))
		return
	}
	ctx := scoped(r.Context(), r.URL.Query().Get("sessionID"))
	observability.WorkspaceOperationsTotal.WithLabelValues("read").Inc()

	rec, err := a.store.GetFile(ctx, path)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if rec.IsDirectory {
		a.writeError(w, api.NewInvalidRequestError("path", "path is a directory"))
		return
	}
	writeJSON(w, http.StatusOK, api.FileContent{
		Path:    rec.Path,
		Name:    rec.Name,
		Content: rec.Content,
	})
}

func (a *Adapter) handleWorkspaceWrite(w http.ResponseWriter, r *http.Request) {
	var req api.WriteContentRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Path == "" {
		a.writeError(w, api.NewInvalidRequestError("path", "path is required"))
		return
	}
	ctx := scoped(r.Context(), req.SessionID)
	observability.WorkspaceOperationsTotal.WithLabelValues("write").Inc()

	if err := a.store.WriteContent(ctx, req.Path, req.Content); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"saved": true})
}

// ---------------------------------------------------------------------------
// Sandbox files
// ---------------------------------------------------------------------------

func (a *Adapter) handleSandboxTree(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	tree, err := sess.ListTree(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (a *Adapter) handleSandboxRead(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		a.writeError(w, api.NewInvalidRequestError("path", "path is required"))
		return
	}
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	content, err := sess.ReadFile(r.Context(), path)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FileContent{Path: path, Content: content})
}

func (a *Adapter) handleSandboxWrite(w http.ResponseWriter, r *http.Request) {
	var req api.WriteContentRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Path == "" {
		a.writeError(w, api.NewInvalidRequestError("path", "path is required"))
		return
	}
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	if err := sess.WriteFile(r.Context(), req.Path, req.Content); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"saved": true})
}

// session resolves the sandbox session for the {id} path parameter. On
// failure the error response has already been written.
func (a *Adapter) session(w http.ResponseWriter, r *http.Request) (*sandbox.Session, bool) {
	id := r.PathValue("id")
	if id == "" {
		a.writeError(w, api.NewInvalidRequestError("id", "sandbox id is required"))
		return nil, false
	}
	sess, err := a.sandboxes.Connect(r.Context(), id)
	if err != nil {
		a.writeError(w, err)
		return nil, false
	}
	return sess, true
}

// ---------------------------------------------------------------------------
// Generation
// ---------------------------------------------------------------------------

func (a *Adapter) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req api.GenerateRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.UserID == "" {
		req.UserID = storage.GetUser(r.Context())
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var startedID string
	sse := NewSSEWriter(w)
	sse.onStarted = func(id string) {
		startedID = id
		a.inflight.Register(id, cancel)
	}

	err := a.handler.Generate(ctx, &req, sse)
	if startedID != "" {
		a.inflight.Remove(startedID)
	}
	if err != nil {
		if sse.Started() {
			// Headers are committed; the stream already carried its own
			// terminal event, so there is nothing sensible left to write.
			a.logger.Error("generation failed mid-stream", "error", err)
			return
		}
		a.writeError(w, err)
	}
}

func (a *Adapter) handleGenerateCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !a.inflight.Cancel(id) {
		a.writeError(w, api.NewNotFoundError("no in-flight generation "+id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// decode reads and unmarshals a JSON request body. On failure the error
// response has already been written.
func (a *Adapter) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.writeError(w, api.NewInvalidRequestError("body",
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)))
			return false
		}
		a.writeError(w, api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()))
		return false
	}
	return true
}

// writeError maps an error to the JSON error envelope. Storage sentinels are
// translated to API error types; anything unrecognized becomes a server error.
func (a *Adapter) writeError(w http.ResponseWriter, err error) {
	apiErr := toAPIError(err)
	if apiErr.Type == api.ErrorTypeServerError {
		a.logger.Error("request failed", "error", err)
	}
	transport.WriteAPIError(w, apiErr)
}

func toAPIError(err error) *api.APIError {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return api.NewNotFoundError(err.Error())
	case errors.Is(err, storage.ErrConflict):
		return api.NewInvalidRequestError("path", err.Error())
	}
	return api.NewServerError(err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
