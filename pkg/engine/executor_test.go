package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fragmentd/fragmentd/pkg/api"
	"github.com/fragmentd/fragmentd/pkg/sandbox"
	"github.com/fragmentd/fragmentd/pkg/templates"
)

// runnerStub serves the runner REST API from in-memory state and records
// executed commands.
type runnerStub struct {
	mu       sync.Mutex
	files    map[string]string
	commands []string
	results  map[string]*sandbox.CommandResult
	srv      *httptest.Server
}

func newRunnerStub(t *testing.T) *runnerStub {
	t.Helper()
	s := &runnerStub{
		files:   make(map[string]string),
		results: make(map[string]*sandbox.CommandResult),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/files/write", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Path    string `json:"path"`
			Content string `json:"content"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		s.mu.Lock()
		s.files[req.Path] = req.Content
		s.mu.Unlock()
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/commands", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Command string `json:"command"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		s.mu.Lock()
		s.commands = append(s.commands, req.Command)
		result, ok := s.results[req.Command]
		s.mu.Unlock()
		if !ok {
			result = &sandbox.CommandResult{ExitCode: 0}
		}
		json.NewEncoder(w).Encode(result)
	})

	s.srv = httptest.NewServer(mux)
	t.Cleanup(s.srv.Close)
	return s
}

func (s *runnerStub) fileContent(path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.files[path]
	return c, ok
}

func (s *runnerStub) ranCommands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func newExecutor(t *testing.T, stub *runnerStub) *Executor {
	t.Helper()
	catalog, err := templates.Load("", slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	manager := sandbox.NewManager(sandbox.NewStaticProvisioner(stub.srv.URL))
	t.Cleanup(manager.Close)
	return New(manager, catalog, slog.Default())
}

func streamlitFragment() *api.Fragment {
	port := 8501
	return &api.Fragment{
		Template: api.TemplateStreamlit,
		Title:    "Dashboard",
		Code:     "import streamlit as st\nst.title('hi')\n",
		FilePath: "app.py",
		Port:     &port,
	}
}

func TestExecute_WritesCodeUnderWorkingRoot(t *testing.T) {
	stub := newRunnerStub(t)
	ex := newExecutor(t, stub)

	result, err := ex.Execute(context.Background(), "user-1", streamlitFragment())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	content, ok := stub.fileContent("/home/user/app.py")
	if !ok {
		t.Fatal("code was not written to /home/user/app.py")
	}
	if !strings.Contains(content, "st.title") {
		t.Errorf("written content = %q", content)
	}
	if result.SandboxID == "" {
		t.Error("result missing sandbox ID")
	}
	if result.Template != api.TemplateStreamlit {
		t.Errorf("template = %q", result.Template)
	}
}

func TestExecute_WritesTemplateStarterFiles(t *testing.T) {
	stub := newRunnerStub(t)

	manifest := `{"streamlit-developer": {
		"name": "streamlit", "lib": ["streamlit"], "file": "app.py",
		"instructions": "x", "port": 8501,
		"files": {"requirements.txt": "streamlit\n"}
	}}`
	path := filepath.Join(t.TempDir(), "templates.json")
	if err := os.WriteFile(path, []byte(manifest), 0o600); err != nil {
		t.Fatal(err)
	}
	catalog, err := templates.Load(path, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	manager := sandbox.NewManager(sandbox.NewStaticProvisioner(stub.srv.URL))
	t.Cleanup(manager.Close)
	ex := New(manager, catalog, slog.Default())

	if _, err := ex.Execute(context.Background(), "user-1", streamlitFragment()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if content, ok := stub.fileContent("/home/user/app.py"); !ok || !strings.Contains(content, "st.title") {
		t.Errorf("main file content = %q, %v", content, ok)
	}
	if content, ok := stub.fileContent("/home/user/requirements.txt"); !ok || content != "streamlit\n" {
		t.Errorf("starter file content = %q, %v", content, ok)
	}
}

func TestExecute_PreviewURLUsesFragmentPort(t *testing.T) {
	stub := newRunnerStub(t)
	ex := newExecutor(t, stub)

	result, err := ex.Execute(context.Background(), "user-1", streamlitFragment())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.HasSuffix(result.URL, ":8501") {
		t.Errorf("preview URL = %q, want port 8501", result.URL)
	}
	if result.Stdout != "" || result.Stderr != "" {
		t.Error("app fragments should not carry interpreter output")
	}
}

func TestExecute_PreviewPortFallsBackToTemplate(t *testing.T) {
	stub := newRunnerStub(t)
	ex := newExecutor(t, stub)

	frag := streamlitFragment()
	frag.Port = nil

	result, err := ex.Execute(context.Background(), "user-1", frag)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.HasSuffix(result.URL, ":8501") {
		t.Errorf("preview URL = %q, want template port 8501", result.URL)
	}
}

func TestExecute_InterpreterCapturesOutput(t *testing.T) {
	stub := newRunnerStub(t)
	stub.results["python /home/user/script.py"] = &sandbox.CommandResult{
		Stdout:   "42\n",
		Stderr:   "warning: deprecated\n",
		ExitCode: 0,
	}
	ex := newExecutor(t, stub)

	frag := &api.Fragment{
		Template: api.TemplateCodeInterpreter,
		Code:     "print(42)\n",
		FilePath: "script.py",
	}

	result, err := ex.Execute(context.Background(), "user-1", frag)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Stdout != "42\n" {
		t.Errorf("stdout = %q", result.Stdout)
	}
	if result.Stderr != "warning: deprecated\n" {
		t.Errorf("stderr = %q", result.Stderr)
	}
	if result.URL != "" {
		t.Error("interpreter fragments should not carry a preview URL")
	}
}

func TestExecute_InstallsAdditionalDependencies(t *testing.T) {
	stub := newRunnerStub(t)
	ex := newExecutor(t, stub)

	frag := streamlitFragment()
	frag.HasAdditionalDependencies = true
	frag.AdditionalDependencies = []string{"altair"}
	frag.InstallDependenciesCmd = "pip install altair"

	if _, err := ex.Execute(context.Background(), "user-1", frag); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	ran := stub.ranCommands()
	if len(ran) != 1 || ran[0] != "pip install altair" {
		t.Errorf("commands = %v, want the install command", ran)
	}
}

func TestExecute_InstallFailureAborts(t *testing.T) {
	stub := newRunnerStub(t)
	stub.results["pip install ghost"] = &sandbox.CommandResult{
		Stderr:   "No matching distribution found for ghost",
		ExitCode: 1,
	}
	ex := newExecutor(t, stub)

	frag := streamlitFragment()
	frag.HasAdditionalDependencies = true
	frag.InstallDependenciesCmd = "pip install ghost"

	_, err := ex.Execute(context.Background(), "user-1", frag)
	if err == nil {
		t.Fatal("expected install failure to abort execution")
	}
	apiErr, ok := err.(*api.APIError)
	if !ok || apiErr.Type != api.ErrorTypeRemoteExecution {
		t.Errorf("error = %v, want remote_execution", err)
	}
	if !strings.Contains(apiErr.Details, "No matching distribution") {
		t.Errorf("details should surface stderr verbatim, got %q", apiErr.Details)
	}

	if _, ok := stub.fileContent("/home/user/app.py"); ok {
		t.Error("code must not be written after a failed install")
	}
}

func TestExecute_IncompleteFragmentRejected(t *testing.T) {
	stub := newRunnerStub(t)
	ex := newExecutor(t, stub)

	_, err := ex.Execute(context.Background(), "user-1", &api.Fragment{
		Template: api.TemplateStreamlit,
	})
	if err == nil {
		t.Fatal("expected error for incomplete fragment")
	}
	apiErr, ok := err.(*api.APIError)
	if !ok || apiErr.Type != api.ErrorTypeInvalidRequest {
		t.Errorf("error = %v, want invalid_request", err)
	}
}
