package sandbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fragmentd/fragmentd/pkg/api"
)

func TestPathTranslation(t *testing.T) {
	tests := []struct {
		name      string
		workspace string
		sandbox   string
	}{
		{"leading slash", "/app.py", "/home/user/app.py"},
		{"no leading slash", "app.py", "/home/user/app.py"},
		{"nested", "/src/lib/util.py", "/home/user/src/lib/util.py"},
		{"root", "/", "/home/user"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToSandboxPath(tt.workspace); got != tt.sandbox {
				t.Errorf("ToSandboxPath(%q) = %q, want %q", tt.workspace, got, tt.sandbox)
			}
		})
	}
}

func TestFromSandboxPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/home/user/app.py", "/app.py"},
		{"/home/user/src/lib/util.py", "/src/lib/util.py"},
		{"/home/user", "/"},
		{"/etc/passwd", "/etc/passwd"}, // outside the root, untouched
	}

	for _, tt := range tests {
		if got := FromSandboxPath(tt.in); got != tt.want {
			t.Errorf("FromSandboxPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPathTranslation_RoundTrip(t *testing.T) {
	// Translating in both directions yields the leading-slash form
	// regardless of how the input was spelled.
	for _, p := range []string{"/app.py", "app.py", "/a/b/c.txt", "a/b/c.txt"} {
		got := FromSandboxPath(ToSandboxPath(p))
		want := "/" + strings.TrimPrefix(p, "/")
		if got != want {
			t.Errorf("round trip of %q = %q, want %q", p, got, want)
		}
	}
}

// runnerStub serves the runner REST API from in-memory state.
func runnerStub(t *testing.T, files map[string]string, cmdResult *CommandResult) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/files/read", func(w http.ResponseWriter, r *http.Request) {
		var req runFileRequest
		json.NewDecoder(r.Body).Decode(&req)
		content, ok := files[req.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(runFileResponse{Path: req.Path, Content: content})
	})
	mux.HandleFunc("/files/write", func(w http.ResponseWriter, r *http.Request) {
		var req runFileRequest
		json.NewDecoder(r.Body).Decode(&req)
		files[req.Path] = req.Content
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/commands", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(cmdResult)
	})
	return httptest.NewServer(mux)
}

func TestSession_ReadFile_TranslatesPath(t *testing.T) {
	files := map[string]string{"/home/user/app.py": "print('hi')\n"}
	srv := runnerStub(t, files, nil)
	defer srv.Close()

	sess := NewSession("sbx-1", api.TemplateStreamlit, srv.URL, NewRunnerClient(), nil)

	// Both spellings resolve to the same sandbox file.
	for _, p := range []string{"/app.py", "app.py"} {
		content, err := sess.ReadFile(context.Background(), p)
		if err != nil {
			t.Fatalf("ReadFile(%q) failed: %v", p, err)
		}
		if content != "print('hi')\n" {
			t.Errorf("ReadFile(%q) = %q", p, content)
		}
	}
}

func TestSession_ReadFile_NotFound(t *testing.T) {
	srv := runnerStub(t, map[string]string{}, nil)
	defer srv.Close()

	sess := NewSession("sbx-1", api.TemplateStreamlit, srv.URL, NewRunnerClient(), nil)

	_, err := sess.ReadFile(context.Background(), "/missing.py")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	apiErr, ok := err.(*api.APIError)
	if !ok || apiErr.Type != api.ErrorTypeNotFound {
		t.Errorf("error = %v, want not_found", err)
	}
}

func TestSession_WriteThenRead(t *testing.T) {
	files := map[string]string{}
	srv := runnerStub(t, files, nil)
	defer srv.Close()

	sess := NewSession("sbx-1", api.TemplateNextJS, srv.URL, NewRunnerClient(), nil)

	if err := sess.WriteFile(context.Background(), "/pages/index.tsx", "export default ..."); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if files["/home/user/pages/index.tsx"] != "export default ..." {
		t.Errorf("runner stored %v, want file under /home/user", files)
	}

	content, err := sess.ReadFile(context.Background(), "pages/index.tsx")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if content != "export default ..." {
		t.Errorf("content = %q", content)
	}
}

func TestSession_RunCommand_PreservesStderr(t *testing.T) {
	result := &CommandResult{
		Stdout:   "partial output\n",
		Stderr:   "Traceback (most recent call last):\n  ValueError: bad input\n",
		ExitCode: 1,
	}
	srv := runnerStub(t, nil, result)
	defer srv.Close()

	sess := NewSession("sbx-1", api.TemplateCodeInterpreter, srv.URL, NewRunnerClient(), nil)

	got, err := sess.RunCommand(context.Background(), "python script.py")
	if err != nil {
		t.Fatalf("RunCommand failed: %v", err)
	}
	if got.Stderr != result.Stderr {
		t.Errorf("stderr = %q, want verbatim %q", got.Stderr, result.Stderr)
	}
	if got.ExitCode != 1 {
		t.Errorf("exit code = %d, want 1 (non-zero exit is not an error)", got.ExitCode)
	}
}

func TestSession_ListTree(t *testing.T) {
	result := &CommandResult{
		Stdout: strings.Join([]string{
			"/home/user",
			"/home/user/app.py",
			"/home/user/data",
			"/home/user/data/input.csv",
		}, "\n"),
	}
	srv := runnerStub(t, nil, result)
	defer srv.Close()

	sess := NewSession("sbx-1", api.TemplateCodeInterpreter, srv.URL, NewRunnerClient(), nil)

	forest, err := sess.ListTree(context.Background())
	if err != nil {
		t.Fatalf("ListTree failed: %v", err)
	}
	if len(forest) != 2 {
		t.Fatalf("got %d roots, want 2", len(forest))
	}
	if forest[0].Path != "/app.py" || forest[1].Path != "/data" {
		t.Errorf("roots = [%s %s]", forest[0].Path, forest[1].Path)
	}
	if !forest[1].IsDirectory || forest[1].Children[0].Path != "/data/input.csv" {
		t.Errorf("data subtree = %+v", forest[1])
	}
}

func TestSession_OperationBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Second)
	}))
	defer srv.Close()

	sess := NewSession("sbx-1", api.TemplateCodeInterpreter, srv.URL, NewRunnerClient(), nil)
	sess.timeout = 100 * time.Millisecond

	_, err := sess.RunCommand(context.Background(), "sleep 10")
	if err == nil {
		t.Fatal("expected budget error, got nil")
	}
	apiErr, ok := err.(*api.APIError)
	if !ok || apiErr.Type != api.ErrorTypeRemoteExecution {
		t.Errorf("error = %v, want remote_execution", err)
	}
	if !strings.Contains(apiErr.Message, "budget") {
		t.Errorf("message = %q, want budget mention", apiErr.Message)
	}
}

func TestSession_Close_CallsRelease(t *testing.T) {
	released := false
	sess := NewSession("sbx-1", api.TemplateVue, "http://localhost:1", NewRunnerClient(), func() {
		released = true
	})

	sess.Close()
	if !released {
		t.Error("release not called")
	}
}
