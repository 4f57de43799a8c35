package templates

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fragmentd/fragmentd/pkg/api"
	"github.com/fragmentd/fragmentd/pkg/fragment"
)

var _ fragment.PromptSource = (*Catalog)(nil)

func TestLoad_EmbeddedDefaults(t *testing.T) {
	c, err := Load("", slog.Default())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := len(c.List()); got != len(api.KnownTemplates) {
		t.Errorf("catalog has %d templates, want %d", got, len(api.KnownTemplates))
	}
	for _, id := range api.KnownTemplates {
		if _, ok := c.Get(id); !ok {
			t.Errorf("template %q missing from embedded manifest", id)
		}
	}
}

func TestLoad_MissingPathDegrades(t *testing.T) {
	c, err := Load("/nonexistent/templates.json", slog.Default())
	if err != nil {
		t.Fatalf("Load should degrade to embedded defaults, got %v", err)
	}
	if _, ok := c.Get(api.TemplateStreamlit); !ok {
		t.Error("degraded catalog missing streamlit template")
	}
}

func TestLoad_CustomManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.json")
	manifest := `{"code-interpreter-v1": {"name": "custom", "lib": ["python"], "file": "run.py", "instructions": "x", "port": null}}`
	if err := os.WriteFile(path, []byte(manifest), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path, slog.Default())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	tmpl, ok := c.Get(api.TemplateCodeInterpreter)
	if !ok {
		t.Fatal("custom template missing")
	}
	if tmpl.Name != "custom" || tmpl.File != "run.py" {
		t.Errorf("template = %+v", tmpl)
	}
	if len(c.List()) != 1 {
		t.Errorf("custom manifest should replace, not merge: %d templates", len(c.List()))
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := parse([]byte("{}")); err == nil {
		t.Error("empty manifest should fail")
	}
	if _, err := parse([]byte("not json")); err == nil {
		t.Error("malformed manifest should fail")
	}
	if _, err := parse([]byte(`{"t": {"name": "x"}}`)); err == nil {
		t.Error("template without a main file should fail")
	}
}

func TestMainFile(t *testing.T) {
	c, _ := Load("", slog.Default())

	tests := []struct {
		id   api.TemplateID
		want string
	}{
		{api.TemplateCodeInterpreter, "script.py"},
		{api.TemplateNextJS, "pages/index.tsx"},
		{api.TemplateVue, "app.vue"},
		{api.TemplateStreamlit, "app.py"},
		{api.TemplateGradio, "app.py"},
		{"unknown", "script.py"},
	}
	for _, tt := range tests {
		if got := c.MainFile(tt.id); got != tt.want {
			t.Errorf("MainFile(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestFilesWithFragment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.json")
	manifest := `{"nextjs-developer": {
		"name": "nextjs", "lib": ["nextjs"], "file": "pages/index.tsx",
		"instructions": "x", "port": 3000,
		"files": {
			"pages/index.tsx": "export default () => null",
			"styles/globals.css": "body {}"
		}
	}}`
	if err := os.WriteFile(path, []byte(manifest), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path, slog.Default())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// The fragment replaces the starter main file; other starters carry over.
	files := c.FilesWithFragment(api.TemplateNextJS, "pages/index.tsx", "export default Page")
	if got := files["pages/index.tsx"]; got != "export default Page" {
		t.Errorf("main file = %q, want fragment code", got)
	}
	if got := files["styles/globals.css"]; got != "body {}" {
		t.Errorf("starter file = %q, want carried over", got)
	}
	if len(files) != 2 {
		t.Errorf("got %d files, want 2", len(files))
	}

	// An empty path falls back to the template's main file.
	files = c.FilesWithFragment(api.TemplateNextJS, "", "code")
	if files["pages/index.tsx"] != "code" {
		t.Errorf("fallback main file = %q", files["pages/index.tsx"])
	}

	// An unknown template degrades to the fragment file alone.
	files = c.FilesWithFragment("mystery", "run.py", "print(1)")
	if len(files) != 1 || files["run.py"] != "print(1)" {
		t.Errorf("unknown template files = %v", files)
	}
}

func TestSystemPrompt_PinnedTemplate(t *testing.T) {
	c, _ := Load("", slog.Default())

	prompt := c.SystemPrompt(api.TemplateStreamlit)
	if !strings.Contains(prompt, "streamlit-developer") {
		t.Error("prompt should describe the pinned template")
	}
	if strings.Contains(prompt, "nextjs-developer") {
		t.Error("pinned prompt should not offer other templates")
	}
	if !strings.Contains(prompt, "Port: 8501") {
		t.Errorf("prompt missing port: %q", prompt)
	}
}

func TestSystemPrompt_AutoListsAll(t *testing.T) {
	c, _ := Load("", slog.Default())

	prompt := c.SystemPrompt("")
	for _, id := range api.KnownTemplates {
		if !strings.Contains(prompt, string(id)) {
			t.Errorf("auto prompt missing template %q", id)
		}
	}
	if !strings.Contains(prompt, "Port: none") {
		t.Error("portless template should read Port: none")
	}
}
