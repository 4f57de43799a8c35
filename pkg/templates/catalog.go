package templates

import (
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/fragmentd/fragmentd/pkg/api"
)

//go:embed manifest/templates.json
var embeddedManifest embed.FS

// Template describes one sandbox template: the libraries pre-installed in
// its image, the conventional main file, and the guidance the model gets
// about when to pick it.
type Template struct {
	ID           api.TemplateID `json:"-"`
	Name         string         `json:"name"`
	Lib          []string       `json:"lib"`
	File         string         `json:"file"`
	Instructions string         `json:"instructions"`
	Port         *int           `json:"port"`

	// Files holds starter files shipped alongside the main file, keyed by
	// relative path. Most templates have none.
	Files map[string]string `json:"files,omitempty"`
}

// Catalog is the load-once template manifest. It is built at startup and
// injected wherever template metadata is needed; lookups never touch the
// filesystem.
type Catalog struct {
	templates map[api.TemplateID]Template
	order     []api.TemplateID
}

// Load reads the manifest from path. An empty path, or a path that cannot
// be read, degrades to the embedded manifest with a warning rather than
// failing startup.
func Load(path string, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var raw []byte
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("template manifest not readable, using embedded defaults",
				"path", path, "error", err)
		} else {
			raw = b
		}
	}
	if raw == nil {
		b, err := embeddedManifest.ReadFile("manifest/templates.json")
		if err != nil {
			return nil, fmt.Errorf("reading embedded manifest: %w", err)
		}
		raw = b
	}

	return parse(raw)
}

func parse(raw []byte) (*Catalog, error) {
	var entries map[api.TemplateID]Template
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parsing template manifest: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("template manifest is empty")
	}

	c := &Catalog{templates: make(map[api.TemplateID]Template, len(entries))}
	for id, t := range entries {
		t.ID = id
		if t.File == "" {
			return nil, fmt.Errorf("template %q has no main file", id)
		}
		c.templates[id] = t
		c.order = append(c.order, id)
	}
	sort.Slice(c.order, func(i, j int) bool { return c.order[i] < c.order[j] })
	return c, nil
}

// Get returns the template with the given ID.
func (c *Catalog) Get(id api.TemplateID) (Template, bool) {
	t, ok := c.templates[id]
	return t, ok
}

// List returns all templates in stable ID order.
func (c *Catalog) List() []Template {
	out := make([]Template, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.templates[id])
	}
	return out
}

// MainFile returns the conventional main file for the template, used when
// a generated fragment omits its own file path. Unknown templates fall
// back to script.py.
func (c *Catalog) MainFile(id api.TemplateID) string {
	if t, ok := c.templates[id]; ok {
		return t.File
	}
	return "script.py"
}

// FilesWithFragment merges fragment code into the template's file manifest.
// The fragment replaces the starter content at filePath when the template
// ships one there; every other starter file is carried over unchanged. An
// empty filePath falls back to the template's main file, and an unknown
// template degrades to the fragment file alone.
func (c *Catalog) FilesWithFragment(id api.TemplateID, filePath, code string) map[string]string {
	if filePath == "" {
		filePath = c.MainFile(id)
	}
	out := map[string]string{filePath: code}

	t, ok := c.templates[id]
	if !ok {
		return out
	}
	for path, content := range t.Files {
		if path == filePath {
			continue
		}
		out[path] = content
	}
	return out
}

// SystemPrompt builds the system prompt for a generation. A known template
// pins the model to that single environment; anything else (including the
// empty "auto" selection) offers the full catalog and lets the model pick.
func (c *Catalog) SystemPrompt(template api.TemplateID) string {
	var b strings.Builder
	b.WriteString("You are a skilled software engineer.\n")
	b.WriteString("You do not make mistakes.\n")
	b.WriteString("Generate a fragment.\n")
	b.WriteString("You can install additional dependencies.\n")
	b.WriteString("Do not touch project dependencies files like package.json, package-lock.json, requirements.txt, etc.\n")
	b.WriteString("You can use one of the following templates:\n")

	if t, ok := c.templates[template]; ok {
		b.WriteString(describe(t))
	} else {
		for _, id := range c.order {
			b.WriteString(describe(c.templates[id]))
		}
	}
	return b.String()
}

func describe(t Template) string {
	port := "none"
	if t.Port != nil {
		port = fmt.Sprintf("%d", *t.Port)
	}
	return fmt.Sprintf("%s: %q. File: %s. Dependencies installed: %s. Port: %s.\n",
		t.ID, t.Instructions, t.File, strings.Join(t.Lib, ", "), port)
}
