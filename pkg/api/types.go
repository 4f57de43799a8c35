package api

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Templates
// ---------------------------------------------------------------------------

// TemplateID names a sandbox template describing the language/runtime and
// starter files for a fragment's execution environment.
type TemplateID string

const (
	TemplateCodeInterpreter TemplateID = "code-interpreter-v1"
	TemplateNextJS          TemplateID = "nextjs-developer"
	TemplateVue             TemplateID = "vue-developer"
	TemplateStreamlit       TemplateID = "streamlit-developer"
	TemplateGradio          TemplateID = "gradio-developer"
)

// KnownTemplates lists every template the gateway can provision.
var KnownTemplates = []TemplateID{
	TemplateCodeInterpreter,
	TemplateNextJS,
	TemplateVue,
	TemplateStreamlit,
	TemplateGradio,
}

// IsKnownTemplate reports whether t names a provisionable template.
func IsKnownTemplate(t TemplateID) bool {
	for _, k := range KnownTemplates {
		if k == t {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Fragment
// ---------------------------------------------------------------------------

// Fragment is the streamed, self-describing code artifact produced
// incrementally by the model. During streaming every field may be absent
// or partially filled; each emission fully replaces prior field values
// (whole-field replace, never text-diff append).
type Fragment struct {
	Commentary                string     `json:"commentary,omitempty"`
	Template                  TemplateID `json:"template,omitempty"`
	Title                     string     `json:"title,omitempty"`
	Description               string     `json:"description,omitempty"`
	Code                      string     `json:"code,omitempty"`
	FilePath                  string     `json:"file_path,omitempty"`
	Port                      *int       `json:"port,omitempty"`
	AdditionalDependencies    []string   `json:"additional_dependencies,omitempty"`
	InstallDependenciesCmd    string     `json:"install_dependencies_command,omitempty"`
	HasAdditionalDependencies bool       `json:"has_additional_dependencies,omitempty"`
}

// IsComplete reports whether the fragment carries everything needed to
// provision a sandbox: a known template, a file path, and code.
func (f *Fragment) IsComplete() bool {
	return f != nil && IsKnownTemplate(f.Template) && f.FilePath != "" && f.Code != ""
}

// ExecutionResult is produced once per successful sandbox provisioning.
// It carries the sandbox identifier and template tag forward into the
// preview view-selection logic; everything else is opaque to the core.
type ExecutionResult struct {
	SandboxID string     `json:"sbxId"`
	Template  TemplateID `json:"template"`
	URL       string     `json:"url,omitempty"`
	Stdout    string     `json:"stdout,omitempty"`
	Stderr    string     `json:"stderr,omitempty"`
}

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

// MessageRole represents the role of a message sender.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ContentKind identifies the kind of a message content part. The set is
// closed: text, code, and image are the only kinds the client renders.
type ContentKind string

const (
	ContentText  ContentKind = "text"
	ContentCode  ContentKind = "code"
	ContentImage ContentKind = "image"
)

// ContentPart is one part of a message. Text carries text and code parts;
// Image carries a data URL or remote URL.
type ContentPart struct {
	Type  ContentKind `json:"type"`
	Text  string      `json:"text,omitempty"`
	Image string      `json:"image,omitempty"`
}

// UnmarshalJSON validates the content kind against the closed set rather
// than trusting the incoming shape.
func (p *ContentPart) UnmarshalJSON(data []byte) error {
	type wire ContentPart
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Type {
	case ContentText, ContentCode, ContentImage:
	default:
		return fmt.Errorf("unknown content part type %q", w.Type)
	}
	*p = ContentPart(w)
	return nil
}

// Message is one entry in the conversation history. History is append-only
// except for the in-place replacement of the most recent assistant message
// while its fragment is still streaming.
type Message struct {
	ID      string        `json:"id"`
	Role    MessageRole   `json:"role"`
	Content []ContentPart `json:"content"`

	Fragment *Fragment        `json:"fragment,omitempty"`
	Result   *ExecutionResult `json:"result,omitempty"`
}

// ---------------------------------------------------------------------------
// File tree
// ---------------------------------------------------------------------------

// FileNode is one node of a reconstructed file tree. A node with Children
// nil is a leaf file; a directory's Children slice is populated on
// construction and never partially filled. Trees are rebuilt wholesale on
// each refresh, never mutated in place.
type FileNode struct {
	Name        string      `json:"name"`
	Path        string      `json:"path"`
	IsDirectory bool        `json:"isDirectory"`
	Children    []*FileNode `json:"children,omitempty"`
}

// MarshalJSON ensures a directory always carries a children array (never
// null, never absent) while a leaf file omits the key entirely.
func (n FileNode) MarshalJSON() ([]byte, error) {
	type wireLeaf struct {
		Name        string `json:"name"`
		Path        string `json:"path"`
		IsDirectory bool   `json:"isDirectory"`
	}
	if !n.IsDirectory {
		return json.Marshal(wireLeaf{Name: n.Name, Path: n.Path})
	}

	type wireDir struct {
		Name        string      `json:"name"`
		Path        string      `json:"path"`
		IsDirectory bool        `json:"isDirectory"`
		Children    []*FileNode `json:"children"`
	}
	w := wireDir{Name: n.Name, Path: n.Path, IsDirectory: true, Children: n.Children}
	if w.Children == nil {
		w.Children = []*FileNode{}
	}
	return json.Marshal(w)
}

// ---------------------------------------------------------------------------
// Requests
// ---------------------------------------------------------------------------

// GenerateRequest is the body of POST /generate.
type GenerateRequest struct {
	UserID   string        `json:"userID"`
	Messages []Message     `json:"messages"`
	Template TemplateID    `json:"template,omitempty"` // empty means "auto"
	Model    string        `json:"model,omitempty"`
	Config   *ModelConfig  `json:"config,omitempty"`
}

// ModelConfig carries per-request sampling settings passed through to the
// model backend.
type ModelConfig struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"topP,omitempty"`
	MaxTokens   *int     `json:"maxTokens,omitempty"`
}

// CreateFileRequest is the body of POST /files.
type CreateFileRequest struct {
	SessionID   string `json:"sessionID"`
	Path        string `json:"path"`
	IsDirectory bool   `json:"isDirectory"`
	Content     string `json:"content,omitempty"`
}

// DeleteFileRequest is the body of DELETE /files.
type DeleteFileRequest struct {
	SessionID string `json:"sessionID"`
	Path      string `json:"path"`
}

// WriteContentRequest is the body of POST /files/content and
// POST /sandbox/{id}/files/content.
type WriteContentRequest struct {
	SessionID string `json:"sessionID,omitempty"`
	Path      string `json:"path"`
	Content   string `json:"content"`
}

// FileContent is the response for file content reads.
type FileContent struct {
	Path    string `json:"path"`
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}
