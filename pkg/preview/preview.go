// Package preview tracks which result view a client session presents. It
// is a small guarded state machine: five mutually exclusive views whose
// availability depends on what data the generation has produced so far.
package preview

import (
	"sync"

	"github.com/fragmentd/fragmentd/pkg/api"
)

// View names one of the mutually exclusive presentation states.
type View string

const (
	// ViewCode shows the fragment source. Always selectable; the default.
	ViewCode View = "code"
	// ViewFragment shows the live app preview.
	ViewFragment View = "fragment"
	// ViewTerminal shows command output from the sandbox.
	ViewTerminal View = "terminal"
	// ViewInterpreter shows captured interpreter results.
	ViewInterpreter View = "interpreter"
	// ViewEditor shows a single workspace file for editing.
	ViewEditor View = "editor"
)

// Controller holds the current view and the data its guards depend on.
// Selecting a view whose guard fails leaves the current view unchanged.
type Controller struct {
	mu      sync.Mutex
	current View
	result  *api.ExecutionResult
	file    *api.FileContent
}

// NewController starts on the code view with no result and no file.
func NewController() *Controller {
	return &Controller{current: ViewCode}
}

// Current returns the active view.
func (c *Controller) Current() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// SetResult records the execution result of the latest generation.
func (c *Controller) SetResult(r *api.ExecutionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = r
}

// SetSelectedFile records the file opened in the editor, content loaded.
func (c *Controller) SetSelectedFile(f *api.FileContent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.file = f
}

// CanSelect reports whether the guard for v currently holds.
func (c *Controller) CanSelect(v View) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.guard(v)
}

// Select switches to v when its guard holds and returns the resulting
// view. A failed guard is a no-op: the previous view stays active.
func (c *Controller) Select(v View) View {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.guard(v) {
		c.current = v
	}
	return c.current
}

// Reset returns to the default view and forgets result and file, for the
// start of a new generation.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = ViewCode
	c.result = nil
	c.file = nil
}

func (c *Controller) guard(v View) bool {
	switch v {
	case ViewCode:
		return true
	case ViewFragment, ViewTerminal:
		return c.result != nil
	case ViewInterpreter:
		return c.result != nil && c.result.Template == api.TemplateCodeInterpreter
	case ViewEditor:
		return c.file != nil
	}
	return false
}
