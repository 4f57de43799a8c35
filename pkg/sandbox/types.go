package sandbox

// WorkingRoot is the directory inside every sandbox that maps to the
// workspace root. Workspace paths are rooted at "/" and translated to
// sandbox paths by joining onto this root.
const WorkingRoot = "/home/user"

// runFileRequest is the request body for the runner's file endpoints.
type runFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content,omitempty"`
}

// runFileResponse is the response from the runner's file read endpoint.
type runFileResponse struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// runCommandRequest is the request body for POST /commands on the runner.
type runCommandRequest struct {
	Command        string `json:"command"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// CommandResult is the outcome of a command executed in the sandbox.
// Stdout and Stderr are preserved verbatim, including trailing newlines.
type CommandResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}
