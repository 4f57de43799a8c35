// Package sandbox manages remote execution environments: connecting to or
// provisioning a sandbox for a workspace, translating workspace paths into
// the sandbox filesystem, and running file and command operations against
// the sandbox runner's REST API.
package sandbox
