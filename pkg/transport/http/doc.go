// Package http provides the HTTP/SSE transport: the route adapter mapping
// REST endpoints to the workspace store, sandbox sessions, and the
// generation stream, the SSE writer with its idle/streaming/completed
// state machine, and the server with graceful shutdown.
package http
