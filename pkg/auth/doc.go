// Package auth provides request authentication for the fragmentd gateway.
//
// Authenticators vote with a three-outcome decision (Yes, No, Abstain) and
// are evaluated as a chain; the first non-abstaining vote wins. The
// authenticated user identifier is injected into the request context and
// scopes all workspace storage access.
package auth
