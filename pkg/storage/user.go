package storage

import "context"

// userKey is a private type for the user context key, preventing
// collisions with other packages.
type userKey struct{}

// SetUser injects a user identifier into the context. Every store
// operation is scoped to the user carried by its context.
func SetUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// GetUser extracts the user identifier from the context.
// Returns an empty string if no user is set (single-user mode).
func GetUser(ctx context.Context) string {
	if v, ok := ctx.Value(userKey{}).(string); ok {
		return v
	}
	return ""
}
