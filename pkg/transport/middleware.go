package transport

import "context"

// Middleware wraps a GenerationHandler with cross-cutting behavior such
// as panic recovery, request IDs, or logging.
type Middleware func(GenerationHandler) GenerationHandler

// Chain composes middleware left to right: Chain(a, b, c) produces
// a(b(c(handler))), so a runs first on the way in and last on the way out.
func Chain(middlewares ...Middleware) Middleware {
	return func(next GenerationHandler) GenerationHandler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// requestIDKeyType is the context key type for request IDs.
type requestIDKeyType struct{}

var requestIDKey = requestIDKeyType{}

// RequestIDFromContext extracts the request ID from the context.
// Returns an empty string if no request ID is set.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithRequestID returns a new context with the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}
