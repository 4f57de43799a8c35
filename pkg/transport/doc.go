// Package transport defines the handler contracts between the HTTP layer
// and the generation core: the event writer abstraction, the middleware
// chain, the in-flight generation registry used for explicit cancellation,
// and the error-to-status mapping.
package transport
