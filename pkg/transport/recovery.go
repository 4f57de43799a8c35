package transport

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/fragmentd/fragmentd/pkg/api"
)

// Recovery returns middleware that catches panics in the handler and
// converts them to server error responses. The panic is logged with its
// stack so the crash site is not lost, and the server keeps accepting
// requests.
func Recovery() Middleware {
	return func(next GenerationHandler) GenerationHandler {
		return GenerationHandlerFunc(func(ctx context.Context, req *api.GenerateRequest, w EventWriter) (retErr error) {
			defer func() {
				if r := recover(); r != nil {
					slog.LogAttrs(ctx, slog.LevelError, "panic recovered in generation handler",
						slog.String("request_id", RequestIDFromContext(ctx)),
						slog.Any("panic", r),
						slog.String("stack", string(debug.Stack())),
					)
					retErr = api.NewServerError(fmt.Sprintf("internal server error: %v", r))
				}
			}()
			return next.Generate(ctx, req, w)
		})
	}
}
