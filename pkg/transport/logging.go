package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/fragmentd/fragmentd/pkg/api"
)

// Logging returns middleware that emits structured log entries for each
// generation request: request ID, template, model, duration, and outcome.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next GenerationHandler) GenerationHandler {
		return GenerationHandlerFunc(func(ctx context.Context, req *api.GenerateRequest, w EventWriter) error {
			start := time.Now()
			requestID := RequestIDFromContext(ctx)

			err := next.Generate(ctx, req, w)

			attrs := []slog.Attr{
				slog.String("request_id", requestID),
				slog.String("template", string(req.Template)),
				slog.String("model", req.Model),
				slog.Duration("duration", time.Since(start)),
			}

			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "generation failed", attrs...)
			} else {
				logger.LogAttrs(ctx, slog.LevelInfo, "generation completed", attrs...)
			}

			return err
		})
	}
}
