package engine

import (
	"context"
	"log/slog"

	"github.com/fragmentd/fragmentd/pkg/api"
	"github.com/fragmentd/fragmentd/pkg/fragment"
	"github.com/fragmentd/fragmentd/pkg/observability"
	"github.com/fragmentd/fragmentd/pkg/transport"
)

// Service implements the transport generation contract by driving the
// fragment consumer. It forwards every stream event to the writer and
// records generation outcome metrics from the terminal event.
type Service struct {
	consumer *fragment.Consumer
	logger   *slog.Logger
}

// Ensure Service implements GenerationHandler at compile time.
var _ transport.GenerationHandler = (*Service)(nil)

// NewService creates a Service around the fragment consumer.
func NewService(consumer *fragment.Consumer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{consumer: consumer, logger: logger}
}

// Generate starts a generation and streams its events to the writer. The
// event channel is drained to the end even after a write failure so the
// consumer goroutine always reaches its terminal event.
func (s *Service) Generate(ctx context.Context, req *api.GenerateRequest, w transport.EventWriter) error {
	gen, err := s.consumer.Start(ctx, req)
	if err != nil {
		observability.GenerationsTotal.WithLabelValues("rejected").Inc()
		return err
	}

	var writeErr error
	for ev := range gen.Events {
		s.record(ev)
		if writeErr != nil {
			continue
		}
		if err := w.WriteEvent(ctx, ev); err != nil {
			writeErr = err
			s.logger.Debug("client disconnected, cancelling generation",
				"generation_id", gen.ID, "error", err)
			gen.Cancel()
		}
	}

	return nil
}

// record increments outcome counters for terminal events and classified
// stream error counters for failures.
func (s *Service) record(ev api.StreamEvent) {
	switch ev.Type {
	case api.EventGenerationCompleted:
		observability.GenerationsTotal.WithLabelValues("completed").Inc()
	case api.EventGenerationCancelled:
		observability.GenerationsTotal.WithLabelValues("cancelled").Inc()
	case api.EventGenerationFailed:
		observability.GenerationsTotal.WithLabelValues("failed").Inc()
		if ev.Error != nil && ev.Error.Code != "" {
			observability.StreamErrorsTotal.WithLabelValues(string(ev.Error.Code)).Inc()
		}
	}
}
