package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/events"
)

// LogSink emits structured logs for debugging pipeline event streams. It is
// useful during development or audits where a metrics backend is unavailable.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []events.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("project_id", evt.ProjectID),
			zap.String("page_id", evt.PageID),
			zap.String("kind", string(evt.Kind)),
			zap.String("stage", evt.Stage),
			zap.Int("pages", evt.Pages),
			zap.Duration("dur", evt.Dur),
			zap.String("note", evt.Note),
		}
		s.logger.Info("pipeline event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
