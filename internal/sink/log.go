package sink

import (
	"context"

	"go.uber.org/zap"
)

// LogSink logs a short summary of each record at debug level.
type LogSink struct {
	logger *zap.Logger
	seen   int
}

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume implements Sink.
func (s *LogSink) Consume(_ context.Context, record any) error {
	s.seen++
	fields := []zap.Field{zap.Int("seq", s.seen)}
	if m, ok := record.(map[string]any); ok {
		if u, ok := m["url"].(string); ok {
			fields = append(fields, zap.String("url", u))
		}
		if st, ok := m["status"].(float64); ok {
			fields = append(fields, zap.Int("status", int(st)))
		}
	}
	s.logger.Debug("crawl record", fields...)
	return nil
}

// Close logs the total count.
func (s *LogSink) Close(context.Context) error {
	s.logger.Debug("crawl stream finished", zap.Int("records", s.seen))
	return nil
}
