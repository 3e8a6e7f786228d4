package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// WriterSink writes each record as one JSON line.
type WriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewWriterSink wraps w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{enc: json.NewEncoder(w)}
}

// Consume implements Sink.
func (s *WriterSink) Consume(_ context.Context, record any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(record); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// Close implements Sink; the writer is owned by the caller.
func (s *WriterSink) Close(context.Context) error {
	return nil
}
