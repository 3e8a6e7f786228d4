// Package sink routes streamed crawl records to their destinations: a
// writer, a blob store, a Pub/Sub topic or the log. Every sink satisfies Sink
// and is driven sequentially from the streaming callback.
package sink

import (
	"context"
	"errors"
)

// Sink consumes records one at a time. Close flushes buffered state.
type Sink interface {
	Consume(ctx context.Context, record any) error
	Close(ctx context.Context) error
}

// Multi fans every record out to all sinks.
type Multi []Sink

// Consume forwards record to every sink, joining their errors.
func (m Multi) Consume(ctx context.Context, record any) error {
	var errs []error
	for _, s := range m {
		if err := s.Consume(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink, joining their errors.
func (m Multi) Close(ctx context.Context) error {
	var errs []error
	for _, s := range m {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
