package sink

import (
	"context"
	"fmt"
)

// Publisher publishes one payload to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// PublishSink publishes every record as its own message.
type PublishSink struct {
	pub   Publisher
	topic string
	close func() error
}

// NewPublishSink builds a sink for topic. closeFn, if set, runs on Close.
func NewPublishSink(pub Publisher, topic string, closeFn func() error) *PublishSink {
	return &PublishSink{pub: pub, topic: topic, close: closeFn}
}

// Consume implements Sink.
func (s *PublishSink) Consume(ctx context.Context, record any) error {
	if _, err := s.pub.Publish(ctx, s.topic, record); err != nil {
		return fmt.Errorf("publish record to %s: %w", s.topic, err)
	}
	return nil
}

// Close implements Sink.
func (s *PublishSink) Close(context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close()
}
