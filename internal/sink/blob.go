package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BlobStore is the subset of a blob store the sink needs.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// BlobSink buffers records as JSON lines and uploads them as a single object
// on Close. Object names are time-ordered UUIDs under prefix.
type BlobSink struct {
	store  BlobStore
	prefix string
	logger *zap.Logger
	newID  func() (uuid.UUID, error)

	mu    sync.Mutex
	buf   bytes.Buffer
	count int
	uri   string
}

// NewBlobSink builds a sink that uploads to store.
func NewBlobSink(store BlobStore, prefix string, logger *zap.Logger) *BlobSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlobSink{store: store, prefix: prefix, logger: logger, newID: uuid.NewV7}
}

// Consume implements Sink.
func (s *BlobSink) Consume(_ context.Context, record any) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Write(line)
	s.buf.WriteByte('\n')
	s.count++
	return nil
}

// Close uploads the buffered records. Nothing is written when no record
// arrived.
func (s *BlobSink) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == 0 || s.uri != "" {
		return nil
	}
	id, err := s.newID()
	if err != nil {
		return fmt.Errorf("generate object name: %w", err)
	}
	name := path.Join(s.prefix, id.String()+".jsonl")
	uri, err := s.store.PutObject(ctx, name, "application/jsonl", bytes.NewReader(s.buf.Bytes()))
	if err != nil {
		return fmt.Errorf("upload records: %w", err)
	}
	s.uri = uri
	s.logger.Info("stored crawl records", zap.String("uri", uri), zap.Int("records", s.count))
	return nil
}

// URI returns where the records were stored, once Close succeeded.
func (s *BlobSink) URI() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uri
}
