// Package storage opens blob stores for streamed crawl records and
// downloaded files. Stores are addressed by URI: file://dir, gs://bucket/prefix
// or memory://.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	gcsclient "cloud.google.com/go/storage"

	"github.com/JakeFAU/spider-client/internal/storage/gcs"
	"github.com/JakeFAU/spider-client/internal/storage/local"
	"github.com/JakeFAU/spider-client/internal/storage/memory"
)

// BlobStore persists a single object and returns its URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Handle is an opened store plus the function that releases it.
type Handle struct {
	BlobStore
	close func() error
}

// Close releases any client owned by the store.
func (h *Handle) Close() error {
	if h.close == nil {
		return nil
	}
	return h.close()
}

// Open parses uri and returns the matching store. Path components after the
// bucket (gs) are used as an object prefix.
func Open(ctx context.Context, uri string) (*Handle, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("parse storage uri %q: %w", uri, err)
	}

	switch u.Scheme {
	case "file":
		dir := u.Path
		if u.Host != "" {
			// file://relative/dir puts the first segment in Host.
			dir = path.Join(u.Host, u.Path)
		}
		store, err := local.New(local.Config{BaseDir: dir})
		if err != nil {
			return nil, err
		}
		return &Handle{BlobStore: store}, nil
	case "gs":
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{
			Bucket: u.Host,
			Prefix: strings.Trim(u.Path, "/"),
		})
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return &Handle{BlobStore: store, close: client.Close}, nil
	case "memory":
		return &Handle{BlobStore: memory.NewBlobStore()}, nil
	default:
		return nil, fmt.Errorf("unsupported storage scheme %q (want file, gs or memory)", u.Scheme)
	}
}
