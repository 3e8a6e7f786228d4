package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

// newTestStore points a GCS client at a fake JSON API server.
func newTestStore(t *testing.T, handler http.Handler, prefix string) *BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, Config{Bucket: "test-bucket", Prefix: prefix})
	require.NoError(t, err)
	return store
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	assert.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer client.Close() //nolint:errcheck // test cleanup

	_, err = New(client, Config{})
	assert.Error(t, err)
}

func TestPutObject_Uploads(t *testing.T) {
	t.Parallel()

	data := []byte("{\"url\":\"https://example.com\"}\n")
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/test-bucket/o")
		assert.Equal(t, "crawls/run-1.jsonl", r.URL.Query().Get("name"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), string(data))

		fmt.Fprintln(w, `{"name":"crawls/run-1.jsonl","bucket":"test-bucket"}`)
	})
	store := newTestStore(t, handler, "/crawls/")

	uri, err := store.PutObject(context.Background(), "run-1.jsonl", "application/jsonl", bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "gs://test-bucket/crawls/run-1.jsonl", uri)
}

func TestPutObject_ServerError(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	store := newTestStore(t, handler, "")

	_, err := store.PutObject(context.Background(), "run-1.jsonl", "application/jsonl", bytes.NewReader([]byte("{}")))
	assert.Error(t, err)
}

func TestObjectName(t *testing.T) {
	t.Parallel()

	store := &BlobStore{prefix: "a/b"}
	assert.Equal(t, "a/b/c.json", store.ObjectName("c.json"))

	store = &BlobStore{}
	assert.Equal(t, "c.json", store.ObjectName("/c.json"))
}
