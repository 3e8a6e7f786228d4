package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/JakeFAU/spider-client/pkg/spider"
)

type seenRequest struct {
	Method  string
	Path    string
	Query   string
	Header  http.Header
	Payload any
}

type fakeAPI struct {
	mu   sync.Mutex
	seen []seenRequest
	srv  *httptest.Server
}

// newFakeAPI starts a chi router and points the CLI at it through the
// environment. Retries are disabled so failures surface immediately.
func newFakeAPI(t *testing.T, mount func(r chi.Router)) *fakeAPI {
	t.Helper()
	keyring.MockInit()

	api := &fakeAPI{}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			body, _ := io.ReadAll(req.Body)
			var payload any
			if len(body) > 0 {
				_ = json.Unmarshal(body, &payload)
			}
			api.mu.Lock()
			api.seen = append(api.seen, seenRequest{
				Method:  req.Method,
				Path:    req.URL.Path,
				Query:   req.URL.RawQuery,
				Header:  req.Header.Clone(),
				Payload: payload,
			})
			api.mu.Unlock()
			next.ServeHTTP(w, req)
		})
	})
	mount(r)
	api.srv = httptest.NewServer(r)
	t.Cleanup(api.srv.Close)

	t.Setenv("SPIDER_API_URL", api.srv.URL)
	t.Setenv("SPIDER_API_KEY", "")
	t.Setenv("SPIDER_RETRY_MAX_ATTEMPTS", "1")
	return api
}

func (a *fakeAPI) requests() []seenRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]seenRequest(nil), a.seen...)
}

func execute(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestScrapeSendsOnlyChangedFlags(t *testing.T) {
	api := newFakeAPI(t, func(r chi.Router) {
		r.Post("/scrape", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `[{"content":"hi","status":200,"url":"https://example.com"}]`)
		})
	})

	code, stdout, stderr := execute(t, "scrape", "--api-key", "sk-test",
		"-u", "https://example.com", "--proxy", "Residential", "--lite-mode")
	require.Equal(t, 0, code, stderr)

	var out []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "hi", out[0]["content"])

	reqs := api.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer sk-test", reqs[0].Header.Get("Authorization"))
	assert.Equal(t, spider.UserAgent(), reqs[0].Header.Get("User-Agent"))
	assert.Equal(t, map[string]any{
		"url":       "https://example.com",
		"limit":     float64(1),
		"proxy":     "residential",
		"lite_mode": true,
	}, reqs[0].Payload)
}

func TestCrawlStreamWritesLinesAndStoresRecords(t *testing.T) {
	api := newFakeAPI(t, func(r chi.Router) {
		r.Post("/crawl", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/jsonl")
			_, _ = io.WriteString(w, "{\"url\":\"https://a.example\",\"status\":200}\nnot json\n{\"url\":\"https://b.example\",\"status\":200}\n")
		})
	})
	dir := t.TempDir()

	code, stdout, stderr := execute(t, "crawl", "--api-key", "sk-test",
		"--url", "https://a.example", "--limit", "5", "--stream", "--output", "file://"+dir)
	require.Equal(t, 0, code, stderr)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"url":"https://a.example","status":200}`, lines[0])
	assert.JSONEq(t, `{"url":"https://b.example","status":200}`, lines[1])

	reqs := api.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, spider.ContentTypeJSONL, reqs[0].Header.Get("Content-Type"))
	assert.Equal(t, float64(5), reqs[0].Payload.(map[string]any)["limit"])

	files, err := filepath.Glob(filepath.Join(dir, "records", "*.jsonl"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Contains(t, stderr, "records stored at file://")

	f, err := os.Open(files[0])
	require.NoError(t, err)
	defer f.Close()
	var stored int
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		stored++
	}
	assert.Equal(t, 2, stored)
}

func TestCrawlStreamKeepsConfiguredContentType(t *testing.T) {
	api := newFakeAPI(t, func(r chi.Router) {
		r.Post("/crawl", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "{\"url\":\"https://a.example\"}\n")
		})
	})
	t.Setenv("SPIDER_CONTENT_TYPE", spider.ContentTypeCSV)

	code, stdout, stderr := execute(t, "crawl", "--api-key", "sk-test", "-u", "https://a.example", "--stream")
	require.Equal(t, 0, code, stderr)
	assert.JSONEq(t, `{"url":"https://a.example"}`, strings.TrimSpace(stdout))

	reqs := api.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, spider.ContentTypeCSV, reqs[0].Header.Get("Content-Type"))
}

func TestCrawlBufferedPrintsResult(t *testing.T) {
	newFakeAPI(t, func(r chi.Router) {
		r.Post("/crawl", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `[{"url":"https://a.example"}]`)
		})
	})

	code, stdout, stderr := execute(t, "crawl", "--api-key", "sk-test", "-u", "https://a.example", "--output", "memory://")
	require.Equal(t, 0, code, stderr)
	assert.JSONEq(t, `[{"url":"https://a.example"}]`, stdout)
}

func TestFailurePrefixesOperation(t *testing.T) {
	api := newFakeAPI(t, func(r chi.Router) {
		r.Post("/links", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "bad url", http.StatusUnprocessableEntity)
		})
	})

	code, stdout, stderr := execute(t, "links", "--api-key", "sk-test", "-u", "nope")
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout)
	assert.True(t, strings.HasPrefix(stderr, "Error retrieving links: "), stderr)
	assert.Contains(t, stderr, "422")
	assert.Len(t, api.requests(), 1)
}

func TestMissingURLFlag(t *testing.T) {
	api := newFakeAPI(t, func(chi.Router) {})

	code, _, stderr := execute(t, "scrape", "--api-key", "sk-test")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, `"url"`)
	assert.Empty(t, api.requests())
}

func TestNoCredentialsFailsBeforeNetwork(t *testing.T) {
	api := newFakeAPI(t, func(chi.Router) {})

	code, _, stderr := execute(t, "get-credits")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Error initializing client")
	assert.Contains(t, stderr, spider.ErrNoAPIKey.Error())
	assert.Empty(t, api.requests())
}

func TestAuthThenUseStoredKey(t *testing.T) {
	api := newFakeAPI(t, func(r chi.Router) {
		r.Get("/data/credits", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"credits":12}`)
		})
	})

	code, stdout, stderr := execute(t, "auth", "--api-key", "sk-saved")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "spider_client/default")
	assert.Empty(t, api.requests())

	secret, err := keyring.Get("spider_client", "default")
	require.NoError(t, err)
	assert.Equal(t, "sk-saved", secret)

	code, stdout, stderr = execute(t, "get-credits", "--print-metrics")
	require.Equal(t, 0, code, stderr)
	assert.JSONEq(t, `{"credits":12}`, stdout)
	assert.Contains(t, stderr, "spider_client_requests_total")

	reqs := api.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer sk-saved", reqs[0].Header.Get("Authorization"))
}

func TestAuthRequiresKey(t *testing.T) {
	newFakeAPI(t, func(chi.Router) {})

	code, _, stderr := execute(t, "auth")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "--api-key is required")
}

func TestSearchAndTransformPayloads(t *testing.T) {
	api := newFakeAPI(t, func(r chi.Router) {
		ok := func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `[]`)
		}
		r.Post("/search", ok)
		r.Post("/transform", ok)
	})

	code, _, stderr := execute(t, "search", "--api-key", "sk-test", "-q", "go crawlers", "-l", "2")
	require.Equal(t, 0, code, stderr)
	code, _, stderr = execute(t, "transform", "--api-key", "sk-test", "--data", "<h1>Hi</h1>", "--return-format", "markdown")
	require.Equal(t, 0, code, stderr)

	reqs := api.requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, map[string]any{"search": "go crawlers", "limit": float64(2)}, reqs[0].Payload)
	assert.Equal(t, map[string]any{
		"data":          []any{map[string]any{"html": "<h1>Hi</h1>"}},
		"return_format": "markdown",
	}, reqs[1].Payload)
}

func TestQueryRequiresTarget(t *testing.T) {
	api := newFakeAPI(t, func(chi.Router) {})

	code, _, stderr := execute(t, "query", "--api-key", "sk-test")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Error querying records: --url or --domain is required")
	assert.Empty(t, api.requests())
}

func TestDownloadToStore(t *testing.T) {
	api := newFakeAPI(t, func(r chi.Router) {
		r.Get("/data/download", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = io.WriteString(w, "<html>saved</html>")
		})
	})
	dir := t.TempDir()

	code, stdout, stderr := execute(t, "download", "--api-key", "sk-test",
		"--domain", "example.com", "--pathname", "/docs/", "--output", "file://"+dir)
	require.Equal(t, 0, code, stderr)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, "text/html", out["content_type"])
	assert.Equal(t, float64(len("<html>saved</html>")), out["bytes"])

	data, err := os.ReadFile(filepath.Join(dir, "example.com", "docs"))
	require.NoError(t, err)
	assert.Equal(t, "<html>saved</html>", string(data))

	reqs := api.requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Query, "domain=example.com")
}

func TestDownloadToStdout(t *testing.T) {
	newFakeAPI(t, func(r chi.Router) {
		r.Get("/data/download", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/csv")
			_, _ = io.WriteString(w, "a,b\n1,2\n")
		})
	})

	code, stdout, stderr := execute(t, "download", "--api-key", "sk-test", "-u", "https://example.com/x")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "a,b\n1,2\n", stdout)
}

func TestParseTransformData(t *testing.T) {
	t.Parallel()

	docs := parseTransformData(`[{"html":"<p>a</p>","url":"https://a.example"}]`)
	require.Len(t, docs, 1)
	assert.Equal(t, "<p>a</p>", docs[0].HTML)
	require.NotNil(t, docs[0].URL)
	assert.Equal(t, "https://a.example", *docs[0].URL)

	assert.Equal(t, []spider.DataParam{{HTML: "<p>raw</p>"}}, parseTransformData("<p>raw</p>"))
	assert.Equal(t, []spider.DataParam{{HTML: "[broken"}}, parseTransformData("[broken"))
}

func TestObjectName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "example.com/docs", objectName(queryFlags{domain: "example.com", pathname: "/docs/"}))
	assert.Equal(t, "example.com/a/b", objectName(queryFlags{url: "https://example.com/a/b"}))
	assert.Equal(t, "etc/passwd", objectName(queryFlags{domain: "../../etc/passwd"}))
	assert.Equal(t, "download", objectName(queryFlags{}))
}
