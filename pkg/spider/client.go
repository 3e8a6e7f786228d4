// Package spider is a client for the Spider web crawling API.
package spider

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Version is reported in the User-Agent header.
const Version = "2.1.0"

// EnvAPIKey is consulted when no key is passed to New.
const EnvAPIKey = "SPIDER_API_KEY"

// Request content types.
const (
	ContentTypeJSON  = "application/json"
	ContentTypeJSONL = "application/jsonl"
	ContentTypeCSV   = "text/csv"
	ContentTypeXML   = "application/xml"
)

// DefaultHTTPTimeout bounds a single buffered attempt.
const DefaultHTTPTimeout = 120 * time.Second

// UserAgent returns the client identifier sent on every request.
func UserAgent() string {
	return "Spider-Client/" + Version
}

// Observer receives client telemetry. All methods must be safe for
// concurrent use.
type Observer interface {
	ObserveRequest(method, endpoint string, status int, elapsed time.Duration)
	ObserveRetry(endpoint string)
	ObserveStreamLines(delivered, skipped int)
	ObserveDecode(format string, ok bool)
}

type nopObserver struct{}

func (nopObserver) ObserveRequest(string, string, int, time.Duration) {}
func (nopObserver) ObserveRetry(string)                               {}
func (nopObserver) ObserveStreamLines(int, int)                       {}
func (nopObserver) ObserveDecode(string, bool)                        {}

// Client calls the Spider API. It is safe for concurrent use.
type Client struct {
	apiKey    string
	baseURL   string
	timeout   time.Duration
	transport Transport
	retry     RetryPolicy
	logger    *zap.Logger
	observer  Observer
	sleep     sleeper
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBaseURL overrides the API host for this client.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPTimeout sets the per-attempt timeout of the default transport.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithTransport replaces the HTTP transport.
func WithTransport(t Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

// WithRetryPolicy replaces the retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		c.retry = p
	}
}

// WithObserver installs a telemetry observer.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

// New builds a client. The key comes from apiKey, else SPIDER_API_KEY; if
// neither is set New returns ErrNoAPIKey without touching the network.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvAPIKey)
	}
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}

	c := &Client{
		apiKey:   apiKey,
		timeout:  DefaultHTTPTimeout,
		retry:    DefaultRetryPolicy(),
		logger:   zap.NewNop(),
		observer: nopObserver{},
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.baseURL == "" {
		c.baseURL = APIURL()
	}
	if c.transport == nil {
		c.transport = NewRestyTransport(c.baseURL, c.apiKey, c.timeout)
	}
	return c, nil
}

// BaseURL returns the API host this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// send performs req under the retry policy.
func (c *Client) send(ctx context.Context, req Request) (*Response, error) {
	return retry(ctx, c, req.Endpoint, func(ctx context.Context) (*Response, error) {
		start := time.Now()
		res, err := c.transport.Do(ctx, req)
		status := StatusCode(err)
		if res != nil {
			status = res.StatusCode
		}
		c.observer.ObserveRequest(req.Method, req.Endpoint, status, time.Since(start))
		return res, err
	})
}

// call sends req and decodes the buffered body.
func (c *Client) call(ctx context.Context, req Request) (any, error) {
	res, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.decode(res)
}

func (c *Client) decode(res *Response) (any, error) {
	format := DetectFormat(res.ContentType())
	v, err := Decode(res.ContentType(), res.Bytes())
	c.observer.ObserveDecode(format, err == nil)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body any, contentType string) (any, error) {
	return c.call(ctx, Request{
		Method:      http.MethodPost,
		Endpoint:    endpoint,
		ContentType: contentType,
		Body:        body,
	})
}

// ScrapeURL fetches a single page.
func (c *Client) ScrapeURL(ctx context.Context, url string, params *RequestParams, contentType string) (any, error) {
	return c.post(ctx, "scrape", encodePayload(params, subjectURL, url, true), contentType)
}

// MultiScrapeURL scrapes several pages in one request. Each element must set URL.
func (c *Client) MultiScrapeURL(ctx context.Context, params []RequestParams, contentType string) (any, error) {
	return c.post(ctx, "scrape", encodeList(params, true), contentType)
}

// CrawlURL crawls a site starting at url. When stream is set, records are
// passed to fn as they arrive and the result is always nil.
func (c *Client) CrawlURL(ctx context.Context, url string, params *RequestParams, stream bool, contentType string, fn RecordFunc) (any, error) {
	return c.crawl(ctx, encodePayload(params, subjectURL, url, false), stream, contentType, fn)
}

// MultiCrawlURL crawls several sites in one request.
func (c *Client) MultiCrawlURL(ctx context.Context, params []RequestParams, stream bool, contentType string, fn RecordFunc) (any, error) {
	return c.crawl(ctx, encodeList(params, false), stream, contentType, fn)
}

func (c *Client) crawl(ctx context.Context, body any, stream bool, contentType string, fn RecordFunc) (any, error) {
	req := Request{
		Method:      http.MethodPost,
		Endpoint:    "crawl",
		ContentType: contentType,
		Body:        body,
		Stream:      stream,
	}
	if !stream {
		return c.call(ctx, req)
	}

	res, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	rc := res.Stream()
	defer rc.Close()

	if fn == nil {
		c.logger.Debug("stream requested without a callback, discarding body")
		return nil, nil
	}

	s, err := consumeStream(rc, fn)
	c.observer.ObserveStreamLines(s.delivered, s.skipped)
	if err != nil {
		c.logger.Warn("crawl stream ended early",
			zap.Int("delivered", s.delivered),
			zap.Int("skipped", s.skipped),
			zap.Error(err),
		)
		return nil, nil
	}
	c.logger.Debug("crawl stream complete",
		zap.Int("delivered", s.delivered),
		zap.Int("skipped", s.skipped),
	)
	return nil, nil
}

// Links collects the links of a site without page content.
func (c *Client) Links(ctx context.Context, url string, params *RequestParams, contentType string) (any, error) {
	return c.post(ctx, "links", encodePayload(params, subjectURL, url, false), contentType)
}

// MultiLinks collects links for several sites.
func (c *Client) MultiLinks(ctx context.Context, params []RequestParams, contentType string) (any, error) {
	return c.post(ctx, "links", encodeList(params, false), contentType)
}

// Screenshot captures a page.
func (c *Client) Screenshot(ctx context.Context, url string, params *RequestParams, contentType string) (any, error) {
	return c.post(ctx, "screenshot", encodePayload(params, subjectURL, url, false), contentType)
}

// MultiScreenshot captures several pages.
func (c *Client) MultiScreenshot(ctx context.Context, params []RequestParams, contentType string) (any, error) {
	return c.post(ctx, "screenshot", encodeList(params, false), contentType)
}

// Search runs a web search. The query always replaces params.Search.
func (c *Client) Search(ctx context.Context, query string, params *SearchRequestParams, contentType string) (any, error) {
	return c.post(ctx, "search", encodePayload(params, subjectSearch, query, false), contentType)
}

// MultiSearch runs several searches in one request.
func (c *Client) MultiSearch(ctx context.Context, params []SearchRequestParams, contentType string) (any, error) {
	return c.post(ctx, "search", encodeList(params, false), contentType)
}

// UnblockURL fetches a page through the anti-bot unblocker.
func (c *Client) UnblockURL(ctx context.Context, url string, params *RequestParams, contentType string) (any, error) {
	return c.post(ctx, "unblocker", encodePayload(params, subjectURL, url, true), contentType)
}

// MultiUnblockURL unblocks several pages. Each element must set URL.
func (c *Client) MultiUnblockURL(ctx context.Context, params []RequestParams, contentType string) (any, error) {
	return c.post(ctx, "unblocker", encodeList(params, true), contentType)
}

// Transform converts HTML documents into another format.
func (c *Client) Transform(ctx context.Context, data []DataParam, params *TransformParams, contentType string) (any, error) {
	if data == nil {
		data = []DataParam{}
	}
	return c.post(ctx, "transform", encodePayload(params, subjectData, data, false), contentType)
}

// ExtractContacts extracts contact details from a site.
func (c *Client) ExtractContacts(ctx context.Context, url string, params *RequestParams, contentType string) (any, error) {
	return c.post(ctx, "pipeline/extract-contacts", encodePayload(params, subjectURL, url, false), contentType)
}

// Label classifies a site.
func (c *Client) Label(ctx context.Context, url string, params *RequestParams, contentType string) (any, error) {
	return c.post(ctx, "pipeline/label", encodePayload(params, subjectURL, url, false), contentType)
}

// GetCrawlState reports the state of a crawl started for url.
func (c *Client) GetCrawlState(ctx context.Context, url string, params *RequestParams, contentType string) (any, error) {
	return c.post(ctx, "data/crawl_state", encodePayload(params, subjectURL, url, false), contentType)
}

// encodeList turns a batch into a JSON array, forcing limit=1 on each
// element when single is set.
func encodeList[T any](params []T, single bool) []map[string]any {
	out := make([]map[string]any, 0, len(params))
	for i := range params {
		out = append(out, encodePayload(&params[i], "", nil, single))
	}
	return out
}
