package spider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultAPIURL is the production API host.
const DefaultAPIURL = "https://api.spider.cloud"

// EnvAPIURL overrides the API host for the whole process.
const EnvAPIURL = "SPIDER_API_URL"

var (
	apiURLOnce sync.Once
	apiURL     string
)

// APIURL returns the base URL, read from SPIDER_API_URL on first use and
// fixed for the life of the process.
func APIURL() string {
	apiURLOnce.Do(func() {
		apiURL = strings.TrimRight(os.Getenv(EnvAPIURL), "/")
		if apiURL == "" {
			apiURL = DefaultAPIURL
		}
	})
	return apiURL
}

// Request describes one call to the API.
type Request struct {
	Method      string
	Endpoint    string
	ContentType string
	Body        any
	Query       url.Values
	// Stream leaves the body unread so it can be consumed incrementally.
	Stream bool
}

// Response is a successful (2xx) API response. Exactly one of Bytes or
// Stream carries the body, depending on Request.Stream.
type Response struct {
	StatusCode int
	Header     http.Header

	body   []byte
	stream io.ReadCloser
}

// NewResponse builds a buffered response. Useful for custom transports.
func NewResponse(status int, header http.Header, body []byte) *Response {
	return &Response{StatusCode: status, Header: header, body: body}
}

// NewStreamResponse builds a streaming response.
func NewStreamResponse(status int, header http.Header, body io.ReadCloser) *Response {
	return &Response{StatusCode: status, Header: header, stream: body}
}

// ContentType returns the response Content-Type header.
func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

// Bytes returns the buffered body. It is nil for streaming responses.
func (r *Response) Bytes() []byte {
	return r.body
}

// Stream returns the unread body for streaming responses. The caller closes it.
func (r *Response) Stream() io.ReadCloser {
	if r.stream == nil {
		return io.NopCloser(bytes.NewReader(r.body))
	}
	return r.stream
}

// Transport sends a single request. Non-2xx responses and network failures
// come back as *TransportError.
type Transport interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// RestyTransport is the default Transport.
type RestyTransport struct {
	http    *resty.Client
	baseURL string
	timeout time.Duration
}

// NewRestyTransport builds a transport that authenticates with apiKey. The
// timeout bounds each buffered attempt; streams are only bounded while
// waiting for response headers.
func NewRestyTransport(baseURL, apiKey string, timeout time.Duration) *RestyTransport {
	ht := http.DefaultTransport.(*http.Transport).Clone()
	if timeout > 0 {
		ht.ResponseHeaderTimeout = timeout
	}

	client := resty.New()
	client.SetTransport(ht)
	client.SetRetryCount(0)
	client.SetHeader("User-Agent", UserAgent())
	client.SetAuthToken(apiKey)

	return &RestyTransport{
		http:    client,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
	}
}

// URL joins the base URL and endpoint.
func (t *RestyTransport) URL(endpoint string) string {
	return t.baseURL + "/" + strings.TrimLeft(endpoint, "/")
}

// Do implements Transport.
func (t *RestyTransport) Do(ctx context.Context, req Request) (*Response, error) {
	if !req.Stream && t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	contentType := req.ContentType
	if contentType == "" || req.Method != http.MethodPost {
		contentType = ContentTypeJSON
	}

	r := t.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetDoNotParseResponse(req.Stream)
	if len(req.Query) > 0 {
		r.SetQueryParamsFromValues(req.Query)
	}
	if req.Body != nil {
		body, err := encodeBody(req.Body)
		if err != nil {
			return nil, &TransportError{Method: req.Method, Endpoint: req.Endpoint, Err: err}
		}
		r.SetBody(body)
	}

	res, err := r.Execute(req.Method, t.URL(req.Endpoint))
	if err != nil {
		if res != nil && res.RawBody() != nil && req.Stream {
			res.RawBody().Close()
		}
		return nil, &TransportError{Method: req.Method, Endpoint: req.Endpoint, Err: err}
	}

	if !res.IsSuccess() {
		var body []byte
		if req.Stream {
			raw := res.RawBody()
			body, _ = io.ReadAll(io.LimitReader(raw, maxErrorBody))
			raw.Close()
		} else {
			body = res.Body()
		}
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &TransportError{
			Method:     req.Method,
			Endpoint:   req.Endpoint,
			StatusCode: res.StatusCode(),
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if req.Stream {
		return NewStreamResponse(res.StatusCode(), res.Header(), res.RawBody()), nil
	}
	return NewResponse(res.StatusCode(), res.Header(), res.Body()), nil
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		return raw, nil
	}
}
