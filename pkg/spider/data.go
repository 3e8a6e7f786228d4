package spider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// GetCredits returns the remaining account credits.
func (c *Client) GetCredits(ctx context.Context) (any, error) {
	return c.call(ctx, Request{Method: http.MethodGet, Endpoint: "data/credits"})
}

// Query looks up a stored page by url, domain or pathname.
func (c *Client) Query(ctx context.Context, q *QueryRequest) (any, error) {
	return c.call(ctx, Request{
		Method:   http.MethodGet,
		Endpoint: "data/query",
		Query:    toQuery(q),
	})
}

// DataPost inserts a record into table.
func (c *Client) DataPost(ctx context.Context, table string, data any) (any, error) {
	if data == nil {
		data = map[string]any{}
	}
	return c.post(ctx, dataEndpoint(table), data, ContentTypeJSON)
}

// DataGet reads records from table, filtered by params.
func (c *Client) DataGet(ctx context.Context, table string, params any) (any, error) {
	return c.call(ctx, Request{
		Method:   http.MethodGet,
		Endpoint: dataEndpoint(table),
		Query:    toQuery(params),
	})
}

// DataDelete removes records from table matching params.
func (c *Client) DataDelete(ctx context.Context, table string, params any) (any, error) {
	req := Request{Method: http.MethodDelete, Endpoint: dataEndpoint(table)}
	if params != nil {
		req.Body = paramsToMap(params)
	}
	return c.call(ctx, req)
}

// Download fetches a stored file. The body is returned untouched together
// with its Content-Type.
func (c *Client) Download(ctx context.Context, q *QueryRequest) ([]byte, string, error) {
	res, err := c.send(ctx, Request{
		Method:   http.MethodGet,
		Endpoint: "data/download",
		Query:    toQuery(q),
	})
	if err != nil {
		return nil, "", err
	}
	return res.Bytes(), res.ContentType(), nil
}

// CreateSignedURL returns a time-limited URL for downloading stored data.
func (c *Client) CreateSignedURL(ctx context.Context, req *SignURLRequest) (any, error) {
	return c.call(ctx, Request{
		Method:   http.MethodGet,
		Endpoint: "data/sign-url",
		Query:    toQuery(req),
	})
}

func dataEndpoint(table string) string {
	return "data/" + strings.Trim(table, "/")
}

// toQuery flattens the JSON form of v into query parameters. Arrays repeat
// the key; nested objects are sent as JSON text.
func toQuery(v any) url.Values {
	m := paramsToMap(v)
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	q := url.Values{}
	for _, k := range keys {
		switch val := m[k].(type) {
		case nil:
		case []any:
			for _, item := range val {
				q.Add(k, queryValue(item))
			}
		default:
			q.Set(k, queryValue(val))
		}
	}
	return q
}

func queryValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case map[string]any, []any:
		raw, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(raw)
	default:
		return fmt.Sprint(val)
	}
}
