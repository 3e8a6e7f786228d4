package metrics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeEndpoint(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "scrape", "scrape"},
		{"nested pipeline", "pipeline/label", "pipeline/label"},
		{"leading slash", "/crawl", "crawl"},
		{"known data endpoint", "data/credits", "data/credits"},
		{"table endpoint", "data/websites", "data/{table}"},
		{"empty", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeEndpoint(tc.input); got != tc.expected {
				t.Errorf("SanitizeEndpoint(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if requestsTotal == nil || requestDurationSeconds == nil || retriesTotal == nil ||
		streamLinesTotal == nil || decodeTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserver(t *testing.T) {
	Init()
	var obs Observer

	before := testutil.ToFloat64(requestsTotal.WithLabelValues("POST", "data/{table}", "201"))
	obs.ObserveRequest("POST", "data/websites", 201, 20*time.Millisecond)
	if got := testutil.ToFloat64(requestsTotal.WithLabelValues("POST", "data/{table}", "201")); got != before+1 {
		t.Errorf("expected request counter to grow by 1, got %f -> %f", before, got)
	}

	beforeRetry := testutil.ToFloat64(retriesTotal.WithLabelValues("crawl"))
	obs.ObserveRetry("crawl")
	if got := testutil.ToFloat64(retriesTotal.WithLabelValues("crawl")); got != beforeRetry+1 {
		t.Errorf("expected retry counter to grow by 1, got %f -> %f", beforeRetry, got)
	}

	beforeSkipped := testutil.ToFloat64(streamLinesTotal.WithLabelValues("skipped"))
	obs.ObserveStreamLines(3, 2)
	if got := testutil.ToFloat64(streamLinesTotal.WithLabelValues("skipped")); got != beforeSkipped+2 {
		t.Errorf("expected skipped lines to grow by 2, got %f -> %f", beforeSkipped, got)
	}

	beforeDecode := testutil.ToFloat64(decodeTotal.WithLabelValues("json", "error"))
	obs.ObserveDecode("json", false)
	if got := testutil.ToFloat64(decodeTotal.WithLabelValues("json", "error")); got != beforeDecode+1 {
		t.Errorf("expected decode errors to grow by 1, got %f -> %f", beforeDecode, got)
	}
}

func TestWriteText(t *testing.T) {
	Init()
	ObserveRetry("scrape")

	var buf bytes.Buffer
	if err := WriteText(&buf); err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "spider_client_retries_total") {
		t.Fatalf("expected retries collector in output:\n%s", out)
	}
	if strings.Contains(out, "go_goroutines") {
		t.Fatalf("expected only spider_client collectors in output")
	}
}

// Fuzz test for SanitizeEndpoint.
func FuzzSanitizeEndpoint(f *testing.F) {
	testcases := []string{"scrape", "data/websites", "/pipeline/label/"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeEndpoint(orig) == "" {
			t.Errorf("SanitizeEndpoint(%q) returned an empty string", orig)
		}
	})
}
