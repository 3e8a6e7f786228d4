// Package metrics exposes Prometheus collectors for the spider client.
package metrics

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

var (
	requestsTotal          *prometheus.CounterVec
	requestDurationSeconds *prometheus.HistogramVec
	retriesTotal           *prometheus.CounterVec
	streamLinesTotal       *prometheus.CounterVec
	decodeTotal            *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		requestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spider_client_requests_total",
				Help: "Total number of API attempts, labeled by method, endpoint and status code.",
			},
			[]string{"method", "endpoint", "code"},
		)

		requestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spider_client_request_duration_seconds",
				Help:    "Histogram of API attempt latencies, labeled by method and endpoint.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"method", "endpoint"},
		)

		retriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spider_client_retries_total",
				Help: "Total number of retried API attempts, labeled by endpoint.",
			},
			[]string{"endpoint"},
		)

		streamLinesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spider_client_stream_lines_total",
				Help: "Total number of streamed lines, labeled by outcome (delivered or skipped).",
			},
			[]string{"outcome"},
		)

		decodeTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spider_client_decode_total",
				Help: "Total number of decoded response bodies, labeled by format and outcome.",
			},
			[]string{"format", "outcome"},
		)
	})
}

// SanitizeEndpoint collapses per-table data endpoints so label cardinality
// stays bounded.
func SanitizeEndpoint(endpoint string) string {
	endpoint = strings.Trim(endpoint, "/")
	if endpoint == "" {
		return "unknown"
	}
	switch endpoint {
	case "data/credits", "data/query", "data/crawl_state", "data/download", "data/sign-url":
		return endpoint
	}
	if strings.HasPrefix(endpoint, "data/") {
		return "data/{table}"
	}
	return endpoint
}

// WriteText dumps the spider client collectors in the Prometheus text format.
func WriteText(w io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "spider_client_") {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

// ObserveRequest records one API attempt.
func ObserveRequest(method, endpoint string, code int, duration time.Duration) {
	endpoint = SanitizeEndpoint(endpoint)
	requestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	requestDurationSeconds.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// ObserveRetry counts a retried attempt.
func ObserveRetry(endpoint string) {
	retriesTotal.WithLabelValues(SanitizeEndpoint(endpoint)).Inc()
}

// ObserveStreamLines counts the outcome of a streamed crawl.
func ObserveStreamLines(delivered, skipped int) {
	if delivered > 0 {
		streamLinesTotal.WithLabelValues("delivered").Add(float64(delivered))
	}
	if skipped > 0 {
		streamLinesTotal.WithLabelValues("skipped").Add(float64(skipped))
	}
}

// ObserveDecode counts a decoded body.
func ObserveDecode(format string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	decodeTotal.WithLabelValues(format, outcome).Inc()
}

// Observer adapts the package collectors to the spider client Observer
// interface. Init must have been called.
type Observer struct{}

// ObserveRequest implements spider.Observer.
func (Observer) ObserveRequest(method, endpoint string, status int, elapsed time.Duration) {
	ObserveRequest(method, endpoint, status, elapsed)
}

// ObserveRetry implements spider.Observer.
func (Observer) ObserveRetry(endpoint string) {
	ObserveRetry(endpoint)
}

// ObserveStreamLines implements spider.Observer.
func (Observer) ObserveStreamLines(delivered, skipped int) {
	ObserveStreamLines(delivered, skipped)
}

// ObserveDecode implements spider.Observer.
func (Observer) ObserveDecode(format string, ok bool) {
	ObserveDecode(format, ok)
}
