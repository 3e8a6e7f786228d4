package spider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrNoAPIKey is returned when no API key could be resolved for the client.
var ErrNoAPIKey = errors.New("no API key provided")

// maxErrorBody caps how much of a failed response body is kept on a TransportError.
const maxErrorBody = 4096

// TransportError describes a failed HTTP exchange. StatusCode is zero when no
// response was received (DNS, connect, TLS or timeout failures).
type TransportError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		if e.Body != "" {
			return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Endpoint, e.StatusCode, e.Body)
		}
		return fmt.Sprintf("%s %s: status %d %s", e.Method, e.Endpoint, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HasStatus reports whether the server answered with a status code.
func (e *TransportError) HasStatus() bool {
	return e.StatusCode != 0
}

// Timeout reports whether the failure was a transport-level timeout.
func (e *TransportError) Timeout() bool {
	if e.StatusCode != 0 || e.Err == nil {
		return false
	}
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(e.Err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// DecodeError is returned when a body declared as strict JSON cannot be parsed.
type DecodeError struct {
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s body: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// StatusCode extracts the HTTP status carried by err, or zero.
func StatusCode(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}
