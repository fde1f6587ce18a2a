package qdrant

import (
	"fmt"
	"strings"
)

// TransportError reports a request that never produced a usable response:
// DNS failure, refused or reset connection, cancelled context, truncated body.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: transport: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPStatusError reports a non-2xx response. Body holds a trimmed snippet
// of the response for diagnostics.
type HTTPStatusError struct {
	Op         string
	URL        string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	status := e.Status
	if status == "" {
		status = fmt.Sprintf("%d", e.StatusCode)
	}
	if b := strings.TrimSpace(e.Body); b != "" {
		return fmt.Sprintf("%s %s: http status %s (%s)", e.Op, e.URL, status, b)
	}
	return fmt.Sprintf("%s %s: http status %s", e.Op, e.URL, status)
}

// DecodeError reports a response body that does not match the expected shape.
type DecodeError struct {
	Op  string
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s %s: decode response: %v", e.Op, e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
