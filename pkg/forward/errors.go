package forward

import (
	"errors"
	"fmt"
	"time"
)

// UnsupportedMethodError is returned before any network activity when the
// method is outside the supported set.
type UnsupportedMethodError struct {
	Method string
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("unsupported method %q", e.Method)
}

func (e *UnsupportedMethodError) Kind() string { return "unsupported_method" }

// UpstreamTimeoutError is returned when the upstream did not answer within
// the timeout budget.
type UpstreamTimeoutError struct {
	URL     string
	Timeout time.Duration
}

func (e *UpstreamTimeoutError) Error() string {
	return fmt.Sprintf("upstream %s did not respond within %s", e.URL, e.Timeout)
}

func (e *UpstreamTimeoutError) Kind() string { return "upstream_timeout" }

// UpstreamStatusError carries a non-2xx upstream response.
type UpstreamStatusError struct {
	URL    string
	Status int
	Body   any
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream %s returned status %d", e.URL, e.Status)
}

func (e *UpstreamStatusError) Kind() string { return "upstream_status" }

// UpstreamUnreachableError wraps a network-level failure.
type UpstreamUnreachableError struct {
	URL   string
	Cause error
}

func (e *UpstreamUnreachableError) Error() string {
	return fmt.Sprintf("upstream %s unreachable: %v", e.URL, e.Cause)
}

func (e *UpstreamUnreachableError) Kind() string { return "upstream_unreachable" }

func (e *UpstreamUnreachableError) Unwrap() error { return e.Cause }

// InvalidPayloadError is returned when a payload cannot be encoded as JSON.
type InvalidPayloadError struct {
	Cause error
}

func (e *InvalidPayloadError) Error() string {
	return "payload is not JSON encodable: " + e.Cause.Error()
}

func (e *InvalidPayloadError) Kind() string { return "invalid_payload" }

func (e *InvalidPayloadError) Unwrap() error { return e.Cause }

// ResponseTooLargeError is returned when the upstream body exceeds the
// configured read limit.
type ResponseTooLargeError struct {
	URL   string
	Limit int64
}

func (e *ResponseTooLargeError) Error() string {
	return fmt.Sprintf("upstream %s response exceeds %d bytes", e.URL, e.Limit)
}

func (e *ResponseTooLargeError) Kind() string { return "response_too_large" }

// ErrorKind returns the Kind of the first error in err's chain that has one,
// or "internal".
func ErrorKind(err error) string {
	var k interface{ Kind() string }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return "internal"
}
