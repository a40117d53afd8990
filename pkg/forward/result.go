package forward

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Result is the outcome of one forwarded call. Either Err is set, or Status
// and Body are.
type Result struct {
	Status int
	Body   any
	Err    error
}

// Failed builds an error result.
func Failed(err error) *Result {
	return &Result{Err: err}
}

// OK reports whether the call produced a 2xx response.
func (r *Result) OK() bool {
	return r.Err == nil
}

// MarshalJSON renders {status, body} on success and {error, kind, ...} on
// failure. Upstream status errors also carry status and body.
func (r *Result) MarshalJSON() ([]byte, error) {
	if r.Err == nil {
		return json.Marshal(struct {
			Status int `json:"status"`
			Body   any `json:"body"`
		}{r.Status, r.Body})
	}
	out := map[string]any{
		"error": r.Err.Error(),
		"kind":  ErrorKind(r.Err),
	}
	var statusErr *UpstreamStatusError
	if errors.As(r.Err, &statusErr) {
		out["status"] = statusErr.Status
		out["body"] = statusErr.Body
	}
	return json.Marshal(out)
}

// HTTPStatus maps the result to the status a front-end should answer with.
func (r *Result) HTTPStatus() int {
	if r.Err == nil {
		return r.Status
	}
	return StatusForError(r.Err)
}

// StatusForError maps an error kind to an HTTP status code.
func StatusForError(err error) int {
	var statusErr *UpstreamStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status
	}
	switch ErrorKind(err) {
	case "no_match":
		return http.StatusNotFound
	case "unsupported_method":
		return http.StatusMethodNotAllowed
	case "index_not_ready":
		return http.StatusServiceUnavailable
	case "upstream_timeout":
		return http.StatusGatewayTimeout
	case "upstream_unreachable", "response_too_large":
		return http.StatusBadGateway
	case "ambiguous_match":
		return http.StatusConflict
	case "invalid_payload", "payload_validation", "path_template":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
