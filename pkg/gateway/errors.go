package gateway

import (
	"fmt"
	"strings"

	"github.com/Nels2/mcp-trmm/pkg/models"
)

// NoMatchMessage is the caller-facing text for a query without candidates.
const NoMatchMessage = "No matching endpoints found"

// IndexNotReadyError is returned while no index has been published.
type IndexNotReadyError struct{}

func (*IndexNotReadyError) Error() string { return "schema index not ready" }

func (*IndexNotReadyError) Kind() string { return "index_not_ready" }

// ErrIndexNotReady is the IndexNotReadyError value returned by the Facade.
var ErrIndexNotReady error = &IndexNotReadyError{}

// AmbiguousMatchError is returned for a method-less execute over several
// candidates when explicit method selection is required.
type AmbiguousMatchError struct {
	Query      string
	Candidates []models.Candidate
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("query %q matches %d endpoints; specify a method or an exact path", e.Query, len(e.Candidates))
}

func (e *AmbiguousMatchError) Kind() string { return "ambiguous_match" }

// PayloadValidationError lists the ways a payload violates the request schema.
type PayloadValidationError struct {
	Path     string
	Method   string
	Problems []string
}

func (e *PayloadValidationError) Error() string {
	return fmt.Sprintf("payload for %s %s is invalid: %s", e.Method, e.Path, strings.Join(e.Problems, "; "))
}

func (e *PayloadValidationError) Kind() string { return "payload_validation" }

// PathTemplateError is returned when path parameters cannot fill the
// placeholders of the matched path.
type PathTemplateError struct {
	Path    string
	Missing []string
	Cause   error
}

func (e *PathTemplateError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cannot expand path %s: %v", e.Path, e.Cause)
	}
	return fmt.Sprintf("cannot expand path %s: missing %s", e.Path, strings.Join(e.Missing, ", "))
}

func (e *PathTemplateError) Kind() string { return "path_template" }

func (e *PathTemplateError) Unwrap() error { return e.Cause }
