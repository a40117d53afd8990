// Package matcher resolves free-text queries against a schema index.
package matcher

import (
	"fmt"
	"strings"

	"github.com/Nels2/mcp-trmm/pkg/index"
	"github.com/Nels2/mcp-trmm/pkg/models"
)

// NoMatchError is returned when a query selects no entry.
type NoMatchError struct {
	Query  string
	Method string
}

func (e *NoMatchError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("no %s endpoint matches %q", e.Method, e.Query)
	}
	return fmt.Sprintf("no endpoint matches %q", e.Query)
}

// Kind returns the error classification used by front-ends.
func (e *NoMatchError) Kind() string { return "no_match" }

// MatchResult is the ordered set of entries relevant to one query.
type MatchResult struct {
	query   string
	entries []models.EndpointSpec
}

// Resolve runs query against idx. Zero candidates is a *NoMatchError.
func Resolve(idx *index.SchemaIndex, query string) (*MatchResult, error) {
	entries := idx.Query(query)
	if len(entries) == 0 {
		return nil, &NoMatchError{Query: query}
	}
	return &MatchResult{query: query, entries: entries}, nil
}

// Query returns the query the result was resolved from.
func (r *MatchResult) Query() string { return r.query }

// Len returns the number of candidates.
func (r *MatchResult) Len() int { return len(r.entries) }

// Entries returns the candidates in index order.
func (r *MatchResult) Entries() []models.EndpointSpec {
	out := make([]models.EndpointSpec, len(r.entries))
	copy(out, r.entries)
	return out
}

// Candidates returns the listing view of every candidate.
func (r *MatchResult) Candidates() []models.Candidate {
	out := make([]models.Candidate, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Candidate()
	}
	return out
}

// First returns the first candidate in index order.
func (r *MatchResult) First() models.EndpointSpec {
	return r.entries[0]
}

// WithMethod selects the candidate for an explicit method. An entry whose
// path equals the query wins over the first entry carrying the method.
func (r *MatchResult) WithMethod(method string) (models.EndpointSpec, error) {
	method = strings.ToUpper(method)
	var first *models.EndpointSpec
	for i := range r.entries {
		e := &r.entries[i]
		if e.Method != method {
			continue
		}
		if e.Path == r.query {
			return *e, nil
		}
		if first == nil {
			first = e
		}
	}
	if first == nil {
		return models.EndpointSpec{}, &NoMatchError{Query: r.query, Method: method}
	}
	return *first, nil
}

// Exact returns the single candidate whose path equals the query.
func (r *MatchResult) Exact() (models.EndpointSpec, bool) {
	var found *models.EndpointSpec
	for i := range r.entries {
		if r.entries[i].Path != r.query {
			continue
		}
		if found != nil {
			return models.EndpointSpec{}, false
		}
		found = &r.entries[i]
	}
	if found == nil {
		return models.EndpointSpec{}, false
	}
	return *found, true
}

// Ambiguous reports whether a method-less selection has more than one
// reasonable answer: several candidates and no single exact path match.
func (r *MatchResult) Ambiguous() bool {
	if len(r.entries) < 2 {
		return false
	}
	_, ok := r.Exact()
	return !ok
}
