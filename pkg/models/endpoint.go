package models

import "strings"

const (
	// DefaultDescription is used when an operation carries no description.
	DefaultDescription = "No description available"
	// DefaultResponseDescription is used when a response code carries no description.
	DefaultResponseDescription = "No description"
)

// EndpointSpec is one indexed (path, method) pair of a schema document.
type EndpointSpec struct {
	Path            string            `json:"path"`
	Method          string            `json:"method"`
	Description     string            `json:"description"`
	RequestSchema   map[string]any    `json:"request_body"`
	ResponseSummary map[string]string `json:"responses"`

	// CredentialHeader overrides the configured credential header for calls
	// to this endpoint. Empty means the configured one.
	CredentialHeader string `json:"-"`
}

// Key returns the uniqueness key of the entry.
func (e EndpointSpec) Key() EndpointKey {
	return EndpointKey{Path: e.Path, Method: strings.ToUpper(e.Method)}
}

// EndpointKey identifies an entry inside an index.
type EndpointKey struct {
	Path   string
	Method string
}

// Candidate is the reduced view returned to callers listing available paths.
type Candidate struct {
	Path        string `json:"path"`
	Description string `json:"description"`
	Method      string `json:"method"`
}

// Candidate returns the listing view of the entry.
func (e EndpointSpec) Candidate() Candidate {
	return Candidate{Path: e.Path, Description: e.Description, Method: e.Method}
}
