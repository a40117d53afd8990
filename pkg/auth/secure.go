package auth

import (
	"context"
	"net/http"
)

// CredentialProvider supplies per-request authentication headers without
// touching shared state.
type CredentialProvider interface {
	// Headers returns the headers to set for the request context
	Headers(ctx context.Context) map[string]string
}

// headerProvider places the context credential in its header, or the one
// named by the context, and always identifies the caller with a User-Agent.
type headerProvider struct {
	header    string
	userAgent string
}

// NewHeaderProvider creates a provider that sets header to the context
// credential and User-Agent to userAgent.
func NewHeaderProvider(header, userAgent string) CredentialProvider {
	if header == "" {
		header = DefaultCredentialHeader
	}
	return &headerProvider{header: header, userAgent: userAgent}
}

func (p *headerProvider) Headers(ctx context.Context) map[string]string {
	headers := make(map[string]string, 2)
	if p.userAgent != "" {
		headers["User-Agent"] = p.userAgent
	}
	if credential, ok := CredentialFromContext(ctx); ok {
		header := p.header
		if h, ok := CredentialHeaderFromContext(ctx); ok {
			header = h
		}
		headers[header] = credential
	}
	return headers
}

// SecureRoundTripper adds provider headers to every outgoing request.
type SecureRoundTripper struct {
	base     http.RoundTripper
	provider CredentialProvider
}

// NewSecureRoundTripper creates a new secure round tripper
func NewSecureRoundTripper(base http.RoundTripper, provider CredentialProvider) *SecureRoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}

	return &SecureRoundTripper{
		base:     base,
		provider: provider,
	}
}

// RoundTrip executes a single HTTP transaction with secure authentication
func (t *SecureRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid modifying the original
	clonedReq := req.Clone(req.Context())

	for key, value := range t.provider.Headers(req.Context()) {
		clonedReq.Header.Set(key, value)
	}

	return t.base.RoundTrip(clonedReq)
}
