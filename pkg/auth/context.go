package auth

import (
	"context"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
)

// DefaultCredentialHeader carries the upstream API key.
const DefaultCredentialHeader = "X-API-KEY"

type contextKey string

const (
	credentialContextKey contextKey = "credential"
	headerContextKey     contextKey = "credential_header"
)

// WithCredential returns a context carrying the upstream credential for one call.
func WithCredential(ctx context.Context, credential string) context.Context {
	return context.WithValue(ctx, credentialContextKey, credential)
}

// CredentialFromContext returns the credential stored by WithCredential.
func CredentialFromContext(ctx context.Context) (string, bool) {
	credential, ok := ctx.Value(credentialContextKey).(string)
	return credential, ok && credential != ""
}

// WithCredentialHeader returns a context naming the header the credential
// travels in for one call, overriding the provider default.
func WithCredentialHeader(ctx context.Context, header string) context.Context {
	return context.WithValue(ctx, headerContextKey, header)
}

// CredentialHeaderFromContext returns the header stored by WithCredentialHeader.
func CredentialHeaderFromContext(ctx context.Context) (string, bool) {
	header, ok := ctx.Value(headerContextKey).(string)
	return header, ok && header != ""
}

// Scheme describes how a schema document expects callers to authenticate.
type Scheme struct {
	Name  string // security scheme name in components
	Type  string // apiKey, bearer or basic
	In    string // header or query
	Param string
}

// ExtractAuthScheme returns the first usable security scheme of doc, in
// sorted scheme-name order.
func ExtractAuthScheme(doc *openapi3.T) (Scheme, bool) {
	if doc == nil || doc.Components == nil || doc.Components.SecuritySchemes == nil {
		return Scheme{}, false
	}

	for _, schemeName := range sortedKeys(doc.Components.SecuritySchemes) {
		schemeRef := doc.Components.SecuritySchemes[schemeName]
		if schemeRef == nil || schemeRef.Value == nil {
			continue
		}
		switch schemeRef.Value.Type {
		case "apiKey":
			location := "header"
			if schemeRef.Value.In == "query" {
				location = "query"
			}
			return Scheme{Name: schemeName, Type: "apiKey", In: location, Param: schemeRef.Value.Name}, true
		case "http":
			switch schemeRef.Value.Scheme {
			case "bearer", "basic":
				return Scheme{Name: schemeName, Type: schemeRef.Value.Scheme, In: "header", Param: "Authorization"}, true
			}
		}
	}
	return Scheme{}, false
}

// CredentialHeader returns the header an API key should travel in, or ""
// when doc declares no header apiKey scheme.
func CredentialHeader(doc *openapi3.T) string {
	scheme, ok := ExtractAuthScheme(doc)
	if !ok || scheme.Type != "apiKey" || scheme.In != "header" || scheme.Param == "" {
		return ""
	}
	return scheme.Param
}

func sortedKeys(schemes openapi3.SecuritySchemes) []string {
	keys := make([]string, 0, len(schemes))
	for k := range schemes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
