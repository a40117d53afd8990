package loader

import (
	"context"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/Nels2/mcp-trmm/pkg/auth"
)

// Info is the metadata read from an OpenAPI document.
type Info struct {
	Title            string
	Version          string
	ServerURL        string
	CredentialHeader string
	AuthScheme       auth.Scheme
}

// Inspect parses data with kin-openapi and extracts its metadata. When
// validate is set the document must also pass OpenAPI validation.
func Inspect(ctx context.Context, data []byte, validate bool) (Info, error) {
	l := openapi3.NewLoader()
	l.IsExternalRefsAllowed = false
	doc, err := l.LoadFromData(data)
	if err != nil {
		return Info{}, fmt.Errorf("failed to parse OpenAPI document: %w", err)
	}

	if validate {
		if err := doc.Validate(ctx); err != nil {
			return Info{}, fmt.Errorf("OpenAPI document validation failed: %w", err)
		}
	}

	info := Info{CredentialHeader: auth.CredentialHeader(doc)}
	if doc.Info != nil {
		info.Title = doc.Info.Title
		info.Version = doc.Info.Version
	}
	if len(doc.Servers) > 0 && doc.Servers[0] != nil {
		info.ServerURL = doc.Servers[0].URL
	}
	if scheme, ok := auth.ExtractAuthScheme(doc); ok {
		info.AuthScheme = scheme
	}
	return info, nil
}
