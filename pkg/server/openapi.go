package server

import (
	"net/http"
	"sync"

	"github.com/invopop/jsonschema"
)

var (
	openAPIOnce sync.Once
	openAPIDoc  map[string]any
)

// Document describes the agent interface as an OpenAPI 3 document. Request
// bodies are reflected from QueryBody and RunBody.
func Document() map[string]any {
	openAPIOnce.Do(func() {
		r := &jsonschema.Reflector{ExpandedStruct: true, DoNotReference: true}
		queryBody := r.Reflect(&QueryBody{})
		runBody := r.Reflect(&RunBody{})
		queryBody.Version = ""
		runBody.Version = ""

		bearer := []map[string][]string{{"bearerAuth": {}}}
		op := func(summary string, schema *jsonschema.Schema) map[string]any {
			return map[string]any{
				"summary":  summary,
				"tags":     []string{"RMM Tools"},
				"security": bearer,
				"requestBody": map[string]any{
					"required": true,
					"content": map[string]any{
						"application/json": map[string]any{"schema": schema},
					},
				},
				"responses": map[string]any{
					"200": map[string]any{"description": "Successful Response"},
					"401": map[string]any{"description": "Invalid or missing token"},
					"404": map[string]any{"description": "No matching endpoints found"},
				},
			}
		}

		openAPIDoc = map[string]any{
			"openapi": "3.0.3",
			"info": map[string]any{
				"title":       "TRMM API Agent",
				"version":     "1.0.4",
				"description": "Secure gateway for TRMM API usage",
			},
			"paths": map[string]any{
				"/query_api": map[string]any{"post": op("Search the API schema for an endpoint", queryBody)},
				"/run_api":   map[string]any{"post": op("Run an API call against a matched endpoint", runBody)},
			},
			"components": map[string]any{
				"securitySchemes": map[string]any{
					"bearerAuth": map[string]any{"type": "http", "scheme": "bearer"},
				},
			},
		}
	})
	return openAPIDoc
}

// HandleOpenAPI serves Document.
func HandleOpenAPI() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Document())
	}
}
