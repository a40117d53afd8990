package gateway

import (
	"github.com/xeipuuv/gojsonschema"

	"github.com/Nels2/mcp-trmm/pkg/forward"
	"github.com/Nels2/mcp-trmm/pkg/logging"
	"github.com/Nels2/mcp-trmm/pkg/models"
)

// validatePayload checks payload against the entry request schema. Entries
// without a schema, methods without a body and schemas that do not compile
// (for example unresolved $ref pointers) are not checked.
func validatePayload(entry models.EndpointSpec, payload any, logger *logging.Logger) error {
	method, err := forward.ParseMethod(entry.Method)
	if err != nil || !method.SendsBody() || entry.RequestSchema == nil {
		return nil
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(entry.RequestSchema))
	if err != nil {
		logger.Debug("Request schema does not compile, skipping validation",
			"method", entry.Method,
			"path", entry.Path,
			"error", err,
		)
		return nil
	}

	if payload == nil {
		payload = map[string]any{}
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(payload))
	if err != nil {
		return &PayloadValidationError{Path: entry.Path, Method: entry.Method, Problems: []string{err.Error()}}
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return &PayloadValidationError{Path: entry.Path, Method: entry.Method, Problems: problems}
}
