package index

import (
	"strings"

	"github.com/spf13/cast"

	"github.com/Nels2/mcp-trmm/pkg/document"
	"github.com/Nels2/mcp-trmm/pkg/models"
)

func buildEntry(path, method string, op document.Map) models.EndpointSpec {
	return models.EndpointSpec{
		Path:            path,
		Method:          strings.ToUpper(method),
		Description:     description(op),
		RequestSchema:   requestSchema(op),
		ResponseSummary: responseSummary(op),
	}
}

func description(op document.Map) string {
	raw, ok := op.Get("description")
	if !ok || raw == nil {
		return models.DefaultDescription
	}
	desc := cast.ToString(raw)
	if desc == "" {
		return models.DefaultDescription
	}
	return desc
}

// requestSchema extracts requestBody.content["application/json"].schema.
// Missing or empty schemas yield nil.
func requestSchema(op document.Map) map[string]any {
	var cur any = op
	for _, key := range []string{"requestBody", "content", "application/json", "schema"} {
		fields, ok := document.Fields(cur)
		if !ok {
			return nil
		}
		if cur, ok = fields.Get(key); !ok {
			return nil
		}
	}
	schema := document.PlainMap(cur)
	if len(schema) == 0 {
		return nil
	}
	return schema
}

func responseSummary(op document.Map) map[string]string {
	summary := map[string]string{}
	raw, ok := op.Get("responses")
	if !ok {
		return summary
	}
	responses, ok := document.Fields(raw)
	if !ok {
		return summary
	}
	for _, r := range responses {
		desc := models.DefaultResponseDescription
		if fields, ok := document.Fields(r.Value); ok {
			if v, ok := fields.Get("description"); ok && v != nil {
				if s := cast.ToString(v); s != "" {
					desc = s
				}
			}
		}
		summary[r.Key] = desc
	}
	return summary
}
