package gateway

import (
	"strings"

	"github.com/yosida95/uritemplate/v3"
)

// expandPath fills {name} placeholders of path from params. Without params
// the path is returned unchanged.
func expandPath(path string, params map[string]string) (string, error) {
	if len(params) == 0 {
		return path, nil
	}
	tmpl, err := uritemplate.New(path)
	if err != nil {
		return "", &PathTemplateError{Path: path, Cause: err}
	}

	values := uritemplate.Values{}
	var missing []string
	for _, name := range tmpl.Varnames() {
		v, ok := params[name]
		if !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, name)
			continue
		}
		values.Set(name, uritemplate.String(v))
	}
	if len(missing) > 0 {
		return "", &PathTemplateError{Path: path, Missing: missing}
	}

	expanded, err := tmpl.Expand(values)
	if err != nil {
		return "", &PathTemplateError{Path: path, Cause: err}
	}
	return expanded, nil
}
