package index

import "fmt"

// MalformedSchemaError reports a document whose paths section cannot be indexed.
type MalformedSchemaError struct {
	Path   string
	Method string
	Reason string
}

func (e *MalformedSchemaError) Error() string {
	switch {
	case e.Path != "" && e.Method != "":
		return fmt.Sprintf("malformed schema at %s %s: %s", e.Method, e.Path, e.Reason)
	case e.Path != "":
		return fmt.Sprintf("malformed schema at %s: %s", e.Path, e.Reason)
	default:
		return "malformed schema: " + e.Reason
	}
}

// Kind returns the error classification used by front-ends.
func (e *MalformedSchemaError) Kind() string { return "malformed_schema" }
