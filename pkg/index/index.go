// Package index turns a schema document into an immutable, queryable list of
// endpoints.
package index

import (
	"fmt"
	"strings"
	"time"

	"github.com/Nels2/mcp-trmm/pkg/document"
	"github.com/Nels2/mcp-trmm/pkg/models"
)

// SchemaIndex is an ordered, read-only collection of endpoints. It is never
// mutated after construction and may be shared between goroutines.
type SchemaIndex struct {
	entries []models.EndpointSpec
	byKey   map[models.EndpointKey]int
	builtAt time.Time
}

// methodOrder is the canonical order used when a path item is a plain Go map.
var methodOrder = []string{"get", "post", "put", "patch", "delete", "head", "options", "trace"}

var operationMethods = func() map[string]bool {
	m := make(map[string]bool, len(methodOrder))
	for _, method := range methodOrder {
		m[method] = true
	}
	return m
}()

// pathItemFields are keys allowed next to operations in a path item.
var pathItemFields = map[string]bool{
	"parameters":  true,
	"summary":     true,
	"description": true,
	"servers":     true,
	"$ref":        true,
}

// Build indexes the paths section of doc. doc may be a document.Map, a
// map[string]any or a map[any]any.
func Build(doc any) (*SchemaIndex, error) {
	root, ok := document.Fields(doc)
	if !ok {
		return nil, &MalformedSchemaError{Reason: "document is not a mapping"}
	}
	rawPaths, ok := root.Get("paths")
	if !ok {
		return nil, &MalformedSchemaError{Reason: "document has no paths section"}
	}
	paths, ok := document.Fields(rawPaths)
	if !ok {
		return nil, &MalformedSchemaError{Reason: "paths is not a mapping"}
	}

	var entries []models.EndpointSpec
	for _, p := range paths {
		item, ok := document.Fields(p.Value)
		if !ok {
			return nil, &MalformedSchemaError{Path: p.Key, Reason: "path item is not a mapping"}
		}
		if _, ordered := p.Value.(document.Map); !ordered {
			item = canonicalOrder(item)
		}
		for _, op := range item {
			method := strings.ToLower(op.Key)
			if !operationMethods[method] {
				if pathItemFields[op.Key] || strings.HasPrefix(op.Key, "x-") {
					continue
				}
				return nil, &MalformedSchemaError{Path: p.Key, Reason: fmt.Sprintf("unexpected key %q", op.Key)}
			}
			operation, ok := document.Fields(op.Value)
			if !ok {
				return nil, &MalformedSchemaError{
					Path:   p.Key,
					Method: strings.ToUpper(method),
					Reason: "operation is not a mapping",
				}
			}
			entries = append(entries, buildEntry(p.Key, method, operation))
		}
	}
	return newIndex(entries), nil
}

// FromEntries builds an index from already extracted entries, for instance
// rows loaded from storage. Methods are uppercased and the first occurrence
// of a duplicate (path, method) pair wins.
func FromEntries(entries []models.EndpointSpec) (*SchemaIndex, error) {
	normalized := make([]models.EndpointSpec, 0, len(entries))
	for _, e := range entries {
		if e.Path == "" {
			return nil, &MalformedSchemaError{Reason: "entry without path"}
		}
		method := strings.ToLower(e.Method)
		if !operationMethods[method] {
			return nil, &MalformedSchemaError{Path: e.Path, Method: e.Method, Reason: "unknown method"}
		}
		e.Method = strings.ToUpper(method)
		if e.Description == "" {
			e.Description = models.DefaultDescription
		}
		if e.ResponseSummary == nil {
			e.ResponseSummary = map[string]string{}
		}
		normalized = append(normalized, e)
	}
	return newIndex(normalized), nil
}

func newIndex(entries []models.EndpointSpec) *SchemaIndex {
	idx := &SchemaIndex{
		entries: make([]models.EndpointSpec, 0, len(entries)),
		byKey:   make(map[models.EndpointKey]int, len(entries)),
		builtAt: time.Now(),
	}
	for _, e := range entries {
		key := e.Key()
		if _, dup := idx.byKey[key]; dup {
			continue
		}
		idx.byKey[key] = len(idx.entries)
		idx.entries = append(idx.entries, e)
	}
	return idx
}

func canonicalOrder(item document.Map) document.Map {
	out := make(document.Map, 0, len(item))
	for _, method := range methodOrder {
		for _, f := range item {
			if strings.ToLower(f.Key) == method {
				out = append(out, f)
			}
		}
	}
	for _, f := range item {
		if !operationMethods[strings.ToLower(f.Key)] {
			out = append(out, f)
		}
	}
	return out
}

// Query returns the entries whose path contains substr, ignoring case,
// in index order. An empty substr matches every entry.
func (idx *SchemaIndex) Query(substr string) []models.EndpointSpec {
	needle := strings.ToLower(substr)
	var out []models.EndpointSpec
	for _, e := range idx.entries {
		if strings.Contains(strings.ToLower(e.Path), needle) {
			out = append(out, e)
		}
	}
	return out
}

// Lookup returns the entry for an exact path and method.
func (idx *SchemaIndex) Lookup(path, method string) (models.EndpointSpec, bool) {
	i, ok := idx.byKey[models.EndpointKey{Path: path, Method: strings.ToUpper(method)}]
	if !ok {
		return models.EndpointSpec{}, false
	}
	return idx.entries[i], true
}

// Len returns the number of entries.
func (idx *SchemaIndex) Len() int { return len(idx.entries) }

// Entries returns a copy of the entry list in index order.
func (idx *SchemaIndex) Entries() []models.EndpointSpec {
	out := make([]models.EndpointSpec, len(idx.entries))
	copy(out, idx.entries)
	return out
}

// BuiltAt returns the construction time of the index.
func (idx *SchemaIndex) BuiltAt() time.Time { return idx.builtAt }
