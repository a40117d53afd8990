package index

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Summary describes the shape of an index.
type Summary struct {
	Total     int            `json:"total"`
	Methods   map[string]int `json:"methods"`
	Resources map[string]int `json:"resources"`
	WithBody  int            `json:"with_request_body"`
}

// Summary counts entries per method and per top-level path segment.
func (idx *SchemaIndex) Summary() Summary {
	s := Summary{
		Total:     len(idx.entries),
		Methods:   map[string]int{},
		Resources: map[string]int{},
	}
	for _, e := range idx.entries {
		s.Methods[e.Method]++
		s.Resources[resource(e.Path)]++
		if e.RequestSchema != nil {
			s.WithBody++
		}
	}
	return s
}

func resource(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "/"
	}
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[:i]
	}
	return trimmed
}

// Print writes a human-readable summary, for example:
//
//	Total endpoints: 12
//	Methods:
//	  GET: 8
//	  POST: 4
//	Resources:
//	  agents: 9
//	  clients: 3
func (s Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "Total endpoints: %d\n", s.Total)
	if len(s.Methods) > 0 {
		fmt.Fprintln(w, "Methods:")
		for _, m := range methodOrder {
			upper := strings.ToUpper(m)
			if n := s.Methods[upper]; n > 0 {
				fmt.Fprintf(w, "  %s: %d\n", upper, n)
			}
		}
	}
	if len(s.Resources) > 0 {
		fmt.Fprintln(w, "Resources:")
		names := make([]string, 0, len(s.Resources))
		for name := range s.Resources {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %s: %d\n", name, s.Resources[name])
		}
	}
}
