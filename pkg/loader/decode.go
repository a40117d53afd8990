package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Nels2/mcp-trmm/pkg/document"
)

// Decode parses a YAML or JSON document into an ordered mapping. Duplicate
// keys keep their first value.
func Decode(data []byte) (document.Map, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	v, err := fromNode(&root)
	if err != nil {
		return nil, err
	}
	m, ok := v.(document.Map)
	if !ok {
		return nil, fmt.Errorf("document root is not a mapping")
	}
	return m, nil
}

func fromNode(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return fromNode(n.Content[0])
	case yaml.AliasNode:
		return fromNode(n.Alias)
	case yaml.SequenceNode:
		list := make([]any, 0, len(n.Content))
		for _, item := range n.Content {
			v, err := fromNode(item)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	case yaml.MappingNode:
		return fromMapping(n)
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("line %d: unsupported node kind %d", n.Line, n.Kind)
	}
}

func fromMapping(n *yaml.Node) (document.Map, error) {
	m := make(document.Map, 0, len(n.Content)/2)
	seen := make(map[string]bool, len(n.Content)/2)
	add := func(key string, value any) {
		if seen[key] {
			return
		}
		seen[key] = true
		m = append(m, document.Field{Key: key, Value: value})
	}

	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: mapping key is not a scalar", k.Line)
		}
		value, err := fromNode(v)
		if err != nil {
			return nil, err
		}
		if k.Tag == "!!merge" {
			if merged, ok := value.(document.Map); ok {
				for _, f := range merged {
					add(f.Key, f.Value)
				}
			}
			continue
		}
		add(k.Value, value)
	}
	return m, nil
}

// DetectFormat reports "json" or "yaml" for a document, preferring the
// source extension and falling back to the first non-space byte.
func DetectFormat(source string, data []byte) string {
	lower := strings.ToLower(source)
	switch {
	case strings.HasSuffix(lower, ".json"):
		return "json"
	case strings.HasSuffix(lower, ".yaml"), strings.HasSuffix(lower, ".yml"):
		return "yaml"
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		return "json"
	}
	return "yaml"
}

// ToJSON encodes doc as JSON, keeping key order.
func ToJSON(doc document.Map, indent string) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	if indent == "" {
		return data, nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", indent); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// ToYAML encodes doc as YAML, keeping key order.
func ToYAML(doc document.Map) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(toNode(doc)); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toNode(v any) *yaml.Node {
	switch val := v.(type) {
	case document.Map:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, f := range val {
			n.Content = append(n.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Key},
				toNode(f.Value),
			)
		}
		return n
	case []any:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range val {
			n.Content = append(n.Content, toNode(item))
		}
		return n
	default:
		if fields, ok := document.Fields(v); ok {
			return toNode(fields)
		}
		n := &yaml.Node{}
		if err := n.Encode(v); err != nil {
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
		}
		return n
	}
}
