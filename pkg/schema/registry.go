// Package schema serves stream JSON schemas from an OpenAPI document.
// Records are never validated against these schemas; they are only
// attached to SCHEMA messages.
package schema

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/tap-leaflink/pkg/errors"
	jsonpool "github.com/ajitpratap0/tap-leaflink/pkg/json"
)

// maxRefDepth bounds $ref inlining for deeply nested documents.
const maxRefDepth = 32

// Ref prefixes for OpenAPI 3 and Swagger 2 documents.
const (
	componentsRef  = "#/components/schemas/"
	definitionsRef = "#/definitions/"
)

// Registry resolves schema keys to self-contained JSON schemas.
type Registry struct {
	schemas map[string]interface{}
}

// Empty returns a registry without a document; every lookup yields the
// permissive object schema.
func Empty() *Registry {
	return &Registry{schemas: map[string]interface{}{}}
}

// Load reads an OpenAPI document. Files ending in .yaml or .yml are parsed
// as YAML, anything else as JSON.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from configuration
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read schema document").
			WithDetail("path", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

// ParseJSON builds a registry from a JSON OpenAPI document.
func ParseJSON(data []byte) (*Registry, error) {
	var doc map[string]interface{}
	if err := jsonpool.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse schema document")
	}
	return fromDocument(doc), nil
}

// ParseYAML builds a registry from a YAML OpenAPI document.
func ParseYAML(data []byte) (*Registry, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse schema document")
	}
	return fromDocument(doc), nil
}

func fromDocument(doc map[string]interface{}) *Registry {
	r := Empty()
	if components, ok := doc["components"].(map[string]interface{}); ok {
		if schemas, ok := components["schemas"].(map[string]interface{}); ok {
			for k, v := range schemas {
				r.schemas[k] = v
			}
		}
	}
	if defs, ok := doc["definitions"].(map[string]interface{}); ok {
		for k, v := range defs {
			if _, exists := r.schemas[k]; !exists {
				r.schemas[k] = v
			}
		}
	}
	return r
}

// Len returns the number of named schemas.
func (r *Registry) Len() int {
	return len(r.schemas)
}

// Has reports whether the document defines key.
func (r *Registry) Has(key string) bool {
	_, ok := r.schemas[key]
	return ok
}

// Lookup returns the schema for key with every $ref inlined. Unknown keys
// get {"type": "object"}. The result is a fresh copy.
func (r *Registry) Lookup(key string) map[string]interface{} {
	s, ok := r.schemas[key]
	if !ok {
		return objectSchema()
	}
	resolved, ok := r.resolve(s, map[string]bool{key: true}, 0).(map[string]interface{})
	if !ok {
		return objectSchema()
	}
	return resolved
}

func objectSchema() map[string]interface{} {
	return map[string]interface{}{"type": "object"}
}

// resolve deep-copies v, replacing local $refs with their targets. A ref
// that is already being expanded (a cycle) or too deep becomes an open
// object schema.
func (r *Registry) resolve(v interface{}, expanding map[string]bool, depth int) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		if ref, ok := t["$ref"].(string); ok {
			name, local := refName(ref)
			target, found := r.schemas[name]
			if !local || !found || expanding[name] || depth >= maxRefDepth {
				return objectSchema()
			}
			expanding[name] = true
			out := r.resolve(target, expanding, depth+1)
			delete(expanding, name)
			return out
		}
		out := make(map[string]interface{}, len(t))
		for k, child := range t {
			out[k] = r.resolve(child, expanding, depth+1)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, child := range t {
			out[i] = r.resolve(child, expanding, depth+1)
		}
		return out
	default:
		return t
	}
}

func refName(ref string) (string, bool) {
	for _, prefix := range []string{componentsRef, definitionsRef} {
		if strings.HasPrefix(ref, prefix) {
			return strings.TrimPrefix(ref, prefix), true
		}
	}
	return "", false
}
