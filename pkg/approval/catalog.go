package approval

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"

	"github.com/harun/taskgate/pkg/params"
)

// ToolSpec is the configured description of a tool. ExpectedParams maps a
// parameter name to its type tag.
type ToolSpec struct {
	Name             string            `json:"name,omitempty"`
	ApprovalRequired bool              `json:"approval_required"`
	ExpectedParams   map[string]string `json:"params"`
	Description      string            `json:"description"`
}

// Catalog is an immutable set of tool specs with their compiled parameter schemas
type Catalog struct {
	specs   map[string]ToolSpec
	schemas map[string]*gojsonschema.Schema
}

// NewCatalog compiles a catalog from specs keyed by tool name
func NewCatalog(specs map[string]ToolSpec) (*Catalog, error) {
	c := &Catalog{
		specs:   make(map[string]ToolSpec, len(specs)),
		schemas: make(map[string]*gojsonschema.Schema, len(specs)),
	}

	for name, spec := range specs {
		if name == "" {
			return nil, fmt.Errorf("tool spec with empty name")
		}
		spec.Name = name

		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(paramSchema(spec)))
		if err != nil {
			return nil, fmt.Errorf("invalid parameter schema for tool %s: %w", name, err)
		}

		c.specs[name] = spec
		c.schemas[name] = schema
	}

	return c, nil
}

// Lookup returns the spec for tool
func (c *Catalog) Lookup(tool string) (ToolSpec, bool) {
	if c == nil {
		return ToolSpec{}, false
	}
	spec, ok := c.specs[tool]
	return spec, ok
}

// Names returns all tool names, sorted
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.specs))
	for name := range c.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate reports whether p satisfies the declared parameters of tool, with
// the schema violations when it does not. Unknown tools are reported as invalid.
func (c *Catalog) Validate(tool string, p params.Value) (bool, []string) {
	if c == nil {
		return false, []string{"unknown tool"}
	}
	schema, ok := c.schemas[tool]
	if !ok {
		return false, []string{"unknown tool"}
	}

	doc := p.Interface()
	if p.IsNull() {
		doc = map[string]interface{}{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return false, []string{err.Error()}
	}

	// JSON schema cannot tell 3.0 from 3, the value variant can
	problems := floatsForIntegers(c.specs[tool], p)
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	if len(problems) > 0 {
		return false, problems
	}
	return true, nil
}

func floatsForIntegers(spec ToolSpec, p params.Value) []string {
	var problems []string
	for name, tag := range spec.ExpectedParams {
		if jsonType, _ := schemaType(tag); jsonType != "integer" {
			continue
		}
		if v, ok := p.Get(name); ok && v.Kind() == params.KindFloat {
			problems = append(problems, fmt.Sprintf("%s: Invalid type. Expected: integer, given: number", name))
		}
	}
	sort.Strings(problems)
	return problems
}

// paramSchema builds a JSON schema requiring every declared parameter
func paramSchema(spec ToolSpec) map[string]interface{} {
	properties := make(map[string]interface{}, len(spec.ExpectedParams))
	required := make([]string, 0, len(spec.ExpectedParams))

	for name, tag := range spec.ExpectedParams {
		prop := map[string]interface{}{}
		if jsonType, ok := schemaType(tag); ok {
			prop["type"] = jsonType
		} else {
			log.Debug().
				Str("tool", spec.Name).
				Str("param", name).
				Str("type", tag).
				Msg("Unrecognized parameter type, accepting any value")
		}
		properties[name] = prop
		required = append(required, name)
	}
	sort.Strings(required)

	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func schemaType(tag string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "string", "str":
		return "string", true
	case "integer", "int":
		return "integer", true
	case "number", "float":
		return "number", true
	case "boolean", "bool":
		return "boolean", true
	case "object", "dict":
		return "object", true
	case "array", "list":
		return "array", true
	}
	return "", false
}

// CatalogStore holds the current catalog and allows it to be swapped on reload
type CatalogStore struct {
	current atomic.Pointer[Catalog]
}

// NewCatalogStore creates a store holding c
func NewCatalogStore(c *Catalog) *CatalogStore {
	s := &CatalogStore{}
	s.current.Store(c)
	return s
}

// Current returns the catalog in effect
func (s *CatalogStore) Current() *Catalog {
	return s.current.Load()
}

// Swap replaces the catalog. Managers created earlier keep the old one.
func (s *CatalogStore) Swap(c *Catalog) {
	s.current.Store(c)
}
