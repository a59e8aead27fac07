// ABOUTME: Tool input schemas reflected from tagged Go structs via invopop/jsonschema
// ABOUTME: Shallow validation: required fields, primitive types, and enums

package packs

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/invopop/jsonschema"
)

// ErrInvalidParams indicates tool params do not satisfy the tool's schema
var ErrInvalidParams = errors.New("invalid params")

// Schema is the subset of JSON Schema advertised for tool inputs
type Schema struct {
	Type                 string               `json:"type"`
	Properties           map[string]*Property `json:"properties"`
	Required             []string             `json:"required,omitempty"`
	AdditionalProperties bool                 `json:"additionalProperties"`
}

// Property describes one field of a tool input
type Property struct {
	Type        string    `json:"type,omitempty"`
	Description string    `json:"description,omitempty"`
	Enum        []any     `json:"enum,omitempty"`
	Items       *Property `json:"items,omitempty"`
}

// SchemaFor reflects the input schema for params struct P.
// Fields tagged omitempty are optional; all others are required.
func SchemaFor[P any]() *Schema {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	s := r.Reflect(new(P))

	out := &Schema{
		Type:                 "object",
		Properties:           map[string]*Property{},
		AdditionalProperties: true,
	}
	if s == nil || s.Type != "object" {
		return out
	}

	if s.Properties != nil {
		for el := s.Properties.Oldest(); el != nil; el = el.Next() {
			out.Properties[el.Key] = toProperty(el.Value)
		}
	}
	if len(s.Required) > 0 {
		out.Required = append(out.Required, s.Required...)
	}
	return out
}

func toProperty(s *jsonschema.Schema) *Property {
	if s == nil {
		return &Property{}
	}
	p := &Property{
		Type:        s.Type,
		Description: s.Description,
	}
	if len(s.Enum) > 0 {
		p.Enum = s.Enum
	}
	if s.Type == "array" && s.Items != nil {
		p.Items = toProperty(s.Items)
	}
	return p
}

// Validate checks params against the schema. Unknown fields are ignored and
// a null value for an optional field counts as absent.
func (s *Schema) Validate(params map[string]any) error {
	if s == nil {
		return nil
	}

	for _, name := range s.Required {
		v, ok := params[name]
		if !ok || v == nil {
			return fmt.Errorf("%w: missing required field '%s'", ErrInvalidParams, name)
		}
	}

	for name, prop := range s.Properties {
		v, ok := params[name]
		if !ok || v == nil {
			continue
		}
		if prop.Type != "" && !matchesType(prop.Type, v) {
			return fmt.Errorf("%w: field '%s' must be of type %s", ErrInvalidParams, name, prop.Type)
		}
		if len(prop.Enum) > 0 && !slices.ContainsFunc(prop.Enum, func(e any) bool { return enumEqual(e, v) }) {
			return fmt.Errorf("%w: field '%s' must be one of %v", ErrInvalidParams, name, prop.Enum)
		}
	}
	return nil
}

func matchesType(typ string, v any) bool {
	switch typ {
	case "string":
		_, ok := v.(string)
		return ok
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "integer":
		f, ok := toFloat(v)
		return ok && f == math.Trunc(f) && !math.IsInf(f, 0)
	case "number":
		_, ok := toFloat(v)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	case "array":
		_, ok := v.([]any)
		return ok
	default:
		return true
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func enumEqual(e, v any) bool {
	if ef, ok := toFloat(e); ok {
		vf, ok := toFloat(v)
		return ok && ef == vf
	}
	return e == v
}
