package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"

	"sipnread/api/internal/apperr"
)

type Type string

const (
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
)

const FormatURI = "uri"

// Schema is a declarative contract for one JSON value. The same declaration
// validates incoming values and is handed to Gemini as the response schema.
type Schema struct {
	Type        Type
	Description string
	Nullable    bool

	// object
	Properties map[string]*Schema
	Required   []string

	// array
	Items    *Schema
	MaxItems *int
	MinItems *int

	// string
	Enum      []string
	Format    string
	MinLength *int
	MaxLength *int

	// integer / number
	Minimum *float64
	Maximum *float64
}

func Int(v int) *int { return &v }

func Float(v float64) *float64 { return &v }

// Side selects the error flavour: inputs fail with ValidationError,
// model outputs with SchemaValidationError.
type Side int

const (
	Input Side = iota
	Output
)

// Validate checks a decoded JSON value (map[string]any, []any, float64, ...).
func (s *Schema) Validate(side Side, v any) error {
	return s.validate(side, "", v)
}

// ValidateJSON decodes raw JSON and validates it.
func (s *Schema) ValidateJSON(side Side, raw []byte) (any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fail(side, "", "json", err.Error())
	}
	if err := s.validate(side, "", v); err != nil {
		return nil, err
	}
	return v, nil
}

// ValidateValue round-trips a Go value through JSON and validates the result.
func (s *Schema) ValidateValue(side Side, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fail(side, "", "json", err.Error())
	}
	_, err = s.ValidateJSON(side, b)
	return err
}

func (s *Schema) validate(side Side, path string, v any) error {
	if v == nil {
		if s.Nullable {
			return nil
		}
		return fail(side, path, "type", "expected "+string(s.Type)+", got null")
	}

	switch s.Type {
	case TypeObject:
		obj, ok := v.(map[string]any)
		if !ok {
			return fail(side, path, "type", "expected object")
		}
		for _, name := range s.Required {
			if _, ok := obj[name]; !ok {
				return fail(side, join(path, name), "required", "")
			}
		}
		for _, name := range sortedKeys(s.Properties) {
			val, ok := obj[name]
			if !ok {
				continue
			}
			if err := s.Properties[name].validate(side, join(path, name), val); err != nil {
				return err
			}
		}
	case TypeArray:
		arr, ok := v.([]any)
		if !ok {
			return fail(side, path, "type", "expected array")
		}
		if s.MaxItems != nil && len(arr) > *s.MaxItems {
			return fail(side, path, "maxItems", fmt.Sprintf("%d > %d", len(arr), *s.MaxItems))
		}
		if s.MinItems != nil && len(arr) < *s.MinItems {
			return fail(side, path, "minItems", fmt.Sprintf("%d < %d", len(arr), *s.MinItems))
		}
		if s.Items != nil {
			for i, el := range arr {
				if err := s.Items.validate(side, path+"["+strconv.Itoa(i)+"]", el); err != nil {
					return err
				}
			}
		}
	case TypeString:
		str, ok := v.(string)
		if !ok {
			return fail(side, path, "type", "expected string")
		}
		n := utf8.RuneCountInString(str)
		if s.MinLength != nil && n < *s.MinLength {
			return fail(side, path, "minLength", fmt.Sprintf("%d < %d", n, *s.MinLength))
		}
		if s.MaxLength != nil && n > *s.MaxLength {
			return fail(side, path, "maxLength", fmt.Sprintf("%d > %d", n, *s.MaxLength))
		}
		if len(s.Enum) > 0 && !contains(s.Enum, str) {
			return fail(side, path, "enum", fmt.Sprintf("%q not in %v", str, s.Enum))
		}
		if s.Format == FormatURI && !isURL(str) {
			return fail(side, path, "format", "expected absolute http(s) url")
		}
	case TypeInteger, TypeNumber:
		num, ok := v.(float64)
		if !ok {
			return fail(side, path, "type", "expected "+string(s.Type))
		}
		if s.Type == TypeInteger && num != math.Trunc(num) {
			return fail(side, path, "type", "expected integer")
		}
		if s.Minimum != nil && num < *s.Minimum {
			return fail(side, path, "minimum", fmt.Sprintf("%v < %v", num, *s.Minimum))
		}
		if s.Maximum != nil && num > *s.Maximum {
			return fail(side, path, "maximum", fmt.Sprintf("%v > %v", num, *s.Maximum))
		}
	case TypeBoolean:
		if _, ok := v.(bool); !ok {
			return fail(side, path, "type", "expected boolean")
		}
	default:
		return fail(side, path, "type", "unknown schema type "+string(s.Type))
	}
	return nil
}

// Genai converts the declaration into Gemini's response schema. Constraints
// Gemini does not understand (lengths, ranges, url format) stay local.
func (s *Schema) Genai() *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Description: s.Description,
		Nullable:    s.Nullable,
	}
	switch s.Type {
	case TypeObject:
		out.Type = genai.TypeObject
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, p := range s.Properties {
			out.Properties[name] = p.Genai()
		}
		out.Required = append([]string(nil), s.Required...)
	case TypeArray:
		out.Type = genai.TypeArray
		out.Items = s.Items.Genai()
	case TypeString:
		out.Type = genai.TypeString
		if len(s.Enum) > 0 {
			out.Format = "enum"
			out.Enum = append([]string(nil), s.Enum...)
		}
	case TypeInteger:
		out.Type = genai.TypeInteger
	case TypeNumber:
		out.Type = genai.TypeNumber
	case TypeBoolean:
		out.Type = genai.TypeBoolean
	}
	return out
}

func fail(side Side, path, constraint, detail string) error {
	if path == "" {
		path = "$"
	}
	if side == Output {
		return &apperr.SchemaValidationError{Field: path, Constraint: constraint, Detail: detail}
	}
	return &apperr.ValidationError{Field: path, Constraint: constraint, Detail: detail}
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func isURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]*Schema) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
