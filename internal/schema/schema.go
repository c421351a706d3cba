// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package schema validates metadata documents against an enumerated field
// schema. Validation is pure and total: malformed input produces violation
// values, never a panic or an error return, and documents are never mutated.
package schema

import (
	"fmt"
	"sort"
	"time"
)

// FieldType enumerates the value types a metadata field may carry.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeInt    FieldType = "int"
	TypeFloat  FieldType = "float"
	TypeBool   FieldType = "bool"
	TypeTime   FieldType = "time"
	TypeList   FieldType = "list"
	TypeMap    FieldType = "map"
)

// FieldSpec describes one schema field.
type FieldSpec struct {
	Required bool
	Type     FieldType

	// Default is substituted by ApplyDefaults when an optional field is
	// absent. Nil means no default.
	Default any
}

// Schema maps field names to their specifications.
type Schema map[string]FieldSpec

// ViolationKind tags the category of a schema violation.
type ViolationKind string

const (
	MissingRequired ViolationKind = "missing-required"
	WrongType       ViolationKind = "wrong-type"
	UnknownField    ViolationKind = "unknown-field"
)

// Violation is one schema check failure. A document with zero violations
// is valid.
type Violation struct {
	Kind  ViolationKind
	Field string

	// Want and Got describe the type mismatch for WrongType violations.
	Want FieldType
	Got  string
}

func (v Violation) String() string {
	switch v.Kind {
	case MissingRequired:
		return fmt.Sprintf("missing required field %q", v.Field)
	case WrongType:
		return fmt.Sprintf("field %q has type %s, want %s", v.Field, v.Got, v.Want)
	case UnknownField:
		return fmt.Sprintf("unknown field %q", v.Field)
	default:
		return fmt.Sprintf("field %q: %s", v.Field, v.Kind)
	}
}

// Validate checks fields against the schema and returns all violations in
// field-name order. In strict mode fields absent from the schema are
// violations; otherwise they are ignored (and preserved by the store).
func Validate(fields map[string]any, s Schema, strict bool) []Violation {
	var out []Violation

	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := s[name]
		value, present := fields[name]
		if !present || value == nil {
			if spec.Required {
				out = append(out, Violation{Kind: MissingRequired, Field: name})
			}
			continue
		}
		if !typeMatches(value, spec.Type) {
			out = append(out, Violation{
				Kind:  WrongType,
				Field: name,
				Want:  spec.Type,
				Got:   typeName(value),
			})
		}
	}

	if strict {
		extra := make([]string, 0)
		for name := range fields {
			if _, known := s[name]; !known {
				extra = append(extra, name)
			}
		}
		sort.Strings(extra)
		for _, name := range extra {
			out = append(out, Violation{Kind: UnknownField, Field: name})
		}
	}

	return out
}

// ApplyDefaults returns a copy of fields with schema defaults substituted
// for absent optional fields. The input map is not modified.
func ApplyDefaults(fields map[string]any, s Schema) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	for name, spec := range s {
		if _, present := out[name]; !present && spec.Default != nil {
			out[name] = spec.Default
		}
	}
	return out
}

// typeMatches reports whether a YAML-decoded value satisfies the declared
// field type. YAML decoding yields int, int64, float64, bool, string,
// time.Time, []any, and map[string]any.
func typeMatches(value any, t FieldType) bool {
	switch t {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeInt:
		switch value.(type) {
		case int, int64, uint64:
			return true
		}
		return false
	case TypeFloat:
		switch value.(type) {
		case float64, float32, int, int64:
			return true
		}
		return false
	case TypeBool:
		_, ok := value.(bool)
		return ok
	case TypeTime:
		switch v := value.(type) {
		case time.Time:
			return true
		case string:
			_, err := time.Parse(time.RFC3339, v)
			return err == nil
		}
		return false
	case TypeList:
		switch value.(type) {
		case []any, []string:
			return true
		}
		return false
	case TypeMap:
		switch value.(type) {
		case map[string]any, map[any]any:
			return true
		}
		return false
	default:
		return false
	}
}

func typeName(value any) string {
	switch value.(type) {
	case string:
		return "string"
	case int, int64, uint64:
		return "int"
	case float32, float64:
		return "float"
	case bool:
		return "bool"
	case time.Time:
		return "time"
	case []any, []string:
		return "list"
	case map[string]any, map[any]any:
		return "map"
	default:
		return fmt.Sprintf("%T", value)
	}
}
