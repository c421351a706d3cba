// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateValidEntry(t *testing.T) {
	fields := map[string]any{
		"id":          "ocean-survey",
		"title":       "Ocean Survey",
		"description": "CTD casts from the 2025 cruise.",
		"paths":       []any{map[string]any{"location": "/projects/ocean"}},
		"owner":       "mlee",
		"tags":        []any{"oceanography"},
	}
	assert.Empty(t, Validate(fields, Entry(), false))
}

func TestValidateMissingRequired(t *testing.T) {
	fields := map[string]any{
		"id":    "ocean-survey",
		"title": "Ocean Survey",
	}
	got := Validate(fields, Entry(), false)

	missing := map[string]bool{}
	for _, v := range got {
		assert.Equal(t, MissingRequired, v.Kind)
		missing[v.Field] = true
	}
	assert.True(t, missing["description"])
	assert.True(t, missing["paths"])
	assert.True(t, missing["owner"])
}

func TestValidateWrongType(t *testing.T) {
	fields := map[string]any{
		"id":          42,
		"title":       "Ocean Survey",
		"description": "desc",
		"paths":       "not-a-list",
		"owner":       "mlee",
	}
	got := Validate(fields, Entry(), false)
	assert.Len(t, got, 2)

	byField := map[string]Violation{}
	for _, v := range got {
		byField[v.Field] = v
	}
	assert.Equal(t, WrongType, byField["id"].Kind)
	assert.Equal(t, TypeString, byField["id"].Want)
	assert.Equal(t, "int", byField["id"].Got)
	assert.Equal(t, WrongType, byField["paths"].Kind)
	assert.Equal(t, TypeList, byField["paths"].Want)
}

func TestValidateNilValueCountsAsAbsent(t *testing.T) {
	fields := map[string]any{
		"id":          "x",
		"title":       nil,
		"description": "d",
		"paths":       []any{},
		"owner":       "o",
	}
	got := Validate(fields, Entry(), false)
	assert.Len(t, got, 1)
	assert.Equal(t, MissingRequired, got[0].Kind)
	assert.Equal(t, "title", got[0].Field)
}

func TestValidateStrictUnknownField(t *testing.T) {
	fields := map[string]any{
		"id":      "toc-projects",
		"title":   "Projects",
		"scope":   map[string]any{"kind": "tier", "value": "projects"},
		"entries": []any{"proj-1"},
		"extra":   "kept by the store, flagged in strict mode",
	}

	assert.Empty(t, Validate(fields, Index(), false))

	strict := Validate(fields, Index(), true)
	assert.Len(t, strict, 1)
	assert.Equal(t, UnknownField, strict[0].Kind)
	assert.Equal(t, "extra", strict[0].Field)
}

func TestValidateDeterministicOrder(t *testing.T) {
	fields := map[string]any{"zeta": 1, "alpha": 2}
	s := Schema{
		"beta":  {Required: true, Type: TypeString},
		"alpha": {Required: false, Type: TypeString},
	}
	first := Validate(fields, s, true)
	second := Validate(fields, s, true)
	assert.Equal(t, first, second)
	// alpha wrong-type, beta missing, then unknown zeta.
	assert.Equal(t, []string{"alpha", "beta", "zeta"},
		[]string{first[0].Field, first[1].Field, first[2].Field})
}

func TestTypeMatchesTimeFormats(t *testing.T) {
	s := Schema{"when": {Required: true, Type: TypeTime}}

	assert.Empty(t, Validate(map[string]any{"when": time.Now()}, s, false))
	assert.Empty(t, Validate(map[string]any{"when": "2026-08-29T10:00:00Z"}, s, false))

	got := Validate(map[string]any{"when": "yesterday"}, s, false)
	assert.Len(t, got, 1)
	assert.Equal(t, WrongType, got[0].Kind)
}

func TestApplyDefaults(t *testing.T) {
	fields := map[string]any{"id": "x"}
	s := Schema{
		"id":   {Required: true, Type: TypeString},
		"tags": {Required: false, Type: TypeList, Default: []any{}},
	}
	out := ApplyDefaults(fields, s)

	assert.Equal(t, []any{}, out["tags"])
	// Input is untouched.
	_, present := fields["tags"]
	assert.False(t, present)
}

func TestViolationString(t *testing.T) {
	tests := []struct {
		v    Violation
		want string
	}{
		{Violation{Kind: MissingRequired, Field: "owner"}, `missing required field "owner"`},
		{Violation{Kind: WrongType, Field: "id", Want: TypeString, Got: "int"}, `field "id" has type int, want string`},
		{Violation{Kind: UnknownField, Field: "extra"}, `unknown field "extra"`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.v.String())
	}
}
