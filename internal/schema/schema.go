// Package schema validates raw LLM output against the fixed structured
// evaluation schema.
//
// The schema is declared statically as a tree of field descriptions
// rather than checked by runtime duck-typing: one declaration drives
// both the validator and the JSON Schema handed to the provider so the
// two can never drift apart.
//
// Validation is a pure function over bytes. No network, no state, no
// clock: a given input always yields the same verdict, which keeps the
// validator fully unit-testable against literal JSON fixtures.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/synthpanel/synthpanel/internal/model"
)

// fieldKind is the value type a declared field accepts.
type fieldKind int

const (
	kindString fieldKind = iota
	kindStringArray
	kindObject
)

// field describes one required key. Objects are closed: any key not
// declared here is rejected.
type field struct {
	name   string
	kind   fieldKind
	fields []field // sub-fields when kind == kindObject
}

// evaluationFields is the single source of truth for the structured
// evaluation payload shape. Every field is required at every level.
var evaluationFields = []field{
	{name: "firstImpression", kind: kindString},
	{name: "personalContext", kind: kindObject, fields: []field{
		{name: "routineAlignment", kind: kindString},
		{name: "financialPerspective", kind: kindString},
		{name: "digitalComfort", kind: kindString},
		{name: "familyConsideration", kind: kindString},
		{name: "locationRelevance", kind: kindString},
	}},
	{name: "benefits", kind: kindStringArray},
	{name: "concerns", kind: kindStringArray},
	{name: "decisionFactors", kind: kindStringArray},
	{name: "suggestions", kind: kindStringArray},
	{name: "targetAudienceAlignment", kind: kindObject, fields: []field{
		{name: "ageMatch", kind: kindString},
		{name: "locationMatch", kind: kindString},
		{name: "incomeMatch", kind: kindString},
		{name: "interestOverlap", kind: kindString},
		{name: "painPointRelevance", kind: kindString},
	}},
	{name: "tags", kind: kindObject, fields: []field{
		{name: "positive", kind: kindStringArray},
		{name: "negative", kind: kindStringArray},
		{name: "opportunity", kind: kindStringArray},
	}},
}

// Validate checks raw bytes against the evaluation schema and decodes
// them into the typed payload.
//
// Failure modes map to distinct error kinds: malformed JSON, missing
// required key, wrong value type, and an undeclared key inside a
// closed object. The first violation encountered is reported;
// violations are found in a deterministic order (declared fields in
// declaration order, then unknown keys sorted by name).
func Validate(raw []byte) (*model.EvaluationPayload, error) {
	var root any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, &ValidationError{
			Kind:    ErrMalformedJSON,
			Message: fmt.Sprintf("response is not valid JSON: %v", err),
		}
	}

	obj, ok := root.(map[string]any)
	if !ok {
		return nil, &ValidationError{
			Kind:    ErrWrongType,
			Path:    "$",
			Message: "top-level value must be an object",
		}
	}

	if err := validateObject("$", obj, evaluationFields); err != nil {
		return nil, err
	}

	// The shape is verified; the struct decode cannot introduce
	// anything validation did not see.
	var payload model.EvaluationPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &ValidationError{
			Kind:    ErrMalformedJSON,
			Message: fmt.Sprintf("decode validated payload: %v", err),
		}
	}
	return &payload, nil
}

// validateObject checks one closed object against its declared fields.
func validateObject(path string, obj map[string]any, fields []field) error {
	// Required keys, declaration order.
	for _, f := range fields {
		fieldPath := path + "." + f.name
		val, present := obj[f.name]
		if !present {
			return &ValidationError{
				Kind:    ErrMissingKey,
				Path:    fieldPath,
				Message: fmt.Sprintf("required key %q is missing", f.name),
			}
		}
		if err := validateValue(fieldPath, val, f); err != nil {
			return err
		}
	}

	// Undeclared keys, sorted for deterministic reporting.
	declared := make(map[string]bool, len(fields))
	for _, f := range fields {
		declared[f.name] = true
	}
	var unknown []string
	for key := range obj {
		if !declared[key] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return &ValidationError{
			Kind:    ErrUnknownKey,
			Path:    path + "." + unknown[0],
			Message: fmt.Sprintf("key %q is not allowed here", unknown[0]),
		}
	}

	return nil
}

// validateValue checks one value against its declared kind.
func validateValue(path string, val any, f field) error {
	switch f.kind {
	case kindString:
		if _, ok := val.(string); !ok {
			return &ValidationError{
				Kind:    ErrWrongType,
				Path:    path,
				Message: "expected a string",
			}
		}
	case kindStringArray:
		arr, ok := val.([]any)
		if !ok {
			return &ValidationError{
				Kind:    ErrWrongType,
				Path:    path,
				Message: "expected an array of strings",
			}
		}
		for i, elem := range arr {
			if _, ok := elem.(string); !ok {
				return &ValidationError{
					Kind:    ErrWrongType,
					Path:    fmt.Sprintf("%s[%d]", path, i),
					Message: "expected a string element",
				}
			}
		}
	case kindObject:
		obj, ok := val.(map[string]any)
		if !ok {
			return &ValidationError{
				Kind:    ErrWrongType,
				Path:    path,
				Message: "expected an object",
			}
		}
		return validateObject(path, obj, f.fields)
	}
	return nil
}

// JSONSchema renders the evaluation schema as a JSON Schema document,
// suitable for a provider's structured-output format parameter.
func JSONSchema() json.RawMessage {
	doc := objectSchema(evaluationFields)
	raw, err := json.Marshal(doc)
	if err != nil {
		// The schema is static; marshalling it cannot fail.
		panic(fmt.Sprintf("marshal evaluation schema: %v", err))
	}
	return raw
}

func objectSchema(fields []field) map[string]any {
	props := make(map[string]any, len(fields))
	required := make([]string, 0, len(fields))
	for _, f := range fields {
		required = append(required, f.name)
		switch f.kind {
		case kindString:
			props[f.name] = map[string]any{"type": "string"}
		case kindStringArray:
			props[f.name] = map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			}
		case kindObject:
			props[f.name] = objectSchema(f.fields)
		}
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}
