// Package toolserver exposes the arbitrator's tool surface over HTTP as
// JSON, validating choose() arguments against a per-pending-kind schema
// before they reach the arbitrator, grounded on the corpus's schema
// validation of tool-call payloads.
package toolserver

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/GregorStocks/commander-bench-sub000/engine"
)

// choiceSchemas holds one compiled JSON Schema per pending kind, describing
// the shape of valid choose() arguments for that kind. A kind absent from
// this map (passive kinds, which are never pending) has no schema and skips
// validation.
var choiceSchemas = map[engine.Kind]string{
	engine.KindAsk: `{
		"type": "object",
		"properties": {"answer": {"type": "boolean"}},
		"required": ["answer"]
	}`,
	engine.KindSelect: `{
		"type": "object",
		"properties": {
			"index": {"type": "integer"},
			"id": {"type": "string"},
			"answer": {"type": "boolean"},
			"mana_plan": {"type": "string"},
			"auto_tap": {"type": "boolean"},
			"attackers": {"type": "array", "items": {"type": "string"}},
			"blockers": {"type": "array", "items": {"type": "string"}}
		}
	}`,
	engine.KindTarget: `{
		"type": "object",
		"properties": {"index": {"type": "integer"}, "id": {"type": "string"}}
	}`,
	engine.KindChooseAbility: `{
		"type": "object",
		"properties": {"index": {"type": "integer"}},
		"required": ["index"]
	}`,
	engine.KindChooseChoice: `{
		"type": "object",
		"properties": {"index": {"type": "integer"}, "text": {"type": "string"}}
	}`,
	engine.KindChoosePile: `{
		"type": "object",
		"properties": {"pile": {"type": "integer"}},
		"required": ["pile"]
	}`,
	engine.KindPlayMana: `{
		"type": "object",
		"properties": {
			"index": {"type": "integer"},
			"id": {"type": "string"},
			"answer": {"type": "boolean"},
			"mana_plan": {"type": "string"},
			"auto_tap": {"type": "boolean"}
		}
	}`,
	engine.KindPlayXMana: `{
		"type": "object",
		"properties": {
			"index": {"type": "integer"},
			"id": {"type": "string"},
			"answer": {"type": "boolean"},
			"mana_plan": {"type": "string"},
			"auto_tap": {"type": "boolean"}
		}
	}`,
	engine.KindGetAmount: `{
		"type": "object",
		"properties": {"amount": {"type": "integer"}},
		"required": ["amount"]
	}`,
	engine.KindGetMultiAmount: `{
		"type": "object",
		"properties": {"amounts": {"type": "array", "items": {"type": "integer"}}},
		"required": ["amounts"]
	}`,
}

// SchemaValidator compiles and caches the per-kind choose() schemas.
type SchemaValidator struct {
	mu       sync.Mutex
	compiled map[engine.Kind]*jsonschema.Schema
}

// NewSchemaValidator constructs a validator with an empty compile cache.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{compiled: map[engine.Kind]*jsonschema.Schema{}}
}

// Validate checks args (the decoded choose() request body) against the
// schema for kind. A kind with no schema registered always validates.
func (v *SchemaValidator) Validate(kind engine.Kind, args map[string]any) error {
	schema, err := v.schemaFor(kind)
	if err != nil {
		return err
	}
	if schema == nil {
		return nil
	}
	return schema.Validate(args)
}

func (v *SchemaValidator) schemaFor(kind engine.Kind) (*jsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if s, ok := v.compiled[kind]; ok {
		return s, nil
	}
	raw, ok := choiceSchemas[kind]
	if !ok {
		v.compiled[kind] = nil
		return nil, nil
	}

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("unmarshal schema for %s: %w", kind, err)
	}
	resource := fmt.Sprintf("choose-%s.json", kind)
	c := jsonschema.NewCompiler()
	if err := c.AddResource(resource, doc); err != nil {
		return nil, fmt.Errorf("add schema resource for %s: %w", kind, err)
	}
	schema, err := c.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", kind, err)
	}
	v.compiled[kind] = schema
	return schema, nil
}
