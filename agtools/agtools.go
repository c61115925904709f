// Package agtools defines the shapes used to build and sanitize the
// tool-registry snapshot the Planner and Reasoner Nodes send to an LLM
// (spec.md §4.2): per-operation ToolSpec/TypeSpec metadata with no reference
// to the agent's concrete implementation.
package agtools

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Ident is the strong type for a fully qualified tool identifier
// (agent_name.operation_name), kept distinct from free-form strings to
// avoid accidental mixing in registry maps.
type Ident string

// JSONCodec serializes and deserializes strongly typed values to and from
// JSON. Most agents use AnyJSONCodec; strongly typed agents can supply their
// own.
type JSONCodec[T any] struct {
	ToJSON   func(T) ([]byte, error)
	FromJSON func([]byte) (T, error)
}

// AnyJSONCodec is the default codec for params/outputs whose concrete Go
// type is not known at registration time.
var AnyJSONCodec = JSONCodec[any]{
	ToJSON: json.Marshal,
	FromJSON: func(data []byte) (any, error) {
		if len(data) == 0 {
			return nil, nil
		}
		var out any
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, err
		}
		return out, nil
	},
}

// TypeSpec describes the params or outputs schema for one operation.
type TypeSpec struct {
	// Name is a human-readable identifier for the type (e.g. "BooksLookupParams").
	Name string
	// Schema is the free-form JSON-Schema-shaped map rendered for planner/
	// reasoner consumption (spec.md §4.2: "free-form maps, not strict
	// JSON-Schema"), generated via invopop/jsonschema at registration time
	// where the operation's params are backed by a concrete Go struct.
	Schema map[string]any
	// Codec serializes and deserializes values matching this type.
	Codec JSONCodec[any]
}

// ToolSpec is one entry in the sanitized tool-registry snapshot handed to
// the planner/reasoner: everything a model needs to decide whether and how
// to call an operation, and nothing about how it is implemented.
type ToolSpec struct {
	// Name is the fully qualified tool identifier (agent_name.operation_name).
	Name Ident
	// Agent is the owning agent's name.
	Agent string
	// Operation is the operation's name within its agent.
	Operation string
	// Description is the human-readable summary surfaced to the model.
	Description string
	// Kind mirrors agent.OperationKind as a plain string so this package has
	// no import-time dependency on package agent.
	Kind string
	// Tags carries routing metadata; nodes.Executor checks for
	// "requires_relay" here to decide whether to route a call through
	// agents/relay first (SPEC_FULL.md §4.6).
	Tags []string
	// Params describes the operation's expected parameters.
	Params TypeSpec
	// Outputs describes the operation's expected output shape.
	Outputs TypeSpec
}

// SchemaOf reflects over T's exported fields and json tags to produce the
// free-form JSON-Schema-shaped map a TypeSpec.Schema holds (spec.md §4.2).
// Agents whose params/outputs are backed by a concrete Go struct should use
// this instead of hand-writing the equivalent map literal.
func SchemaOf[T any]() map[string]any {
	reflector := jsonschema.Reflector{AllowAdditionalProperties: false, DoNotReference: true}
	var v T
	raw, err := json.Marshal(reflector.Reflect(&v))
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}

// HasTag reports whether the spec carries the given tag.
func (t ToolSpec) HasTag(tag string) bool {
	for _, tg := range t.Tags {
		if tg == tag {
			return true
		}
	}
	return false
}
