// Package agent defines the agent/operation implementation contract (spec.md
// §4.2, §6): a descriptor plus a set of named operations, each declaring a
// kind, schemas, and a Run method. Dynamic dispatch is plain name-keyed
// lookup, no reflection: agents are registered by name in package registry's
// constructor maps (spec.md §9, "Dynamic dispatch").
package agent

import (
	"context"

	"github.com/fractalhq/orcha/envelope"
	"github.com/fractalhq/orcha/model"
	"github.com/fractalhq/orcha/telemetry"
)

// Result is the envelope type every operation returns.
type Result = envelope.Result

// Ident is the strong type for agent names, kept distinct from free-form
// strings to avoid accidental mixing in registry maps.
type Ident string

// OperationKind classifies what an operation does, used by policy layers
// and the tool-registry snapshot to describe tools without exposing
// implementation details.
type OperationKind string

const (
	// KindDirect is a deterministic, non-LLM operation (e.g. data shaping).
	KindDirect OperationKind = "direct"
	// KindValidation is an operation that judges a prior result.
	KindValidation OperationKind = "validation"
	// KindSemantic is an LLM-backed reasoning operation.
	KindSemantic OperationKind = "semantic"
	// KindControl is an orchestration-only operation (planner, reasoner,
	// synthesizer, relay) never offered to the planner/reasoner as a tool.
	KindControl OperationKind = "control"
)

// Namespace selects which registry namespace an agent belongs to: tools are
// discoverable by the planner/reasoner, control agents never are (spec.md
// §4.2).
type Namespace string

const (
	// NamespaceTools holds data-access/domain agents.
	NamespaceTools Namespace = "tools"
	// NamespaceControl holds planner, reasoner, synthesizer, validator, relay.
	NamespaceControl Namespace = "control"
)

// Descriptor carries an agent's identity and configuration.
type Descriptor struct {
	Name           Ident
	Title          string
	Description    string
	Implementation string
	Config         map[string]any
}

// Operation is one callable capability an Agent exposes. ParamsSchema and
// OutputsSchema are free-form maps intended primarily for documentation and
// tool-registry snapshots (spec.md §9); package registry additionally
// validates ParamsSchema's "required" entries against Params at dispatch
// time.
type Operation interface {
	Kind() OperationKind
	Description() string
	ParamsSchema() map[string]any
	OutputsSchema() map[string]any
}

// Runner is implemented by operations that can execute. It is split from
// Operation so discovery (spec.md §4.2: "discovered... without instantiating
// the agent") only needs the metadata methods; Run is only invoked once the
// owning agent has been instantiated.
type Runner interface {
	Operation
	Run(ctx context.Context, params map[string]any, ectx ExecutionContext, self Agent) Result
}

// Agent is the runtime contract every agent implementation fulfills.
type Agent interface {
	Descriptor() Descriptor
	// Operations enumerates the agent's operations by name without requiring
	// initialization, so the registry can build tool-registry snapshots at
	// plan time.
	Operations() map[string]Runner
	// ExecuteOperation dispatches to a named operation, lazily initializing
	// the agent on first call.
	ExecuteOperation(ctx context.Context, opName string, params map[string]any, ectx ExecutionContext) Result
}

// Lazy is an optional interface an Agent implementation can satisfy to run
// one-time, idempotent setup (e.g. opening a DB connection, resolving an LLM
// handle by profile) on first ExecuteOperation call.
type Lazy interface {
	Init(ctx context.Context) error
}

// ExecutionContext is the narrow view of the execution context that
// operation implementations receive. package execctx's concrete *Context
// satisfies this interface structurally (no import from execctx back to
// agent, avoiding a cycle); most operations only need the params the
// dispatcher already resolved for them (spec.md §4.3, GetCurrentToolCall),
// plus access to a model client and the run's telemetry handles for
// semantic operations.
type ExecutionContext interface {
	GetQuestion() string
	GetFinalAnswer() (any, bool)
	SetFinalAnswer(answer any)

	ModelClient(profile string) (model.Client, bool)

	Logger() telemetry.Logger
	Metrics() telemetry.Metrics
	Tracer() telemetry.Tracer
}
