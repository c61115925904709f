// Package nodes implements the five graph nodes of the orchestration engine
// (spec.md §4.4–§4.6): planner, reasoner, executor, scheduler, synthesizer.
// Each node reads and mutates an *execctx.Context through its narrow API and
// returns a Route telling the driver in package engine which node runs next,
// matching the topology in spec.md §4.7.
package nodes

// Control agent names, registered under agent.NamespaceControl. These are
// never offered to the planner/reasoner as callable tools (spec.md §4.2).
const (
	PlannerAgent       = "planner"
	ReasonerAgent      = "reasoner"
	ValidatorAgent     = "validator"
	DataProcessorAgent = "dataprocessor"
	SynthesizerAgent   = "synthesizer"
	RelayAgent         = "relay"
)

// RequiresRelayTag marks a tools-namespace operation, in its tool-registry
// snapshot Tags, that the executor must route through RelayAgent before
// dispatching directly (SPEC_FULL.md §4.6).
const RequiresRelayTag = "requires_relay"

// Route names the next node the engine driver should execute.
type Route string

const (
	RouteScheduler   Route = "scheduler"
	RouteReasoner    Route = "reasoner"
	RouteExecutor    Route = "executor"
	RouteSynthesizer Route = "synthesizer"
	RouteEnd         Route = "end"
)

// DefaultMaxRetries is MAX_RETRIES from spec.md §3 when the engine config
// (engine.max_retries) supplies no override. A max_retries key in an agent's
// own config map is not read.
const DefaultMaxRetries = 2

// DefaultLoopBudget bounds iterations of a single step's reasoner/executor
// loop regardless of MAX_RETRIES, guaranteeing progress (spec.md §5).
const DefaultLoopBudget = 12
