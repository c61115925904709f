// Package registry implements the Agent Registry & Dispatch component
// (spec.md §4.2): name-keyed constructor maps for the tools and control
// namespaces, lazy mutex-guarded instantiation, required-params validation
// against an operation's params_schema, and a sanitized tool-registry
// snapshot for planner/reasoner consumption.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/fractalhq/orcha/agent"
	"github.com/fractalhq/orcha/agtools"
	"github.com/fractalhq/orcha/envelope"
)

// nowFn is a var so tests can stub elapsed-time measurement if ever needed;
// production code always uses the real clock.
var nowFn = time.Now

// Constructor builds a fresh, un-initialized agent instance.
type Constructor func() agent.Agent

// Registry holds name-keyed constructors for the two namespaces spec.md §4.2
// defines (tools: discoverable domain agents; control: planner, reasoner,
// synthesizer, validator, relay — never offered to the planner/reasoner as
// callable tools) and caches instantiated agents behind a mutex.
type Registry struct {
	Tools   map[string]Constructor
	Control map[string]Constructor

	mu        sync.Mutex
	instances map[instanceKey]*cachedInstance

	schemas map[string]*jsonschema.Schema
}

type instanceKey struct {
	namespace agent.Namespace
	name      string
}

type cachedInstance struct {
	once sync.Once
	err  error
	a    agent.Agent
}

// New constructs an empty Registry. Register agents via the Tools/Control
// maps directly, or with RegisterTool/RegisterControl.
func New() *Registry {
	return &Registry{
		Tools:     make(map[string]Constructor),
		Control:   make(map[string]Constructor),
		instances: make(map[instanceKey]*cachedInstance),
		schemas:   make(map[string]*jsonschema.Schema),
	}
}

// RegisterTool adds a domain/tool-namespace agent constructor.
func (r *Registry) RegisterTool(name string, ctor Constructor) {
	r.Tools[name] = ctor
}

// RegisterControl adds a control-namespace agent constructor.
func (r *Registry) RegisterControl(name string, ctor Constructor) {
	r.Control[name] = ctor
}

// RegisterSchema compiles and caches a strict JSON-Schema document under id,
// so Dispatch can opt a specific operation into full structural validation
// beyond the required-field walk it always performs. Schemas are optional;
// most operations validate with the lightweight fallback only.
func (r *Registry) RegisterSchema(id string, schemaJSON []byte) error {
	var doc any
	if err := json.Unmarshal(schemaJSON, &doc); err != nil {
		return fmt.Errorf("registry: parse schema %q: %w", id, err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(id, doc); err != nil {
		return fmt.Errorf("registry: add schema %q: %w", id, err)
	}
	compiled, err := compiler.Compile(id)
	if err != nil {
		return fmt.Errorf("registry: compile schema %q: %w", id, err)
	}
	r.mu.Lock()
	r.schemas[id] = compiled
	r.mu.Unlock()
	return nil
}

// Instantiate returns the cached agent instance for (namespace, name),
// constructing and lazily initializing it on first use. Concurrent callers
// for the same (namespace, name) block on the same sync.Once rather than
// racing to construct duplicate instances (spec.md §5).
func (r *Registry) Instantiate(ctx context.Context, namespace agent.Namespace, name string) (agent.Agent, error) {
	ctor, ok := r.lookup(namespace, name)
	if !ok {
		return nil, fmt.Errorf("registry: no %s agent named %q", namespace, name)
	}

	key := instanceKey{namespace: namespace, name: name}
	r.mu.Lock()
	inst, ok := r.instances[key]
	if !ok {
		inst = &cachedInstance{}
		r.instances[key] = inst
	}
	r.mu.Unlock()

	inst.once.Do(func() {
		inst.a = ctor()
		if lazy, ok := inst.a.(agent.Lazy); ok {
			inst.err = lazy.Init(ctx)
		}
	})
	if inst.err != nil {
		return nil, fmt.Errorf("registry: init agent %q: %w", name, inst.err)
	}
	return inst.a, nil
}

func (r *Registry) lookup(namespace agent.Namespace, name string) (Constructor, bool) {
	switch namespace {
	case agent.NamespaceTools:
		ctor, ok := r.Tools[name]
		return ctor, ok
	case agent.NamespaceControl:
		ctor, ok := r.Control[name]
		return ctor, ok
	default:
		return nil, false
	}
}

// Dispatch instantiates the named agent, validates params against the
// operation's required fields (and, if a schema was registered for
// "agentName.opName", a full JSON-Schema check), runs the operation, and
// stamps the result with the agent/operation name and elapsed time (spec.md
// §4.2, §4.1). Params-validation failures never reach the operation's Run
// method.
func (r *Registry) Dispatch(ctx context.Context, namespace agent.Namespace, agentName, opName string, params map[string]any, ectx agent.ExecutionContext) envelope.Result {
	start := nowFn()

	a, err := r.Instantiate(ctx, namespace, agentName)
	if err != nil {
		return envelope.Err(err.Error(), "dispatch").WithStamp(agentName, opName, nowFn().Sub(start))
	}

	ops := a.Operations()
	op, ok := ops[opName]
	if !ok {
		return envelope.Err(fmt.Sprintf("registry: agent %q has no operation %q", agentName, opName), "dispatch").
			WithStamp(agentName, opName, nowFn().Sub(start))
	}

	if err := validateRequired(op.ParamsSchema(), params); err != nil {
		return envelope.Err(err.Error(), "dispatch").WithStamp(agentName, opName, nowFn().Sub(start))
	}

	if schema, ok := r.compiledSchema(agentName, opName); ok {
		if err := schema.Validate(params); err != nil {
			return envelope.Err(fmt.Sprintf("registry: schema validation failed: %v", err), "dispatch").
				WithStamp(agentName, opName, nowFn().Sub(start))
		}
	}

	result := a.ExecuteOperation(ctx, opName, params, ectx)
	return result.WithStamp(agentName, opName, nowFn().Sub(start))
}

func (r *Registry) compiledSchema(agentName, opName string) (*jsonschema.Schema, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	schema, ok := r.schemas[agentName+"."+opName]
	return schema, ok
}

// validateRequired walks a free-form params_schema's "required" entry (a
// []string of required key names, the only structural contract spec.md §4.2
// mandates) and confirms each is present in params.
func validateRequired(schema map[string]any, params map[string]any) error {
	if schema == nil {
		return nil
	}
	raw, ok := schema["required"]
	if !ok {
		return nil
	}
	required, ok := toStringSlice(raw)
	if !ok {
		return nil
	}
	for _, key := range required {
		if _, present := params[key]; !present {
			return fmt.Errorf("registry: missing required param %q", key)
		}
	}
	return nil
}

func toStringSlice(v any) ([]string, bool) {
	switch vv := v.(type) {
	case []string:
		return vv, true
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// Snapshot returns the sanitized tool-registry catalog handed to the
// planner/reasoner: every operation of every tools-namespace agent, built
// purely from descriptors and discovered operations. Control agents never
// appear (spec.md §4.2). Instantiate is never called, so an expensive
// Lazy.Init never runs just to build a snapshot.
func (r *Registry) Snapshot() []agtools.ToolSpec {
	var out []agtools.ToolSpec
	for name, ctor := range r.Tools {
		a := ctor()
		for opName, op := range a.Operations() {
			out = append(out, agtools.ToolSpec{
				Name:        agtools.Ident(name + "." + opName),
				Agent:       name,
				Operation:   opName,
				Description: op.Description(),
				Kind:        string(op.Kind()),
				Params: agtools.TypeSpec{
					Name:   opName + "Params",
					Schema: op.ParamsSchema(),
					Codec:  agtools.AnyJSONCodec,
				},
				Outputs: agtools.TypeSpec{
					Name:   opName + "Outputs",
					Schema: op.OutputsSchema(),
					Codec:  agtools.AnyJSONCodec,
				},
			})
		}
	}
	return out
}
