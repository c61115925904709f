// Package execctx implements the Execution Context (spec.md §4.3): the
// single mutable object threaded through one invocation of the engine. It
// owns the question, the plan, per-step state, the audit trail, and a
// free-form memory bag, and exposes a narrow API rather than its fields
// directly so every mutation goes through a method that can enforce an
// invariant or append a history event.
//
// *Context is not safe for concurrent use. Exactly one goroutine drives one
// invocation (spec.md §5); concurrent invocations each own a separate
// *Context.
package execctx

import (
	"encoding/json"
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/fractalhq/orcha/history"
	"github.com/fractalhq/orcha/model"
	"github.com/fractalhq/orcha/plan"
	"github.com/fractalhq/orcha/step"
	"github.com/fractalhq/orcha/telemetry"
)

// Context is the Execution Context.
type Context struct {
	question plan.Question
	thePlan  plan.Plan
	planSet  bool

	currentStepID plan.SubQuestionID
	haveCurrent   bool

	steps map[plan.SubQuestionID]*step.State
	order []plan.SubQuestionID

	trail *history.Trail

	memory map[string]any

	finalAnswer any
	haveFinal   bool

	clients map[string]model.Client
	logger  telemetry.Logger
	metrics telemetry.Metrics
	tracer  telemetry.Tracer
}

// New constructs a fresh Context for the given question.
func New(question string) (*Context, error) {
	trail, err := history.NewTrail()
	if err != nil {
		return nil, fmt.Errorf("execctx: %w", err)
	}
	return &Context{
		question: plan.Question(question),
		steps:    make(map[plan.SubQuestionID]*step.State),
		memory:   make(map[string]any),
		trail:    trail,
		clients:  make(map[string]model.Client),
		logger:   telemetry.NewNoopLogger(),
		metrics:  telemetry.NewNoopMetrics(),
		tracer:   telemetry.NewNoopTracer(),
	}, nil
}

// WithModelClient registers a model client under the given llm_profile name,
// used later by ModelClient. Intended to be called during setup, before
// Invoke; it is not itself part of spec.md's narrow API.
func (c *Context) WithModelClient(profile string, client model.Client) *Context {
	c.clients[profile] = client
	return c
}

// WithTelemetry installs the telemetry handles used by Logger/Metrics/Tracer.
func (c *Context) WithTelemetry(logger telemetry.Logger, metrics telemetry.Metrics, tracer telemetry.Tracer) *Context {
	if logger != nil {
		c.logger = logger
	}
	if metrics != nil {
		c.metrics = metrics
	}
	if tracer != nil {
		c.tracer = tracer
	}
	return c
}

// ModelClient resolves a registered model client by llm_profile, satisfying
// agent.ExecutionContext.
func (c *Context) ModelClient(profile string) (model.Client, bool) {
	client, ok := c.clients[profile]
	return client, ok
}

// Logger satisfies agent.ExecutionContext.
func (c *Context) Logger() telemetry.Logger { return c.logger }

// Metrics satisfies agent.ExecutionContext.
func (c *Context) Metrics() telemetry.Metrics { return c.metrics }

// Tracer satisfies agent.ExecutionContext.
func (c *Context) Tracer() telemetry.Tracer { return c.tracer }

// GetQuestion returns the original question text.
func (c *Context) GetQuestion() string { return string(c.question) }

// SetQuestion replaces the question text of an existing context.
func (c *Context) SetQuestion(question string) {
	c.question = plan.Question(question)
}

// GetPlan returns the current plan and whether one has been set yet.
func (c *Context) GetPlan() (plan.Plan, bool) { return c.thePlan, c.planSet }

// IsPlanSet reports whether SetPlan has been called.
func (c *Context) IsPlanSet() bool { return c.planSet }

// SetPlan installs the plan, seeds a step.State per sub-question in plan
// order, and appends a plan_set history event. Called exactly once per
// invocation by the Planner Node.
func (c *Context) SetPlan(p plan.Plan) {
	c.thePlan = p
	c.planSet = true
	c.order = c.order[:0]
	c.steps = make(map[plan.SubQuestionID]*step.State, len(p.SubQuestions))
	for _, sq := range p.SubQuestions {
		c.steps[sq.ID] = step.New()
		c.order = append(c.order, sq.ID)
	}
	c.trail.Append("plan_set", "", map[string]any{
		"subquestion_count": len(p.SubQuestions),
		"question":          string(c.question),
		"plan":              p,
	})
}

// GetCurrentStepID returns the id of the step currently being executed.
func (c *Context) GetCurrentStepID() (plan.SubQuestionID, bool) {
	return c.currentStepID, c.haveCurrent
}

// SetCurrentStepID sets which step the scheduler has selected.
func (c *Context) SetCurrentStepID(id plan.SubQuestionID) {
	c.currentStepID = id
	c.haveCurrent = true
}

// StepState returns the mutable per-step state for id, if any.
func (c *Context) StepState(id plan.SubQuestionID) (*step.State, bool) {
	s, ok := c.steps[id]
	return s, ok
}

// EnsureExecutionStep returns the step state for id, creating an empty one
// if necessary. Expected stages are not set here: RecordReasonerDecision
// derives fetch/process/validate from the reasoner's decision the first
// time the step is visited, per spec.md §4.3.
func (c *Context) EnsureExecutionStep(id plan.SubQuestionID) *step.State {
	s, ok := c.steps[id]
	if !ok {
		s = step.New()
		c.steps[id] = s
	}
	return s
}

// StartStep sets the current step id and ensures its execution state exists,
// combining SetCurrentStepID and EnsureExecutionStep for the scheduler node
// (spec.md §4.3, "start_step(id)").
func (c *Context) StartStep(id plan.SubQuestionID) *step.State {
	c.SetCurrentStepID(id)
	return c.EnsureExecutionStep(id)
}

// FailStep marks a step terminally failed with the given reason, recording
// a step_failed history event. Used for structural decision failures,
// dispatch errors, and loop-budget exhaustion (spec.md §7).
func (c *Context) FailStep(id plan.SubQuestionID, reason string) {
	s, ok := c.steps[id]
	if !ok {
		return
	}
	s.Error = reason
	s.Done = true
	c.trail.Append("step_failed", string(id), map[string]any{"error": reason})
}

// SelectNextStep returns the first sub-question, in plan order, whose
// dependencies are all fully completed and which is not itself fully
// completed. Returns false if no such step exists (spec.md §4.6).
func (c *Context) SelectNextStep() (plan.SubQuestionID, bool) {
	for _, id := range c.order {
		s, ok := c.steps[id]
		if !ok || s.FullyCompleted() {
			continue
		}
		sq, ok := c.thePlan.Get(id)
		if !ok {
			continue
		}
		if c.dependenciesSatisfied(sq) {
			return id, true
		}
	}
	return "", false
}

func (c *Context) dependenciesSatisfied(sq plan.SubQuestion) bool {
	for _, dep := range sq.DependsOn {
		depState, ok := c.steps[dep]
		if !ok || !depState.FullyCompleted() {
			return false
		}
	}
	return true
}

// AllStepsCompleted reports whether every sub-question in the plan has
// fully completed.
func (c *Context) AllStepsCompleted() bool {
	if !c.planSet {
		return false
	}
	for _, id := range c.order {
		s, ok := c.steps[id]
		if !ok || !s.FullyCompleted() {
			return false
		}
	}
	return true
}

// IsStepFullyCompleted reports whether the given step has completed every
// stage it expects.
func (c *Context) IsStepFullyCompleted(id plan.SubQuestionID) bool {
	s, ok := c.steps[id]
	return ok && s.FullyCompleted()
}

// SetExpectedStages marks whether the validate stage is expected for the
// current step, per the reasoner's validation decision.
func (c *Context) SetExpectedStages(id plan.SubQuestionID, validateExpected bool) {
	s, ok := c.steps[id]
	if !ok {
		return
	}
	s.SetExpectedStage(step.StageValidate, validateExpected)
}

// MarkStageCompleted marks a stage complete for the given step and records a
// stage_completed history event.
func (c *Context) MarkStageCompleted(id plan.SubQuestionID, stage step.Stage) {
	s, ok := c.steps[id]
	if !ok {
		return
	}
	s.MarkStageCompleted(stage)
	c.trail.Append("stage_completed", string(id), map[string]any{"stage": string(stage)})
}

// IsStageCompleted reports whether the given stage of the given step has
// completed.
func (c *Context) IsStageCompleted(id plan.SubQuestionID, stage step.Stage) bool {
	s, ok := c.steps[id]
	return ok && s.IsStageCompleted(stage)
}

// GetCurrentStage returns the current stage of the given step.
func (c *Context) GetCurrentStage(id plan.SubQuestionID) step.Stage {
	s, ok := c.steps[id]
	if !ok {
		return step.StageCompleted
	}
	return s.CurrentStage()
}

// RecordReasonerDecision stores the reasoner's structured decision (already
// passed through the deterministic selection override) for the given step,
// derives expected_stages = {fetch: selected_hypothesis != -1, process:
// postprocessing.needed, validate: validation.needed} (spec.md §4.3), and
// stores the selected hypothesis for GetCurrentToolCall's fetch branch. A
// selected_hypothesis of -1 with no other stage expected leaves the step
// immediately fully completed with a null output (spec.md §4.5 step 6,
// §8 scenario E).
func (c *Context) RecordReasonerDecision(id plan.SubQuestionID, decision step.Decision) {
	s, ok := c.steps[id]
	if !ok {
		return
	}
	s.Decision = &decision

	selected := decision.FinalDecision.SelectedHypothesis
	s.SetExpectedStage(step.StageFetch, selected != -1)
	s.SetExpectedStage(step.StageProcess, decision.Postprocessing.Needed)
	s.SetExpectedStage(step.StageValidate, decision.Validation.Needed)

	if selected >= 0 && selected < len(decision.Hypotheses) {
		h := decision.Hypotheses[selected]
		s.Hypothesis = &step.Hypothesis{
			Agent:      h.Agent,
			Operation:  h.Operation,
			Params:     h.Params,
			Confidence: h.Confidence,
		}
	}

	c.trail.Append("reasoner_decision", string(id), map[string]any{
		"hypothesis_count":   len(decision.Hypotheses),
		"selected_hypothesis": selected,
		"validate_needed":    decision.Validation.Needed,
		"postprocess_needed":  decision.Postprocessing.Needed,
	})
}

// GetCurrentToolCall computes the hypothesis the executor should dispatch
// for the given step's current stage: the reasoner's deterministically
// selected hypothesis for StageFetch, or the canonical process/validate
// calls for the other stages (spec.md §4.3, §4.5).
func (c *Context) GetCurrentToolCall(id plan.SubQuestionID) (step.Hypothesis, error) {
	s, ok := c.steps[id]
	if !ok {
		return step.Hypothesis{}, fmt.Errorf("execctx: unknown step %q", id)
	}
	switch s.CurrentStage() {
	case step.StageFetch:
		if s.Hypothesis != nil {
			return *s.Hypothesis, nil
		}
		return step.Hypothesis{}, fmt.Errorf("execctx: step %q has no selected hypothesis", id)
	case step.StageProcess:
		return step.Hypothesis{Agent: "dataprocessor", Operation: "analyze", Params: map[string]any{
			"step_id": string(id),
			"input":   s.RawOutput,
		}}, nil
	case step.StageValidate:
		sq, _ := c.thePlan.Get(id)
		return step.Hypothesis{Agent: "validator", Operation: "validate_result", Params: map[string]any{
			"step_id":     string(id),
			"subquestion": sq.Text,
			"result":      s.RawOutput,
		}}, nil
	default:
		return step.Hypothesis{}, fmt.Errorf("execctx: step %q has no current stage", id)
	}
}

// SetSelectedHypothesis stores the fetch-stage hypothesis the deterministic
// selection override chose, for a later GetCurrentToolCall call.
func (c *Context) SetSelectedHypothesis(id plan.SubQuestionID, h step.Hypothesis) {
	s, ok := c.steps[id]
	if !ok {
		return
	}
	s.Hypothesis = &h
}

// RecordStepResult stores the raw output of the current stage's tool call
// and marks that stage completed.
func (c *Context) RecordStepResult(id plan.SubQuestionID, stage step.Stage, output any) {
	s, ok := c.steps[id]
	if !ok {
		return
	}
	s.RawOutput = output
	c.MarkStageCompleted(id, stage)
}

// RecordValidationResult stores the validate stage's outcome. A valid result
// marks the validate stage completed; an invalid one resets the step for
// another attempt if it has retries remaining (spec.md §4.5).
func (c *Context) RecordValidationResult(id plan.SubQuestionID, result step.ValidationResult, maxRetries int) {
	s, ok := c.steps[id]
	if !ok {
		return
	}
	s.ValidationResult = &result
	c.trail.Append("validation_result", string(id), map[string]any{
		"is_valid":   result.IsValid,
		"confidence": result.Confidence,
	})
	if result.IsValid {
		c.MarkStageCompleted(id, step.StageValidate)
		return
	}
	if s.RetryCount < maxRetries {
		s.ResetForRetry()
		c.trail.Append("step_retry", string(id), map[string]any{"retry_count": s.RetryCount})
		return
	}
	// Retries exhausted: force-complete so the scheduler can move on.
	s.MarkStageCompleted(step.StageValidate)
	s.Done = true
}

// RecordAgentCall appends an entry to the step's agent_calls log.
func (c *Context) RecordAgentCall(id plan.SubQuestionID, rec step.AgentCallRecord) {
	s, ok := c.steps[id]
	if !ok {
		return
	}
	s.AgentCalls = append(s.AgentCalls, rec)
}

// RecordToolExecutionResult records the dispatcher's envelope.Result-derived
// outcome for the current stage's tool call (spec.md §4.3:
// "record_tool_execution_result(id, AgentResult) dispatches to the previous
// two based on the result's stage and marks the step failed on error"): it
// appends an agent_calls entry and a tool_executed history event (carrying
// relayedVia when the call was forwarded through agents/relay), then either
// fails the step, decodes and records a validate-stage result via
// RecordValidationResult, or records a fetch/process-stage result via
// RecordStepResult — the single entry point executor nodes call after
// ExecuteOperation returns.
func (c *Context) RecordToolExecutionResult(id plan.SubQuestionID, stage step.Stage, agentName, operation, status, summary, errMsg string, output any, maxRetries int, relayedVia string) {
	c.RecordAgentCall(id, step.AgentCallRecord{
		Agent:     agentName,
		Operation: operation,
		Status:    status,
		Summary:   summary,
		Error:     errMsg,
	})
	eventData := map[string]any{
		"agent":     agentName,
		"operation": operation,
		"status":    status,
		"stage":     string(stage),
	}
	if relayedVia != "" {
		eventData["relayed_via"] = relayedVia
	}
	c.trail.Append("tool_executed", string(id), eventData)

	if status != "ok" {
		c.FailStep(id, fmt.Sprintf("%s.%s: %s", agentName, operation, errMsg))
		return
	}

	if stage == step.StageValidate {
		var vr step.ValidationResult
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{WeaklyTypedInput: true, Result: &vr})
		if err != nil {
			c.FailStep(id, fmt.Sprintf("validator returned malformed result: %v", err))
			return
		}
		if err := dec.Decode(output); err != nil {
			c.FailStep(id, fmt.Sprintf("validator returned malformed result: %v", err))
			return
		}
		c.RecordValidationResult(id, vr, maxRetries)
		return
	}
	c.RecordStepResult(id, stage, output)
}

// GetRelevantStepOutputsForReasoner returns the raw outputs of a step's
// direct dependencies, keyed by sub-question id, so the reasoner can ground
// its next decision in already-completed work (spec.md §4.3).
func (c *Context) GetRelevantStepOutputsForReasoner(id plan.SubQuestionID) map[plan.SubQuestionID]any {
	sq, ok := c.thePlan.Get(id)
	if !ok {
		return nil
	}
	out := make(map[plan.SubQuestionID]any, len(sq.DependsOn))
	for _, dep := range sq.DependsOn {
		if depState, ok := c.steps[dep]; ok {
			out[dep] = depState.RawOutput
		}
	}
	return out
}

// AppendHistoryEvent appends an arbitrary event to the audit trail; used by
// node implementations for events not covered by a dedicated Record* method
// (e.g. planner_fallback, synthesis_fallback).
func (c *Context) AppendHistoryEvent(eventType, stepID string, data map[string]any) history.Event {
	return c.trail.Append(eventType, stepID, data)
}

// History returns the full ordered audit trail.
func (c *Context) History() []history.Event { return c.trail.Events() }

// Subscribe registers fn to be called synchronously whenever an event of
// the given type is appended to this context's trail from this point on.
// Used to wire the optional plan-archival hook (SPEC_FULL.md §6) without
// the core importing package archive.
func (c *Context) Subscribe(eventType string, fn history.Subscriber) {
	c.trail.Subscribe(eventType, fn)
}

// Memory returns the free-form scratch map nodes use to pass information
// outside the plan/step model (e.g. memory["failure_reasons"], spec.md §7).
func (c *Context) Memory() map[string]any { return c.memory }

// GetFinalAnswer returns the synthesized final answer, if set.
func (c *Context) GetFinalAnswer() (any, bool) { return c.finalAnswer, c.haveFinal }

// SetFinalAnswer stores the final answer. Called exactly once, by the
// Synthesizer Node or its fallback path.
func (c *Context) SetFinalAnswer(answer any) {
	c.finalAnswer = answer
	c.haveFinal = true
}

// marshalState is the JSON-serializable shape of Context used by
// MarshalJSON/UnmarshalJSON.
type marshalState struct {
	Question      plan.Question                      `json:"question"`
	Plan          plan.Plan                           `json:"plan"`
	PlanSet       bool                                `json:"plan_set"`
	CurrentStepID plan.SubQuestionID                  `json:"current_step_id,omitempty"`
	HaveCurrent   bool                                `json:"have_current"`
	Order         []plan.SubQuestionID                `json:"order"`
	Steps         map[plan.SubQuestionID]*step.State  `json:"steps"`
	History       []history.Event                     `json:"history"`
	Memory        map[string]any                      `json:"memory"`
	FinalAnswer   any                                 `json:"final_answer"`
	HaveFinal     bool                                `json:"have_final"`
}

// MarshalJSON serializes the context's data (not its telemetry/client
// handles, which are process-local wiring) for archival and round-trip
// testing (spec.md §8 property 7).
func (c *Context) MarshalJSON() ([]byte, error) {
	return json.Marshal(marshalState{
		Question:      c.question,
		Plan:          c.thePlan,
		PlanSet:       c.planSet,
		CurrentStepID: c.currentStepID,
		HaveCurrent:   c.haveCurrent,
		Order:         c.order,
		Steps:         c.steps,
		History:       c.trail.Events(),
		Memory:        c.memory,
		FinalAnswer:   c.finalAnswer,
		HaveFinal:     c.haveFinal,
	})
}

// UnmarshalJSON restores a context's data from a prior MarshalJSON call. The
// restored context gets a fresh sequencer; subsequent Append calls continue
// from a new sequence, since sequence numbers are not meaningful across
// process restarts (spec.md's non-goal: no cross-restart plan persistence).
func (c *Context) UnmarshalJSON(data []byte) error {
	var m marshalState
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	trail, err := history.NewTrail()
	if err != nil {
		return fmt.Errorf("execctx: %w", err)
	}
	c.question = m.Question
	c.thePlan = m.Plan
	c.planSet = m.PlanSet
	c.currentStepID = m.CurrentStepID
	c.haveCurrent = m.HaveCurrent
	c.order = m.Order
	c.steps = m.Steps
	if c.steps == nil {
		c.steps = make(map[plan.SubQuestionID]*step.State)
	}
	c.memory = m.Memory
	if c.memory == nil {
		c.memory = make(map[string]any)
	}
	c.finalAnswer = m.FinalAnswer
	c.haveFinal = m.HaveFinal
	c.trail = trail
	for _, evt := range m.History {
		c.trail.Append(evt.Type, evt.StepID, evt.Data)
	}
	if c.clients == nil {
		c.clients = make(map[string]model.Client)
	}
	if c.logger == nil {
		c.logger = telemetry.NewNoopLogger()
	}
	if c.metrics == nil {
		c.metrics = telemetry.NewNoopMetrics()
	}
	if c.tracer == nil {
		c.tracer = telemetry.NewNoopTracer()
	}
	return nil
}
