// Package step defines per-sub-question mutable execution state (spec.md
// §3, StepExecutionState) and the fixed fetch/process/validate stage
// lifecycle driven by the reasoner/executor loop (spec.md §4.5).
package step

// Stage is one phase of a step's lifecycle.
type Stage string

const (
	// StageFetch runs the reasoner's selected hypothesis tool call.
	StageFetch Stage = "fetch"
	// StageProcess runs the canonical data-analysis call over the fetch output.
	StageProcess Stage = "process"
	// StageValidate runs the canonical result-validation call.
	StageValidate Stage = "validate"
	// StageCompleted is a sentinel returned by GetCurrentStage when every
	// expected stage has completed; it is never a key in Expected/Completed.
	StageCompleted Stage = "completed"
)

// Order is the fixed stage order the state machine evaluates in.
var Order = []Stage{StageFetch, StageProcess, StageValidate}

// Hypothesis is the selected tool call proposed by the reasoner.
type Hypothesis struct {
	Agent      string
	Operation  string
	Params     map[string]any
	Confidence float64
}

// HypothesisCandidate is one candidate produced by the reasoner's decision
// before the engine's deterministic selection override is applied.
type HypothesisCandidate struct {
	Agent       string         `mapstructure:"agent"`
	Operation   string         `mapstructure:"operation"`
	Params      map[string]any `mapstructure:"params"`
	Confidence  float64        `mapstructure:"confidence"`
	Reason      string         `mapstructure:"reason"`
	Explanation string         `mapstructure:"explanation"`
}

// FlagDecision is a boolean flag plus the reasoner's rationale for it
// (used for Postprocessing and Validation in Decision).
type FlagDecision struct {
	Needed      bool    `mapstructure:"needed"`
	Confidence  float64 `mapstructure:"confidence"`
	Reason      string  `mapstructure:"reason"`
	Explanation string  `mapstructure:"explanation"`
}

// FinalDecision names which hypothesis the reasoner itself picked, before
// the engine's deterministic override re-selects (spec.md §4.5 step 3).
type FinalDecision struct {
	SelectedHypothesis int    `mapstructure:"selected_hypothesis"`
	Explanation        string `mapstructure:"explanation"`
}

// Decision is the reasoner's structured output for one turn of the
// per-step state machine (spec.md §4.5).
type Decision struct {
	Hypotheses     []HypothesisCandidate `mapstructure:"hypotheses"`
	Postprocessing FlagDecision          `mapstructure:"postprocessing"`
	Validation     FlagDecision          `mapstructure:"validation"`
	FinalDecision  FinalDecision         `mapstructure:"final_decision"`
	Reasoning      []string              `mapstructure:"reasoning"`
}

// ValidationResult is the outcome of the validate stage.
type ValidationResult struct {
	IsValid     bool    `mapstructure:"is_valid"`
	Confidence  float64 `mapstructure:"confidence"`
	Reasoning   string  `mapstructure:"reasoning"`
	Explanation string  `mapstructure:"explanation"`
}

// AgentCallRecord is one append-only entry in a step's agent_calls log.
type AgentCallRecord struct {
	Agent     string
	Operation string
	Status    string
	Summary   string
	Error     string
	Timestamp int64
}

// State is the mutable per-sub-question execution state (spec.md §3,
// StepExecutionState).
type State struct {
	Expected  map[Stage]bool
	Completed map[Stage]bool

	Decision   *Decision
	Hypothesis *Hypothesis
	RawOutput  any

	ValidationResult *ValidationResult

	AgentCalls []AgentCallRecord

	RetryCount int
	Error      string
	Done       bool
}

// New constructs an empty step State with zeroed stage maps.
func New() *State {
	return &State{
		Expected:  make(map[Stage]bool, len(Order)),
		Completed: make(map[Stage]bool, len(Order)),
	}
}

// IsStageCompleted reports whether the given stage has completed.
func (s *State) IsStageCompleted(stage Stage) bool {
	return s.Completed[stage]
}

// MarkStageCompleted marks a stage completed. It never clears Expected, and
// is idempotent.
func (s *State) MarkStageCompleted(stage Stage) {
	if s.Completed == nil {
		s.Completed = make(map[Stage]bool, len(Order))
	}
	s.Completed[stage] = true
}

// SetExpectedStage enables a stage as expected. Previously enabled stages
// are never disabled (spec.md §3 invariant: "expected is set at most once
// per step and never reduced").
func (s *State) SetExpectedStage(stage Stage, expected bool) {
	if s.Expected == nil {
		s.Expected = make(map[Stage]bool, len(Order))
	}
	if expected {
		s.Expected[stage] = true
	} else if _, already := s.Expected[stage]; !already {
		s.Expected[stage] = false
	}
}

// CurrentStage returns the first expected-but-not-completed stage in fixed
// order fetch → process → validate, or StageCompleted if every expected
// stage has completed.
func (s *State) CurrentStage() Stage {
	for _, stage := range Order {
		if s.Expected[stage] && !s.Completed[stage] {
			return stage
		}
	}
	return StageCompleted
}

// FullyCompleted reports whether the step is done: either every expected
// stage has completed, or the step failed terminally (spec.md §3 invariant,
// §8 property 2). A step whose expected stages have not been recorded yet
// (fresh, or just reset for a retry) is not done; once they are recorded,
// a step that expects no stage at all is done.
func (s *State) FullyCompleted() bool {
	if s.Done {
		return true
	}
	if len(s.Expected) == 0 {
		return false
	}
	for _, stage := range Order {
		if s.Expected[stage] && !s.Completed[stage] {
			return false
		}
	}
	return true
}

// ResetForRetry clears completion, output, and decision state for a retry
// attempt and increments RetryCount. Clearing Decision/Hypothesis (as well
// as Expected) forces the scheduler to route the step back through the
// reasoner for a fresh decision rather than replaying the failed hypothesis
// (spec.md §4.5 retry handling).
func (s *State) ResetForRetry() {
	s.Expected = make(map[Stage]bool, len(Order))
	s.Completed = make(map[Stage]bool, len(Order))
	s.RawOutput = nil
	s.ValidationResult = nil
	s.Decision = nil
	s.Hypothesis = nil
	s.RetryCount++
}
