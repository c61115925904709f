// Package envelope defines the uniform success/error record every agent
// operation returns. Callers never populate Agent/Operation directly; the
// registry dispatcher stamps those fields (and the elapsed-time metadata)
// after an operation returns.
package envelope

import "time"

// Status is the coarse outcome of an operation.
type Status string

const (
	// StatusOK indicates the operation completed successfully.
	StatusOK Status = "ok"
	// StatusError indicates the operation failed.
	StatusError Status = "error"
)

// Result is the Result Envelope: the uniform record every agent operation
// returns. Diagnostics (Thinking, Prompt, RawResponse, TokensUsed) are only
// populated when the operation consulted an LLM.
type Result struct {
	Status Status
	// Stage is a free-form tag naming the lifecycle phase that produced this
	// result (e.g. "planning", "reasoning", "data_fetch", "data_processing",
	// "result_validation", "synthesis", "entity_validation").
	Stage string

	// Agent and Operation are populated by the dispatcher, never by the
	// operation implementation itself.
	Agent     string
	Operation string

	InputParams map[string]any
	Output      any
	Summary     string
	Error       string

	Thinking    string
	Prompt      string
	RawResponse string
	TokensUsed  int

	Metadata map[string]any
	TS       time.Time
}

// Option configures optional diagnostic fields on a Result.
type Option func(*Result)

// WithThinking attaches the model's thinking/reasoning trace.
func WithThinking(thinking string) Option {
	return func(r *Result) { r.Thinking = thinking }
}

// WithPrompt attaches the rendered prompt sent to the model.
func WithPrompt(prompt string) Option {
	return func(r *Result) { r.Prompt = prompt }
}

// WithRawResponse attaches the raw provider response text.
func WithRawResponse(raw string) Option {
	return func(r *Result) { r.RawResponse = raw }
}

// WithTokensUsed records the number of tokens consumed producing this result.
func WithTokensUsed(tokens int) Option {
	return func(r *Result) { r.TokensUsed = tokens }
}

// WithMetadata merges the given map into the result's free-form metadata.
func WithMetadata(meta map[string]any) Option {
	return func(r *Result) {
		if len(meta) == 0 {
			return
		}
		if r.Metadata == nil {
			r.Metadata = make(map[string]any, len(meta))
		}
		for k, v := range meta {
			r.Metadata[k] = v
		}
	}
}

// WithInputParams records the params the operation was invoked with.
func WithInputParams(params map[string]any) Option {
	return func(r *Result) { r.InputParams = params }
}

// Ok constructs a successful Result for the given stage.
func Ok(stage string, output any, summary string, opts ...Option) Result {
	r := Result{
		Status:  StatusOK,
		Stage:   stage,
		Output:  output,
		Summary: summary,
		TS:      time.Now(),
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// Err constructs a failed Result for the given stage.
func Err(message, stage string, opts ...Option) Result {
	r := Result{
		Status: StatusError,
		Stage:  stage,
		Error:  message,
		TS:     time.Now(),
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// IsOK reports whether the result represents success.
func (r Result) IsOK() bool { return r.Status == StatusOK }

// ToMap serializes the result to a plain map, omitting null/zero diagnostic
// fields so logs stay clean.
func (r Result) ToMap() map[string]any {
	m := map[string]any{
		"status": string(r.Status),
		"stage":  r.Stage,
	}
	if r.Agent != "" {
		m["agent"] = r.Agent
	}
	if r.Operation != "" {
		m["operation"] = r.Operation
	}
	if len(r.InputParams) > 0 {
		m["input_params"] = r.InputParams
	}
	if r.Output != nil {
		m["output"] = r.Output
	}
	if r.Summary != "" {
		m["summary"] = r.Summary
	}
	if r.Error != "" {
		m["error"] = r.Error
	}
	if r.Thinking != "" {
		m["thinking"] = r.Thinking
	}
	if r.Prompt != "" {
		m["prompt"] = r.Prompt
	}
	if r.RawResponse != "" {
		m["raw_response"] = r.RawResponse
	}
	if r.TokensUsed != 0 {
		m["tokens_used"] = r.TokensUsed
	}
	if len(r.Metadata) > 0 {
		m["metadata"] = r.Metadata
	}
	if !r.TS.IsZero() {
		m["ts"] = r.TS
	}
	return m
}

// WithStamp returns a copy of the result stamped with the dispatching agent,
// operation name, and elapsed duration in metadata. Only the dispatcher
// should call this.
func (r Result) WithStamp(agentName, operation string, elapsed time.Duration) Result {
	out := r
	out.Agent = agentName
	out.Operation = operation
	if out.Metadata == nil {
		out.Metadata = make(map[string]any, 1)
	} else {
		cp := make(map[string]any, len(out.Metadata)+1)
		for k, v := range out.Metadata {
			cp[k] = v
		}
		out.Metadata = cp
	}
	out.Metadata["elapsed"] = elapsed.String()
	return out
}
