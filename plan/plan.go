// Package plan defines the Question and Plan/SubQuestion DAG types (spec.md
// §3) along with the structural validation the Planner Node (§4.4) runs
// before accepting a planner agent's output.
package plan

import (
	"fmt"
)

// Question is the user's original input. It is immutable after being set on
// the execution context.
type Question string

// SubQuestionID identifies one node of the plan DAG.
type SubQuestionID string

// SubQuestion is one node of the plan DAG: a stable id, natural-language
// text, and a list of predecessor ids. Sub-questions are created once by the
// planner and never mutated afterward.
type SubQuestion struct {
	ID        SubQuestionID   `json:"id" mapstructure:"id"`
	Text      string          `json:"text" mapstructure:"text"`
	DependsOn []SubQuestionID `json:"depends_on,omitempty" mapstructure:"depends_on"`
}

// Plan is the ordered list of SubQuestions produced by the planner. The
// invariant is that DependsOn references only ids already present earlier in
// (or anywhere in) the same plan, and that the induced graph is acyclic.
type Plan struct {
	SubQuestions []SubQuestion `json:"subquestions" mapstructure:"subquestions"`
}

// Index returns the position of id within the plan, or -1 if id is absent.
func (p Plan) Index(id SubQuestionID) int {
	for i, sq := range p.SubQuestions {
		if sq.ID == id {
			return i
		}
	}
	return -1
}

// Get returns the SubQuestion with the given id.
func (p Plan) Get(id SubQuestionID) (SubQuestion, bool) {
	for _, sq := range p.SubQuestions {
		if sq.ID == id {
			return sq, true
		}
	}
	return SubQuestion{}, false
}

// Validate checks the Plan invariants from spec.md §3: unique ids, every
// DependsOn entry references a known id in the same plan, and the induced
// graph is acyclic (testable property 4, spec.md §8).
func (p Plan) Validate() error {
	if len(p.SubQuestions) == 0 {
		return fmt.Errorf("plan: empty plan")
	}
	seen := make(map[SubQuestionID]bool, len(p.SubQuestions))
	for _, sq := range p.SubQuestions {
		if sq.ID == "" {
			return fmt.Errorf("plan: sub-question with empty id")
		}
		if seen[sq.ID] {
			return fmt.Errorf("plan: duplicate sub-question id %q", sq.ID)
		}
		seen[sq.ID] = true
	}
	for _, sq := range p.SubQuestions {
		for _, dep := range sq.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("plan: sub-question %q depends on unknown id %q", sq.ID, dep)
			}
			if dep == sq.ID {
				return fmt.Errorf("plan: sub-question %q depends on itself", sq.ID)
			}
		}
	}
	if _, err := p.TopologicalOrder(); err != nil {
		return err
	}
	return nil
}

// TopologicalOrder returns a topological sort of the plan's sub-question
// ids, or an error if the induced graph contains a cycle. Used by Validate
// (spec.md §8, property 4).
func (p Plan) TopologicalOrder() ([]SubQuestionID, error) {
	indegree := make(map[SubQuestionID]int, len(p.SubQuestions))
	dependents := make(map[SubQuestionID][]SubQuestionID, len(p.SubQuestions))
	for _, sq := range p.SubQuestions {
		if _, ok := indegree[sq.ID]; !ok {
			indegree[sq.ID] = 0
		}
		for _, dep := range sq.DependsOn {
			indegree[sq.ID]++
			dependents[dep] = append(dependents[dep], sq.ID)
		}
	}
	var queue []SubQuestionID
	for _, sq := range p.SubQuestions {
		if indegree[sq.ID] == 0 {
			queue = append(queue, sq.ID)
		}
	}
	order := make([]SubQuestionID, 0, len(p.SubQuestions))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, dependent := range dependents[id] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}
	if len(order) != len(p.SubQuestions) {
		return nil, fmt.Errorf("plan: dependency graph contains a cycle")
	}
	return order, nil
}

// Trivial returns a single-step plan whose sole sub-question is the given
// question text. Used as the Planner Node's fallback (spec.md §4.4,
// scenario F in §8).
func Trivial(question string) Plan {
	return Plan{SubQuestions: []SubQuestion{{ID: "q1", Text: question}}}
}
