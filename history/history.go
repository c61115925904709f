// Package history implements the Execution Context's append-only audit
// trail (spec.md §3, §4.3). Every event carries both a wall-clock timestamp
// and a globally ordered sequence number minted from the trail's
// ids.Sequencer (backed by one process-wide snowflake node), so that property 5 of spec.md §8 ("agent_calls for
// any step is monotonically growing in timestamp order") holds even when
// two events land in the same clock tick.
package history

import (
	"time"

	"github.com/fractalhq/orcha/ids"
)

// Event is a single entry in the execution context's audit trail.
type Event struct {
	Seq    int64
	Type   string
	StepID string
	At     time.Time
	Data   map[string]any
}

// Subscriber is notified synchronously whenever an event of a type it
// registered for is appended. Used by the optional plan-archival hook
// (SPEC_FULL.md §6) to react to "plan_set" without the engine's critical
// path importing the archive package.
type Subscriber func(Event)

// Trail is an append-only, strictly ordered list of Events.
type Trail struct {
	seq         *ids.Sequencer
	events      []Event
	subscribers map[string][]Subscriber
}

// NewTrail constructs an empty Trail.
func NewTrail() (*Trail, error) {
	seq, err := ids.NewSequencer()
	if err != nil {
		return nil, err
	}
	return &Trail{seq: seq}, nil
}

// Append builds an event stamped with a fresh sequence number and the
// current time and appends it to the trail. Append never mutates or removes
// existing entries.
func (t *Trail) Append(eventType, stepID string, data map[string]any) Event {
	evt := Event{
		Seq:    t.seq.Next(),
		Type:   eventType,
		StepID: stepID,
		At:     time.Now(),
		Data:   data,
	}
	t.events = append(t.events, evt)
	for _, sub := range t.subscribers[eventType] {
		sub(evt)
	}
	return evt
}

// Subscribe registers fn to be called synchronously whenever an event of
// the given type is appended from this point on; it is never called for
// events already in the trail.
func (t *Trail) Subscribe(eventType string, fn Subscriber) {
	if t.subscribers == nil {
		t.subscribers = make(map[string][]Subscriber)
	}
	t.subscribers[eventType] = append(t.subscribers[eventType], fn)
}

// Events returns the full ordered event list. The returned slice must not be
// mutated by callers.
func (t *Trail) Events() []Event {
	return t.events
}

// Len returns the number of recorded events.
func (t *Trail) Len() int {
	return len(t.events)
}

// Clone returns a copy of the trail with its own event slice, sharing the
// same sequencer so subsequent appends from either copy remain globally
// ordered. Event Data maps are shared, and subscribers are not copied.
func (t *Trail) Clone() *Trail {
	cp := &Trail{seq: t.seq, events: make([]Event, len(t.events))}
	copy(cp.events, t.events)
	return cp
}
