// Package ids provides identifier generation used across the engine: random
// UUIDs for steps, tool calls, and runs, and a globally ordered snowflake
// sequence for history events that need a total order independent of
// wall-clock timestamps (two events can share a timestamp; they cannot
// share a sequence number).
package ids

import (
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// New returns a random UUID string. Used for step ids generated by callers,
// tool-call ids, and run ids.
func New() string {
	return uuid.NewString()
}

var (
	seqOnce sync.Once
	seqNode *snowflake.Node
	seqErr  error
)

// Sequencer issues monotonically increasing, globally ordered identifiers.
// A single process-wide snowflake.Node backs every Sequencer so that ids
// minted by different contexts never collide.
type Sequencer struct {
	node *snowflake.Node
}

// NewSequencer returns a Sequencer backed by the shared snowflake node,
// lazily initialized on first use.
func NewSequencer() (*Sequencer, error) {
	seqOnce.Do(func() {
		seqNode, seqErr = snowflake.NewNode(1)
	})
	if seqErr != nil {
		return nil, seqErr
	}
	return &Sequencer{node: seqNode}, nil
}

// Next returns the next sequence number as an int64.
func (s *Sequencer) Next() int64 {
	return int64(s.node.Generate())
}
