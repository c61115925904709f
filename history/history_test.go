package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppend_AssignsMonotonicSequence(t *testing.T) {
	trail, err := NewTrail()
	require.NoError(t, err)

	first := trail.Append("plan_set", "", nil)
	second := trail.Append("tool_executed", "q1", map[string]any{"agent": "books"})

	assert.Less(t, first.Seq, second.Seq)
	assert.Equal(t, 2, trail.Len())
}

func TestSubscribe_FiresOnlyForMatchingType(t *testing.T) {
	trail, err := NewTrail()
	require.NoError(t, err)

	var planSetEvents, toolEvents []Event
	trail.Subscribe("plan_set", func(evt Event) { planSetEvents = append(planSetEvents, evt) })
	trail.Subscribe("tool_executed", func(evt Event) { toolEvents = append(toolEvents, evt) })

	trail.Append("plan_set", "", map[string]any{"subquestion_count": 1})
	trail.Append("tool_executed", "q1", nil)
	trail.Append("tool_executed", "q2", nil)

	assert.Len(t, planSetEvents, 1)
	assert.Len(t, toolEvents, 2)
}

func TestSubscribe_DoesNotFireForPastEvents(t *testing.T) {
	trail, err := NewTrail()
	require.NoError(t, err)

	trail.Append("plan_set", "", nil)

	var fired int
	trail.Subscribe("plan_set", func(Event) { fired++ })

	assert.Equal(t, 0, fired)
}
