// Package archive implements the optional, non-normative plan-archival hook
// (spec.md §6): every time a plan is installed on an Execution Context, a
// configured Writer persists a snapshot of it outside the engine's
// critical path. Two implementations are provided, archive/file (one JSON
// file per plan) and archive/mongo (one BSON document per plan in a capped
// collection); neither is required for Invoke to function.
package archive

import (
	"context"
	"time"

	"github.com/fractalhq/orcha/execctx"
	"github.com/fractalhq/orcha/history"
	"github.com/fractalhq/orcha/ids"
	"github.com/fractalhq/orcha/plan"
)

// Record is the snapshot persisted for one plan.
type Record struct {
	RunID    string    `json:"run_id" bson:"_id"`
	Question string    `json:"question" bson:"question"`
	Plan     plan.Plan `json:"plan" bson:"plan"`
	At       time.Time `json:"at" bson:"at"`
}

// Writer persists a plan record. Implementations must not block the
// invocation they archive for longer than necessary; Attach logs and
// discards write failures rather than propagating them.
type Writer interface {
	WritePlan(ctx context.Context, rec Record) error
}

// Attach subscribes w to ectx's "plan_set" history event, so every
// SetPlan call produces one archived record. Safe to call at most once per
// context; calling it more than once archives the same plan_set event
// multiple times, once per attached writer.
func Attach(ctx context.Context, ectx *execctx.Context, w Writer) {
	ectx.Subscribe("plan_set", func(evt history.Event) {
		p, _ := evt.Data["plan"].(plan.Plan)
		rec := Record{
			RunID:    ids.New(),
			Question: ectx.GetQuestion(),
			Plan:     p,
			At:       evt.At,
		}
		if err := w.WritePlan(ctx, rec); err != nil {
			ectx.Logger().Error(ctx, "archive: write plan failed", "error", err)
		}
	})
}
