package nodes

import "github.com/fractalhq/orcha/execctx"

// Scheduler implements next_subquestion (spec.md §4.6): it picks the next
// ready, not-yet-completed sub-question in plan order (the tie-break is
// plan index, enforced by execctx.SelectNextStep), starts it, and routes to
// the reasoner or straight to the executor depending on whether the step
// already has a reasoner decision pending from a prior visit — mid-attempt
// after fetch but before process/validate (spec.md REDESIGN FLAGS). When no
// step is ready and every step is complete, it routes to the synthesizer.
func Scheduler(ectx *execctx.Context) Route {
	id, ok := ectx.SelectNextStep()
	if !ok {
		return RouteSynthesizer
	}
	st := ectx.StartStep(id)
	if st.Decision == nil {
		return RouteReasoner
	}
	return RouteExecutor
}
