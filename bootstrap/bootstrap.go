// Package bootstrap wires a fully populated registry.Registry from a
// config.File: the six canonical control agents (spec.md §4.2, §4.6) are
// always registered, and any tools-namespace domain agent named in the
// config is registered by its "implementation" key. Both cmd/demo and
// cmd/server share this so the wiring rules live in exactly one place.
package bootstrap

import (
	"github.com/fractalhq/orcha/agent"
	"github.com/fractalhq/orcha/agents/books"
	"github.com/fractalhq/orcha/agents/dataanalysis"
	"github.com/fractalhq/orcha/agents/dataprocessor"
	"github.com/fractalhq/orcha/agents/docsearch"
	"github.com/fractalhq/orcha/agents/planner"
	"github.com/fractalhq/orcha/agents/reasoner"
	"github.com/fractalhq/orcha/agents/relay"
	"github.com/fractalhq/orcha/agents/synthesizer"
	"github.com/fractalhq/orcha/agents/validator"
	"github.com/fractalhq/orcha/config"
	"github.com/fractalhq/orcha/nodes"
	"github.com/fractalhq/orcha/registry"
)

// implementations maps a config entry's "implementation" key to the
// tools-namespace constructor it selects. Unknown implementation names are
// silently skipped, so a config typo drops an agent rather than panicking
// the whole wiring pass.
var implementations = map[string]func(agent.Descriptor) agent.Agent{
	"books":        func(d agent.Descriptor) agent.Agent { return books.New(d) },
	"docsearch":    func(d agent.Descriptor) agent.Agent { return docsearch.New(d) },
	"dataanalysis": func(d agent.Descriptor) agent.Agent { return dataanalysis.New(d) },
}

// Registry builds a registry.Registry from cfg. cfg may be nil, in which
// case every control agent still registers with a bare descriptor and no
// domain agents are wired (useful for tests and the trivial-plan fallback).
func Registry(cfg *config.File) *registry.Registry {
	reg := registry.New()

	descs := map[string]agent.Descriptor{}
	if cfg != nil {
		descs = cfg.Descriptors()
	}

	reg.RegisterControl(nodes.PlannerAgent, func() agent.Agent { return planner.New(descFor(descs, nodes.PlannerAgent)) })
	reg.RegisterControl(nodes.ReasonerAgent, func() agent.Agent { return reasoner.New(descFor(descs, nodes.ReasonerAgent)) })
	reg.RegisterControl(nodes.ValidatorAgent, func() agent.Agent { return validator.New(descFor(descs, nodes.ValidatorAgent)) })
	reg.RegisterControl(nodes.SynthesizerAgent, func() agent.Agent { return synthesizer.New(descFor(descs, nodes.SynthesizerAgent)) })
	reg.RegisterControl(nodes.DataProcessorAgent, func() agent.Agent { return dataprocessor.New(descFor(descs, nodes.DataProcessorAgent)) })
	reg.RegisterControl(nodes.RelayAgent, func() agent.Agent { return relay.New(descFor(descs, nodes.RelayAgent)) })

	for name, desc := range descs {
		ctor, ok := implementations[desc.Implementation]
		if !ok {
			continue
		}
		reg.RegisterTool(name, func() agent.Agent { return ctor(desc) })
	}

	return reg
}

// descFor returns the configured descriptor for name, or a bare descriptor
// carrying just the name if the config has no entry for it — every
// canonical control agent works with its own defaults unconfigured.
func descFor(descs map[string]agent.Descriptor, name string) agent.Descriptor {
	if d, ok := descs[name]; ok {
		return d
	}
	return agent.Descriptor{Name: agent.Ident(name)}
}
