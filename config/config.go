// Package config loads agent descriptor configuration from YAML, with
// secret-shaped values overlaid from a .env file (spec.md §6 "Configuration";
// recognized per-agent keys: llm_profile, db_uri, allowed_tables, max_rows;
// max_retries is read from the engine section, not per agent). Mirrors the teacher's environment-driven descriptor pattern:
// YAML carries structure and non-secret defaults, the process environment
// (optionally seeded from .env) carries anything ${VAR}-shaped.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/fractalhq/orcha/agent"
)

// ErrNotFound indicates the YAML file at the given path does not exist.
var ErrNotFound = errors.New("config: file not found")

// AgentEntry is one agent's descriptor as read from YAML, before being
// turned into an agent.Descriptor.
type AgentEntry struct {
	Title          string         `yaml:"title"`
	Description    string         `yaml:"description"`
	Implementation string         `yaml:"implementation"`
	Config         map[string]any `yaml:"config"`
}

// EngineEntry carries engine-wide overrides of the state machine's defaults
// (spec.md §5: MAX_RETRIES, the per-step loop budget).
type EngineEntry struct {
	MaxRetries int `yaml:"max_retries"`
	LoopBudget int `yaml:"loop_budget"`
}

// File is the parsed shape of an agents.yaml document: one descriptor per
// agent name, plus optional engine-wide overrides.
type File struct {
	Agents map[string]AgentEntry `yaml:"agents"`
	Engine EngineEntry           `yaml:"engine"`
}

// Load reads and parses the YAML file at path. If envPath is non-empty, its
// contents are loaded into the process environment first (godotenv.Overload,
// so a repeated Load in tests picks up fixture changes) so that any
// ${VAR}-shaped value in the YAML resolves against it; envPath not existing
// is not an error, since most deployments rely on real environment
// variables rather than a checked-in .env.
func Load(path string, envPath string) (*File, error) {
	if envPath != "" {
		if err := godotenv.Overload(envPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: load env file %q: %w", envPath, err)
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	expanded := os.ExpandEnv(string(raw))

	var f File
	if err := yaml.Unmarshal([]byte(expanded), &f); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return &f, nil
}

// Descriptors converts every entry in f.Agents into an agent.Descriptor,
// keyed by agent name, ready to hand to whatever wires agent constructors
// into a registry.
func (f *File) Descriptors() map[string]agent.Descriptor {
	out := make(map[string]agent.Descriptor, len(f.Agents))
	for name, e := range f.Agents {
		out[name] = agent.Descriptor{
			Name:           agent.Ident(name),
			Title:          e.Title,
			Description:    e.Description,
			Implementation: e.Implementation,
			Config:         e.Config,
		}
	}
	return out
}

// StringValue reads a string-typed key out of an agent's Config map,
// returning ("", false) if absent or not a string.
func StringValue(cfg map[string]any, key string) (string, bool) {
	v, ok := cfg[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// IntValue reads an int-typed key out of an agent's Config map. YAML
// integers decode as int; values surviving a JSON round-trip may arrive as
// float64, so both are accepted.
func IntValue(cfg map[string]any, key string) (int, bool) {
	v, ok := cfg[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// StringSliceValue reads a []string-typed key out of an agent's Config map
// (e.g. allowed_tables).
func StringSliceValue(cfg map[string]any, key string) ([]string, bool) {
	v, ok := cfg[key]
	if !ok {
		return nil, false
	}
	switch s := v.(type) {
	case []string:
		return s, true
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, str)
		}
		return out, true
	default:
		return nil, false
	}
}

// MaxRetries returns the engine-wide retry override, or fallback if unset.
func (f *File) MaxRetries(fallback int) int {
	if f.Engine.MaxRetries > 0 {
		return f.Engine.MaxRetries
	}
	return fallback
}

// LoopBudget returns the engine-wide loop-budget override, or fallback if
// unset.
func (f *File) LoopBudget(fallback int) int {
	if f.Engine.LoopBudget > 0 {
		return f.Engine.LoopBudget
	}
	return fallback
}
