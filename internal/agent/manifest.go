package agent

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ManifestOverlay overrides an agent's Instruction/Description by name,
// loaded from an AGENTS.md-adjacent YAML file (spec §10's agent-tree
// manifest). It is applied once, at tree construction time, before the
// tree is handed to NewRunner: Agent.Instruction and Agent.Description
// carry no synchronization (spec §4.4 treats agents as immutable values
// constructed at process start), so mutating them on a tree a Runner is
// already serving turns against would race with runTurn's reads. A
// fsnotify-driven reload (cmd/canvas-agent) instead rebuilds the whole
// tree/Runner/Pipeline from a changed manifest and swaps the serving
// handler, rather than mutating this tree in place.
type ManifestOverlay struct {
	Agents map[string]AgentOverride `yaml:"agents"`
}

// AgentOverride holds the fields a manifest entry may replace. An empty
// string leaves the canonical tree's value untouched.
type AgentOverride struct {
	Instruction string `yaml:"instruction"`
	Description string `yaml:"description"`
}

// LoadManifestOverlay reads and parses a YAML overlay file. A missing file
// is not an error: it means no overlay is configured.
func LoadManifestOverlay(path string) (*ManifestOverlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ManifestOverlay{}, nil
		}
		return nil, fmt.Errorf("agent: read manifest overlay: %w", err)
	}
	var overlay ManifestOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("agent: parse manifest overlay: %w", err)
	}
	if overlay.Agents == nil {
		overlay.Agents = map[string]AgentOverride{}
	}
	return &overlay, nil
}

// Apply walks root's tree depth-first and overwrites Instruction/
// Description for every agent named in the overlay. Call this only on a
// tree that has not yet been passed to NewRunner.
func (m *ManifestOverlay) Apply(root *Agent) {
	if m == nil || root == nil {
		return
	}
	var walk func(a *Agent)
	walk = func(a *Agent) {
		if a == nil {
			return
		}
		if override, ok := m.Agents[a.Name]; ok {
			if override.Instruction != "" {
				a.Instruction = override.Instruction
			}
			if override.Description != "" {
				a.Description = override.Description
			}
		}
		for _, sub := range a.SubAgents {
			walk(sub)
		}
	}
	walk(root)
}
