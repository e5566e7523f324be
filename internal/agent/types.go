// Package agent implements the Agent Definition Model and the turn-execution
// Runner: the rooted DAG of immutable Agent values, the Tool interface and
// registry every Agent dispatches through, and the single-turn algorithm that
// drives an LLM call to a final response (spec §4.4–§4.5).
package agent

import (
	"context"
	"encoding/json"
)

// ToolResult is what a Tool returns. Tools never panic or return a bare Go
// error across the dispatch boundary — failures are rendered into Content
// with IsError set, matching models.ToolResult's "tool returns string, no
// crash" contract.
type ToolResult struct {
	Content string
	IsError bool
}

// ToolContext is the implicit context every tool receives. Tools derive their
// tenant from ChatID here, never from a caller-supplied argument — this is
// the mechanism that prevents a tool from being asked to guess tenancy.
type ToolContext struct {
	ChatID    string
	SessionID string
	AgentID   string
	State     map[string]any
}

// Tool is a named, typed, synchronous callable with a declarative JSON
// argument schema and a description consumed by the LLM.
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Execute(ctx context.Context, tc ToolContext, params json.RawMessage) (*ToolResult, error)
}

// ModelHandle identifies the LLM backing an Agent (e.g. "gemini-2.0-flash",
// "claude-sonnet-4-5"); resolution to a Provider happens in internal/providers.
type ModelHandle string

// Agent is the immutable tuple spec §4.4 defines: name, model handle,
// description, instruction, a tool set, and an ordered sequence of
// sub-agents. Agents are constructed once at process start; composition
// forms a rooted DAG with no cycles (enforced by BuildTree).
type Agent struct {
	Name        string
	Model       ModelHandle
	Description string
	Instruction string
	Tools       []Tool
	SubAgents   []*Agent

	// AsTool, when true, exposes this agent to its parent as a single
	// tool-shaped callable (the parent LLM sees one function named after
	// Name with Description as its description). This stub is the only way
	// the Runner calls a sub-agent: a sub-agent with AsTool false is part of
	// the tree but is not callable from its parent's turn.
	AsTool bool
}

// toolStub wraps a sub-agent so it can be registered in the parent's
// ToolRegistry and appear to the parent LLM as a single callable (spec
// §4.4's "tool-shaped agent").
type toolStub struct {
	agent *Agent
	run   func(ctx context.Context, tc ToolContext, userMessage string) (string, error)
}

func (s *toolStub) Name() string        { return s.agent.Name }
func (s *toolStub) Description() string { return s.agent.Description }

func (s *toolStub) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"message":{"type":"string","description":"The request to hand to this sub-agent."}},"required":["message"]}`)
}

func (s *toolStub) Execute(ctx context.Context, tc ToolContext, params json.RawMessage) (*ToolResult, error) {
	var input struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return &ToolResult{Content: "Error: invalid parameters: " + err.Error(), IsError: true}, nil
	}
	text, err := s.run(ctx, tc, input.Message)
	if err != nil {
		return &ToolResult{Content: "Error: " + err.Error(), IsError: true}, nil
	}
	return &ToolResult{Content: text}, nil
}
