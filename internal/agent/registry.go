package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Tool parameter limits to prevent resource exhaustion.
const (
	// MaxToolNameLength is the maximum length of a tool name.
	MaxToolNameLength = 256

	// MaxToolParamsSize is the maximum size of tool parameters JSON (10MB).
	MaxToolParamsSize = 10 << 20
)

// ToolRegistry manages an agent's available tools with thread-safe
// registration and lookup. Tools are registered by name; a sub-agent marked
// AsTool is wrapped by NewToolRegistryFor and registers under its own name
// too, so the parent LLM sees it as one more callable (spec §4.4).
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewToolRegistry creates a new empty tool registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// NewToolRegistryFor builds a registry from an agent's own tool set plus a
// tool-shaped stub for every sub-agent marked AsTool.
func NewToolRegistryFor(a *Agent, transfer func(ctx context.Context, tc ToolContext, target *Agent, userMessage string) (string, error)) *ToolRegistry {
	r := NewToolRegistry()
	for _, t := range a.Tools {
		r.Register(t)
	}
	for _, sub := range a.SubAgents {
		if sub == nil || !sub.AsTool {
			continue
		}
		child := sub
		r.Register(&toolStub{
			agent: child,
			run: func(ctx context.Context, tc ToolContext, msg string) (string, error) {
				return transfer(ctx, tc, child, msg)
			},
		})
	}
	return r
}

// Register adds a tool to the registry by its name, replacing any existing
// tool under the same name.
func (r *ToolRegistry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get returns a tool by name and whether it was found.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Tools returns every registered tool, for building LLM tool schemas.
func (r *ToolRegistry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// Execute runs a tool by name with the given JSON parameters and implicit
// tool context. A missing tool or oversized input never panics: it is
// rendered as an error ToolResult (spec §4.2 invariant (a)).
func (r *ToolRegistry) Execute(ctx context.Context, tc ToolContext, name string, params json.RawMessage) (*ToolResult, error) {
	if len(name) > MaxToolNameLength {
		return &ToolResult{Content: fmt.Sprintf("Error: tool name exceeds maximum length of %d characters", MaxToolNameLength), IsError: true}, nil
	}
	if len(params) > MaxToolParamsSize {
		return &ToolResult{Content: fmt.Sprintf("Error: tool parameters exceed maximum size of %d bytes", MaxToolParamsSize), IsError: true}, nil
	}

	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return &ToolResult{Content: "Error: tool not found: " + name, IsError: true}, nil
	}
	return tool.Execute(ctx, tc, params)
}
