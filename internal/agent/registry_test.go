package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

type echoTool struct{ name string }

func (e *echoTool) Name() string                 { return e.name }
func (e *echoTool) Description() string          { return "echoes the chat_id from context" }
func (e *echoTool) Schema() json.RawMessage      { return json.RawMessage(`{"type":"object"}`) }
func (e *echoTool) Execute(_ context.Context, tc ToolContext, _ json.RawMessage) (*ToolResult, error) {
	return &ToolResult{Content: tc.ChatID}, nil
}

func TestToolRegistryExecuteDerivesTenantFromContext(t *testing.T) {
	r := NewToolRegistry()
	r.Register(&echoTool{name: "whoami"})

	res, err := r.Execute(context.Background(), ToolContext{ChatID: "chat:42"}, "whoami", json.RawMessage(`{}`))
	require.NoError(t, err)
	require.Equal(t, "chat:42", res.Content)
}

func TestToolRegistryExecuteUnknownTool(t *testing.T) {
	r := NewToolRegistry()
	res, err := r.Execute(context.Background(), ToolContext{}, "nope", json.RawMessage(`{}`))
	require.NoError(t, err)
	require.True(t, res.IsError)
}

func TestNewToolRegistryForRegistersSubAgentStub(t *testing.T) {
	sub := &Agent{Name: "canvas_manager", Description: "manages the canvas", AsTool: true}
	root := &Agent{Name: "orchestrator", SubAgents: []*Agent{sub}}

	called := false
	registry := NewToolRegistryFor(root, func(_ context.Context, _ ToolContext, target *Agent, msg string) (string, error) {
		called = true
		require.Equal(t, "canvas_manager", target.Name)
		require.Equal(t, "do the thing", msg)
		return "done", nil
	})

	tool, ok := registry.Get("canvas_manager")
	require.True(t, ok)

	res, err := tool.Execute(context.Background(), ToolContext{}, json.RawMessage(`{"message":"do the thing"}`))
	require.NoError(t, err)
	require.True(t, called)
	require.Equal(t, "done", res.Content)
}
