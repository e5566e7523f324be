package canvasops

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riverbend-labs/canvas-agent/internal/agent"
	"github.com/riverbend-labs/canvas-agent/internal/canvas"
)

func TestToolCreateElementThenEdit(t *testing.T) {
	ctx := context.Background()
	svc := canvas.NewService(nil, nil)
	tool := NewTool(svc)
	tc := agent.ToolContext{ChatID: "chat:1"}

	createParams, _ := json.Marshal(map[string]any{"action": "create_element", "content": "hello", "created_by": "alice"})
	res, err := tool.Execute(ctx, tc, createParams)
	require.NoError(t, err)
	require.False(t, res.IsError)

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Content), &created))
	require.NotEmpty(t, created.ID)

	editParams, _ := json.Marshal(map[string]any{"action": "edit_element", "element_id": created.ID, "content": "updated"})
	res, err = tool.Execute(ctx, tc, editParams)
	require.NoError(t, err)
	require.False(t, res.IsError)

	var edited struct {
		Content string `json:"content"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Content), &edited))
	require.Equal(t, "updated", edited.Content)
}

func TestToolRejectsCrossChatFrame(t *testing.T) {
	ctx := context.Background()
	svc := canvas.NewService(nil, nil)
	tool := NewTool(svc)

	createFrame, _ := json.Marshal(map[string]any{"action": "create_canvas_frame", "name": "plan"})
	res, err := tool.Execute(ctx, agent.ToolContext{ChatID: "chat:a"}, createFrame)
	require.NoError(t, err)
	require.False(t, res.IsError)
	var frame struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Content), &frame))

	createElement, _ := json.Marshal(map[string]any{"action": "create_element", "content": "hi"})
	res, err = tool.Execute(ctx, agent.ToolContext{ChatID: "chat:b"}, createElement)
	require.NoError(t, err)
	var el struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Content), &el))

	link, _ := json.Marshal(map[string]any{"action": "add_element_to_frame", "frame_id": frame.ID, "element_id": el.ID})
	res, err = tool.Execute(ctx, agent.ToolContext{ChatID: "chat:b"}, link)
	require.NoError(t, err)
	require.True(t, res.IsError)
}

func TestToolMissingChatID(t *testing.T) {
	ctx := context.Background()
	svc := canvas.NewService(nil, nil)
	tool := NewTool(svc)

	params, _ := json.Marshal(map[string]any{"action": "get_current_canvas_info"})
	res, err := tool.Execute(ctx, agent.ToolContext{}, params)
	require.NoError(t, err)
	require.True(t, res.IsError)
}
