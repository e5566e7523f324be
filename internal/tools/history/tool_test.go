package history

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riverbend-labs/canvas-agent/internal/agent"
	"github.com/riverbend-labs/canvas-agent/internal/canvas"
)

func TestFetchElementsFiltersByContent(t *testing.T) {
	ctx := context.Background()
	svc := canvas.NewService(nil, nil)
	tool := NewTool(svc)
	tc := agent.ToolContext{ChatID: "1"}

	cv, err := svc.GetOrCreateCanvasForChat(ctx, canvas.AccessKeyForChat(tc.ChatID))
	require.NoError(t, err)

	_, err = svc.AddElement(ctx, &canvas.Element{CanvasID: cv.ID, Type: "message", Content: "hello world", CreatedBy: "telegram:user:1"}, "")
	require.NoError(t, err)
	_, err = svc.AddElement(ctx, &canvas.Element{CanvasID: cv.ID, Type: "message", Content: "goodbye", CreatedBy: "telegram:user:2"}, "")
	require.NoError(t, err)

	params, _ := json.Marshal(map[string]any{"contains": "hello"})
	res, err := tool.Execute(ctx, tc, params)
	require.NoError(t, err)
	require.False(t, res.IsError)

	var out []map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Content), &out))
	require.Len(t, out, 1)
	require.Equal(t, "hello world", out[0]["content"])
}

func TestFetchElementsEmptyCanvasReturnsEmptyArray(t *testing.T) {
	ctx := context.Background()
	svc := canvas.NewService(nil, nil)
	tool := NewTool(svc)

	params, _ := json.Marshal(map[string]any{})
	res, err := tool.Execute(ctx, agent.ToolContext{ChatID: "chat:empty"}, params)
	require.NoError(t, err)
	require.Equal(t, "[]", res.Content)
}

func TestFetchElementsInvalidTimeRange(t *testing.T) {
	ctx := context.Background()
	svc := canvas.NewService(nil, nil)
	tool := NewTool(svc)

	params, _ := json.Marshal(map[string]any{"time_range": "not a real time"})
	res, err := tool.Execute(ctx, agent.ToolContext{ChatID: "chat:1"}, params)
	require.NoError(t, err)
	require.True(t, res.IsError)
}
