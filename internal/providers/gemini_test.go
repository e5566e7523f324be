package providers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riverbend-labs/canvas-agent/pkg/models"
)

func TestNewGeminiProviderRequiresAPIKey(t *testing.T) {
	_, err := NewGeminiProvider(nil, GeminiConfig{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "API key is required")
}

func TestGeminiContentsDropsSystemAndConvertsToolRoundTrip(t *testing.T) {
	history := []models.ConversationPart{
		{Role: models.RoleSystem, Text: "ignored"},
		{Role: models.RoleUser, Text: "hello"},
		{Role: models.RoleAssistant, ToolCall: &models.ToolCall{ID: "1", Name: "search", Input: json.RawMessage(`{"q":"go"}`)}},
		{Role: models.RoleTool, ToolResult: &models.ToolResult{ToolCallID: "1", Content: `{"ok":true}`}},
	}

	contents, err := geminiContents(history)
	require.NoError(t, err)
	require.Len(t, contents, 3)
	require.NotNil(t, contents[1].Parts[0].FunctionCall)
	require.Equal(t, "search", contents[1].Parts[0].FunctionCall.Name)
	require.NotNil(t, contents[2].Parts[0].FunctionResponse)
	require.Equal(t, "search", contents[2].Parts[0].FunctionResponse.Name)
}

func TestToGeminiToolsReturnsNilForNoTools(t *testing.T) {
	tools := toGeminiTools(nil)
	require.Nil(t, tools)
}
