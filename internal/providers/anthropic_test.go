package providers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riverbend-labs/canvas-agent/pkg/models"
)

func TestNewAnthropicProviderRequiresAPIKey(t *testing.T) {
	_, err := NewAnthropicProvider(AnthropicConfig{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "API key is required")
}

func TestNewAnthropicProviderAppliesDefaultModel(t *testing.T) {
	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "sk-ant-test"})
	require.NoError(t, err)
	require.Equal(t, "claude-sonnet-4-20250514", p.defaultModel)
}

func TestAnthropicMessagesDropsSystemAndConvertsToolRoundTrip(t *testing.T) {
	history := []models.ConversationPart{
		{Role: models.RoleSystem, Text: "ignored"},
		{Role: models.RoleUser, Text: "hello"},
		{Role: models.RoleAssistant, ToolCall: &models.ToolCall{ID: "1", Name: "search", Input: json.RawMessage(`{"q":"go"}`)}},
		{Role: models.RoleTool, ToolResult: &models.ToolResult{ToolCallID: "1", Content: "result text"}},
	}

	messages, err := anthropicMessages(history)
	require.NoError(t, err)
	require.Len(t, messages, 3)
}

func TestAnthropicMessagesRejectsInvalidToolCallInput(t *testing.T) {
	history := []models.ConversationPart{
		{Role: models.RoleAssistant, ToolCall: &models.ToolCall{ID: "1", Name: "search", Input: json.RawMessage(`not json`)}},
	}
	_, err := anthropicMessages(history)
	require.Error(t, err)
}
