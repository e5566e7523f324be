package knowledge

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riverbend-labs/canvas-agent/internal/agent"
	"github.com/riverbend-labs/canvas-agent/internal/knowledgebase"
)

type fakeClient struct {
	searchChatID string
	docsChatID   string
}

func (f *fakeClient) SearchKnowledgeBase(_ context.Context, chatID, query string, limit int) ([]knowledgebase.SearchResult, error) {
	f.searchChatID = chatID
	return []knowledgebase.SearchResult{{Document: knowledgebase.Document{ChatID: chatID, Title: query}, Score: 0.9}}, nil
}

func (f *fakeClient) FetchDocuments(_ context.Context, chatID string, tags []string, limit int) ([]knowledgebase.Document, error) {
	f.docsChatID = chatID
	return []knowledgebase.Document{{ChatID: chatID, Tags: tags}}, nil
}

func TestSearchToolScopesToChatID(t *testing.T) {
	client := &fakeClient{}
	tool := NewSearchTool(client)

	params, _ := json.Marshal(map[string]any{"query": "budget"})
	res, err := tool.Execute(context.Background(), agent.ToolContext{ChatID: "chat:1"}, params)
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Equal(t, "chat:1", client.searchChatID)
}

func TestFetchDocumentsRequiresChatID(t *testing.T) {
	client := &fakeClient{}
	tool := NewDocumentsTool(client)

	params, _ := json.Marshal(map[string]any{})
	res, err := tool.Execute(context.Background(), agent.ToolContext{}, params)
	require.NoError(t, err)
	require.True(t, res.IsError)
}
