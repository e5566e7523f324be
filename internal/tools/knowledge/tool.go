// Package knowledge implements search_knowledge_base and fetch_documents
// (spec §4.2 "Knowledge tools"), both strictly filtered by chat_id against
// the external vector store.
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/riverbend-labs/canvas-agent/internal/agent"
	"github.com/riverbend-labs/canvas-agent/internal/knowledgebase"
)

// SearchTool implements search_knowledge_base.
type SearchTool struct {
	client knowledgebase.Client
}

// NewSearchTool creates search_knowledge_base over client.
func NewSearchTool(client knowledgebase.Client) *SearchTool { return &SearchTool{client: client} }

func (t *SearchTool) Name() string        { return "search_knowledge_base" }
func (t *SearchTool) Description() string { return "Search this chat's knowledge base for relevant documents." }

func (t *SearchTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"},"limit":{"type":"integer"}},"required":["query"]}`)
}

func (t *SearchTool) Execute(ctx context.Context, tc agent.ToolContext, params json.RawMessage) (*agent.ToolResult, error) {
	if t.client == nil {
		return toolError("knowledge base client unavailable"), nil
	}
	if strings.TrimSpace(tc.ChatID) == "" {
		return toolError("chat_id missing from context"), nil
	}
	var in struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(in.Query) == "" {
		return toolError("query is required"), nil
	}
	limit := in.Limit
	if limit <= 0 {
		limit = 5
	}
	results, err := t.client.SearchKnowledgeBase(ctx, tc.ChatID, in.Query, limit)
	if err != nil {
		return toolError(fmt.Sprintf("search failed: %v", err)), nil
	}
	return jsonResult(results)
}

// DocumentsTool implements fetch_documents.
type DocumentsTool struct {
	client knowledgebase.Client
}

// NewDocumentsTool creates fetch_documents over client.
func NewDocumentsTool(client knowledgebase.Client) *DocumentsTool { return &DocumentsTool{client: client} }

func (t *DocumentsTool) Name() string        { return "fetch_documents" }
func (t *DocumentsTool) Description() string { return "Fetch this chat's knowledge base documents, optionally filtered by tag." }

func (t *DocumentsTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"tags":{"type":"array","items":{"type":"string"}},"limit":{"type":"integer"}}}`)
}

func (t *DocumentsTool) Execute(ctx context.Context, tc agent.ToolContext, params json.RawMessage) (*agent.ToolResult, error) {
	if t.client == nil {
		return toolError("knowledge base client unavailable"), nil
	}
	if strings.TrimSpace(tc.ChatID) == "" {
		return toolError("chat_id missing from context"), nil
	}
	var in struct {
		Tags  []string `json:"tags"`
		Limit int      `json:"limit"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &in); err != nil {
			return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
		}
	}
	limit := in.Limit
	if limit <= 0 {
		limit = 20
	}
	docs, err := t.client.FetchDocuments(ctx, tc.ChatID, in.Tags, limit)
	if err != nil {
		return toolError(fmt.Sprintf("fetch failed: %v", err)), nil
	}
	return jsonResult(docs)
}

func jsonResult(v any) (*agent.ToolResult, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(payload)}, nil
}

func toolError(message string) *agent.ToolResult {
	return &agent.ToolResult{Content: "Error: " + message, IsError: true}
}
