// Package history implements fetch_elements, the history/query tool group
// spec §4.2 names: a natural-language time grammar plus case-insensitive
// substring filters on creator/author/content, post-filtered in process and
// returned newest-`limit` sorted ascending by created_at.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/riverbend-labs/canvas-agent/internal/agent"
	"github.com/riverbend-labs/canvas-agent/internal/canvas"
)

// Tool implements fetch_elements.
type Tool struct {
	svc *canvas.Service
	now func() time.Time
}

// NewTool creates the fetch_elements tool over svc.
func NewTool(svc *canvas.Service) *Tool {
	return &Tool{svc: svc, now: time.Now}
}

func (t *Tool) Name() string { return "fetch_elements" }

func (t *Tool) Description() string {
	return "Fetch canvas history (messages, notes, tasks) for the current chat, filtered by time range, creator, author, or content substring."
}

func (t *Tool) Schema() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"limit":           map[string]any{"type": "integer", "description": "Max number of elements to return. Default 10."},
			"time_range":      map[string]any{"type": "string", "description": "'yesterday', 'today', 'N hours ago', 'last N minutes', an ISO instant, or '<iso> to <iso>'."},
			"created_by":      map[string]any{"type": "string", "description": "Case-insensitive substring match on the element creator id."},
			"author":          map[string]any{"type": "string", "description": "Case-insensitive substring match on attributes.author_name/author_nick."},
			"contains":        map[string]any{"type": "string", "description": "Case-insensitive substring search in content."},
			"frame_id":        map[string]any{"type": "string", "description": "Restrict to elements linked to this frame; must belong to the chat's canvas."},
			"include_details": map[string]any{"type": "boolean", "description": "If true, include canvas_id, frame_ids, and attributes."},
		},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

type input struct {
	Limit          int    `json:"limit"`
	TimeRange      string `json:"time_range"`
	CreatedBy      string `json:"created_by"`
	Author         string `json:"author"`
	Contains       string `json:"contains"`
	FrameID        string `json:"frame_id"`
	IncludeDetails bool   `json:"include_details"`
}

func (t *Tool) Execute(ctx context.Context, tc agent.ToolContext, params json.RawMessage) (*agent.ToolResult, error) {
	if t.svc == nil {
		return toolError("canvas service unavailable"), nil
	}
	if strings.TrimSpace(tc.ChatID) == "" {
		return toolError("chat_id missing from context"), nil
	}

	var in input
	if len(params) > 0 {
		if err := json.Unmarshal(params, &in); err != nil {
			return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
		}
	}
	limit := in.Limit
	if limit <= 0 {
		limit = 10
	}

	var start, end time.Time
	if in.TimeRange != "" {
		s, e, ok := parseTimeRange(in.TimeRange, t.now())
		if !ok {
			return toolError(fmt.Sprintf("invalid format for time_range: %s", in.TimeRange)), nil
		}
		start, end = s, e
	}

	cv, err := t.svc.GetOrCreateCanvasForChat(ctx, canvas.AccessKeyForChat(tc.ChatID))
	if err != nil {
		return toolError(fmt.Sprintf("resolve canvas: %v", err)), nil
	}

	if in.FrameID != "" {
		frame, ferr := t.svc.GetFrame(ctx, in.FrameID)
		if ferr != nil || frame.CanvasID != cv.ID {
			return toolError("frame not found in this chat"), nil
		}
	}

	// Fetch a larger batch than the caller's limit so in-process filters have
	// enough candidates, matching original_source's fetch_limit = max(limit*5, 100).
	fetchLimit := limit * 5
	if fetchLimit < 100 {
		fetchLimit = 100
	}
	elements, err := t.svc.GetElements(ctx, cv.ID, canvas.ElementListOptions{
		Limit: fetchLimit, Since: start, FrameID: in.FrameID,
	})
	if err != nil {
		return toolError(fmt.Sprintf("fetching elements: %v", err)), nil
	}
	if len(elements) == 0 {
		return &agent.ToolResult{Content: "[]"}, nil
	}

	filtered := make([]*canvas.Element, 0, len(elements))
	for _, el := range elements {
		if !end.IsZero() && !el.CreatedAt.Before(end) {
			continue
		}
		if in.CreatedBy != "" && !containsFold(el.CreatedBy, in.CreatedBy) {
			continue
		}
		if in.Author != "" {
			name, _ := el.Attributes["author_name"].(string)
			nick, _ := el.Attributes["author_nick"].(string)
			if !containsFold(name, in.Author) && !containsFold(nick, in.Author) {
				continue
			}
		}
		if in.Contains != "" && !containsFold(el.Content, in.Contains) {
			continue
		}
		filtered = append(filtered, el)
	}

	// Ascending by created_at for observer/summarizer readability, then keep
	// only the most recent `limit` once sorted ascending (SPEC_FULL.md §11).
	sortAscending(filtered)
	if len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}

	out := make([]map[string]any, 0, len(filtered))
	for _, el := range filtered {
		item := map[string]any{
			"id":         el.ID,
			"type":       el.Type,
			"created_at": el.CreatedAt.Format(time.RFC3339),
			"author":     el.CreatedBy,
			"content":    el.Content,
		}
		if in.IncludeDetails {
			item["canvas_id"] = el.CanvasID
			item["frame_ids"] = el.FrameIDs
			item["attributes"] = el.Attributes
		}
		out = append(out, item)
	}

	payload, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(payload)}, nil
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func sortAscending(els []*canvas.Element) {
	sort.Slice(els, func(i, j int) bool { return els[i].CreatedAt.Before(els[j].CreatedAt) })
}

func toolError(message string) *agent.ToolResult {
	return &agent.ToolResult{Content: "Error: " + message, IsError: true}
}
