// Package canvasops implements the "canvas operations" tool group spec §4.2
// names: get_current_canvas_info, set_canvas_name, create_canvas_frame,
// set_frame_name, list_canvas_frames, add_element_to_frame,
// remove_element_from_frame, set_element_name, create_element, edit_element.
package canvasops

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/riverbend-labs/canvas-agent/internal/agent"
	"github.com/riverbend-labs/canvas-agent/internal/canvas"
)

// Tool dispatches every canvas-mutating action an agent may take on behalf
// of the current chat. It never accepts a canvas_id argument: the canvas is
// always resolved from ToolContext.ChatID via GetOrCreateCanvasForChat, so a
// tool call can never be tricked into touching another chat's canvas (spec
// §4.2 "must derive its tenant from that context — never from an argument").
type Tool struct {
	svc *canvas.Service
}

// NewTool creates the canvas operations tool over svc.
func NewTool(svc *canvas.Service) *Tool {
	return &Tool{svc: svc}
}

func (t *Tool) Name() string { return "canvas_operations" }

func (t *Tool) Description() string {
	return "Read and mutate the current chat's canvas: frames and elements (notes, tasks, messages)."
}

func (t *Tool) Schema() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type": "string",
				"enum": []string{
					"get_current_canvas_info", "set_canvas_name",
					"create_canvas_frame", "set_frame_name", "list_canvas_frames",
					"add_element_to_frame", "remove_element_from_frame",
					"set_element_name", "create_element", "edit_element",
				},
			},
			"name":        map[string]any{"type": "string", "description": "New canvas/frame/element name for set_* actions."},
			"content":     map[string]any{"type": "string", "description": "Element content for create_element/edit_element."},
			"created_by":  map[string]any{"type": "string", "description": "Author identity for create_element."},
			"type":        map[string]any{"type": "string", "description": "Element type for create_element/edit_element, e.g. note, task, message."},
			"attributes":  map[string]any{"type": "object", "description": "Attributes to set on an element."},
			"frame_id":    map[string]any{"type": "string", "description": "Frame id for frame-scoped actions."},
			"element_id":  map[string]any{"type": "string", "description": "Element id for element-scoped actions."},
			"parent_id":   map[string]any{"type": "string", "description": "Optional parent frame id for create_canvas_frame."},
		},
		"required": []string{"action"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

type input struct {
	Action     string         `json:"action"`
	Name       string         `json:"name"`
	Content    string         `json:"content"`
	CreatedBy  string         `json:"created_by"`
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes"`
	FrameID    string         `json:"frame_id"`
	ElementID  string         `json:"element_id"`
	ParentID   string         `json:"parent_id"`
}

func (t *Tool) Execute(ctx context.Context, tc agent.ToolContext, params json.RawMessage) (*agent.ToolResult, error) {
	if t.svc == nil {
		return toolError("canvas service unavailable"), nil
	}
	if strings.TrimSpace(tc.ChatID) == "" {
		return toolError("chat_id missing from context"), nil
	}

	var in input
	if err := json.Unmarshal(params, &in); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	action := strings.ToLower(strings.TrimSpace(in.Action))
	if action == "" {
		return toolError("action is required"), nil
	}

	cv, err := t.svc.GetOrCreateCanvasForChat(ctx, canvas.AccessKeyForChat(tc.ChatID))
	if err != nil {
		return toolError(fmt.Sprintf("resolve canvas: %v", err)), nil
	}

	switch action {
	case "get_current_canvas_info":
		frames, err := t.svc.GetFrames(ctx, cv.ID)
		if err != nil {
			return toolError(err.Error()), nil
		}
		return jsonResult(map[string]any{
			"id":           cv.ID,
			"name":         cv.Name,
			"frame_count":  len(frames),
			"access_rules": cv.AccessRules,
		})

	case "set_canvas_name":
		if strings.TrimSpace(in.Name) == "" {
			return toolError("name is required"), nil
		}
		updated, err := t.svc.UpdateCanvas(ctx, cv.ID, in.Name)
		if err != nil {
			return toolError(err.Error()), nil
		}
		return jsonResult(map[string]any{"id": updated.ID, "name": updated.Name})

	case "create_canvas_frame":
		if strings.TrimSpace(in.Name) == "" {
			return toolError("name is required"), nil
		}
		frame, err := t.svc.CreateFrame(ctx, &canvas.Frame{CanvasID: cv.ID, ParentID: in.ParentID, Name: in.Name})
		if err != nil {
			return toolError(err.Error()), nil
		}
		return jsonResult(frameView(frame))

	case "set_frame_name":
		frame, err := t.requireSameCanvasFrame(ctx, cv.ID, in.FrameID)
		if err != nil {
			return err, nil
		}
		if strings.TrimSpace(in.Name) == "" {
			return toolError("name is required"), nil
		}
		updated, uerr := t.svc.UpdateFrame(ctx, frame.ID, in.Name)
		if uerr != nil {
			return toolError(uerr.Error()), nil
		}
		return jsonResult(frameView(updated))

	case "list_canvas_frames":
		frames, ferr := t.svc.GetFrames(ctx, cv.ID)
		if ferr != nil {
			return toolError(ferr.Error()), nil
		}
		views := make([]map[string]any, 0, len(frames))
		for _, f := range frames {
			views = append(views, frameView(f))
		}
		return jsonResult(views)

	case "add_element_to_frame":
		if _, err := t.requireSameCanvasFrame(ctx, cv.ID, in.FrameID); err != nil {
			return err, nil
		}
		if err := t.requireSameCanvasElement(ctx, cv.ID, in.ElementID); err != nil {
			return err, nil
		}
		alreadyLinked, lerr := t.svc.AddElementToFrame(ctx, in.ElementID, in.FrameID)
		if lerr != nil {
			return toolError(lerr.Error()), nil
		}
		return jsonResult(map[string]any{"already_linked": alreadyLinked})

	case "remove_element_from_frame":
		if err := t.requireSameCanvasElement(ctx, cv.ID, in.ElementID); err != nil {
			return err, nil
		}
		if err := t.svc.RemoveElementFromFrame(ctx, in.ElementID, in.FrameID); err != nil {
			return toolError(err.Error()), nil
		}
		return jsonResult(map[string]any{"ok": true})

	case "set_element_name":
		if err := t.requireSameCanvasElement(ctx, cv.ID, in.ElementID); err != nil {
			return err, nil
		}
		if strings.TrimSpace(in.Name) == "" {
			return toolError("name is required"), nil
		}
		name := in.Name
		updated, uerr := t.svc.UpdateElement(ctx, in.ElementID, canvas.ElementPatch{Name: &name})
		if uerr != nil {
			return toolError(uerr.Error()), nil
		}
		return jsonResult(elementView(updated))

	case "create_element":
		if strings.TrimSpace(in.Content) == "" {
			return toolError("content is required"), nil
		}
		elType := in.Type
		if elType == "" {
			elType = "message"
		}
		el, cerr := t.svc.AddElement(ctx, &canvas.Element{
			CanvasID:   cv.ID,
			Type:       elType,
			Content:    in.Content,
			CreatedBy:  in.CreatedBy,
			Attributes: in.Attributes,
		}, in.FrameID)
		if cerr != nil {
			return toolError(cerr.Error()), nil
		}
		return jsonResult(elementView(el))

	case "edit_element":
		if err := t.requireSameCanvasElement(ctx, cv.ID, in.ElementID); err != nil {
			return err, nil
		}
		patch := canvas.ElementPatch{}
		if in.Content != "" {
			patch.Content = &in.Content
		}
		if in.Type != "" {
			patch.Type = &in.Type
		}
		if len(in.Attributes) > 0 {
			patch.AttributesSet = in.Attributes
		}
		updated, uerr := t.svc.UpdateElement(ctx, in.ElementID, patch)
		if uerr != nil {
			return toolError(uerr.Error()), nil
		}
		return jsonResult(elementView(updated))

	default:
		return toolError("unsupported action: " + action), nil
	}
}

// requireSameCanvasFrame fetches frameID and rejects it if it does not
// belong to canvasID, returning a *ToolResult error (not a Go error: tools
// never raise across the dispatch boundary).
func (t *Tool) requireSameCanvasFrame(ctx context.Context, canvasID, frameID string) (*canvas.Frame, *agent.ToolResult) {
	if strings.TrimSpace(frameID) == "" {
		return nil, toolError("frame_id is required")
	}
	frame, err := t.svc.GetFrame(ctx, frameID)
	if err != nil {
		return nil, toolError(err.Error())
	}
	if frame.CanvasID != canvasID {
		return nil, toolError(canvas.ErrCrossCanvas.Error())
	}
	return frame, nil
}

func (t *Tool) requireSameCanvasElement(ctx context.Context, canvasID, elementID string) *agent.ToolResult {
	if strings.TrimSpace(elementID) == "" {
		return toolError("element_id is required")
	}
	el, err := t.svc.GetElement(ctx, elementID)
	if err != nil {
		return toolError(err.Error())
	}
	if el.CanvasID != canvasID {
		return toolError(canvas.ErrCrossCanvas.Error())
	}
	return nil
}

func frameView(f *canvas.Frame) map[string]any {
	return map[string]any{"id": f.ID, "name": f.Name, "parent_id": f.ParentID}
}

func elementView(e *canvas.Element) map[string]any {
	return map[string]any{
		"id": e.ID, "type": e.Type, "name": e.Name, "content": e.Content,
		"created_by": e.CreatedBy, "attributes": e.Attributes, "frame_ids": e.FrameIDs,
	}
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
