package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/riverbend-labs/canvas-agent/internal/agent"
	"github.com/riverbend-labs/canvas-agent/pkg/models"
	"google.golang.org/genai"
)

// GeminiProvider implements agent.Provider against Google's Gen AI SDK.
// Unlike the streaming teacher implementation this runtime only needs a
// single request/response exchange per tool-call-loop iteration (spec
// §4.5), so Generate calls the SDK's non-streaming GenerateContent and
// flattens the result into one agent.GenerateResponse.
type GeminiProvider struct {
	client       *genai.Client
	defaultModel string
}

// GeminiConfig configures NewGeminiProvider.
type GeminiConfig struct {
	APIKey       string
	DefaultModel string
}

// NewGeminiProvider creates a Gemini-backed Provider.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}
	return &GeminiProvider{client: client, defaultModel: cfg.DefaultModel}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Generate(ctx context.Context, model agent.ModelHandle, req agent.GenerateRequest) (*agent.GenerateResponse, error) {
	modelID := string(model)
	if modelID == "" {
		modelID = p.defaultModel
	}

	contents, err := geminiContents(req.History)
	if err != nil {
		return nil, classify(p.Name(), modelID, err)
	}

	config := &genai.GenerateContentConfig{}
	if req.Instruction != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.Instruction}}}
	}
	if len(req.Tools) > 0 {
		config.Tools = toGeminiTools(req.Tools)
	}

	resp, err := p.client.Models.GenerateContent(ctx, modelID, contents, config)
	if err != nil {
		return nil, classify(p.Name(), modelID, err)
	}

	out := &agent.GenerateResponse{}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			if part.Text != "" {
				out.Text += part.Text
			}
			if part.FunctionCall != nil {
				argsJSON, err := json.Marshal(part.FunctionCall.Args)
				if err != nil {
					argsJSON = []byte("{}")
				}
				out.ToolCalls = append(out.ToolCalls, models.ToolCall{
					ID:    geminiToolCallID(part.FunctionCall.Name),
					Name:  part.FunctionCall.Name,
					Input: argsJSON,
				})
			}
		}
	}
	out.Final = len(out.ToolCalls) == 0
	return out, nil
}

// geminiContents converts the session's event history into Gemini's
// Content format. System parts are dropped; they travel as
// config.SystemInstruction instead (spec §4.5's "Instruction injected once
// per turn, not replayed as history").
func geminiContents(history []models.ConversationPart) ([]*genai.Content, error) {
	var result []*genai.Content
	for _, part := range history {
		if part.Role == models.RoleSystem {
			continue
		}
		content := &genai.Content{}
		switch part.Role {
		case models.RoleAssistant:
			content.Role = genai.RoleModel
		default:
			content.Role = genai.RoleUser
		}

		if part.Text != "" {
			content.Parts = append(content.Parts, &genai.Part{Text: part.Text})
		}
		if part.ToolCall != nil {
			var args map[string]any
			if err := json.Unmarshal(part.ToolCall.Input, &args); err != nil {
				args = map[string]any{}
			}
			content.Parts = append(content.Parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{Name: part.ToolCall.Name, Args: args},
			})
		}
		if part.ToolResult != nil {
			var response map[string]any
			if err := json.Unmarshal([]byte(part.ToolResult.Content), &response); err != nil {
				response = map[string]any{"result": part.ToolResult.Content, "error": part.ToolResult.IsError}
			}
			content.Parts = append(content.Parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{Name: toolNameForResult(part.ToolResult.ToolCallID, history), Response: response},
			})
		}

		if len(content.Parts) > 0 {
			result = append(result, content)
		}
	}
	return result, nil
}

func toolNameForResult(toolCallID string, history []models.ConversationPart) string {
	for _, part := range history {
		if part.ToolCall != nil && part.ToolCall.ID == toolCallID {
			return part.ToolCall.Name
		}
	}
	return ""
}

// geminiToolCallID synthesizes a tool call id: Gemini function calls carry
// no id of their own, unlike Anthropic's tool_use blocks.
func geminiToolCallID(name string) string {
	return fmt.Sprintf("call_%s_%d", name, time.Now().UnixNano())
}
