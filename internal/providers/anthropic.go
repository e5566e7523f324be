package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/riverbend-labs/canvas-agent/internal/agent"
	"github.com/riverbend-labs/canvas-agent/pkg/models"
)

// AnthropicProvider implements agent.Provider against Claude's Messages
// API. Like GeminiProvider, it collapses the teacher's streaming SSE
// handling into a single non-streaming exchange per tool-call-loop
// iteration, since the Runner only needs the finished message.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
}

// AnthropicConfig configures NewAnthropicProvider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// NewAnthropicProvider creates a Claude-backed Provider.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicProvider{client: anthropic.NewClient(opts...), defaultModel: cfg.DefaultModel}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Generate(ctx context.Context, model agent.ModelHandle, req agent.GenerateRequest) (*agent.GenerateResponse, error) {
	modelID := string(model)
	if modelID == "" {
		modelID = p.defaultModel
	}

	messages, err := anthropicMessages(req.History)
	if err != nil {
		return nil, classify(p.Name(), modelID, err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelID),
		Messages:  messages,
		MaxTokens: 4096,
	}
	if req.Instruction != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.Instruction}}
	}
	if len(req.Tools) > 0 {
		tools, err := anthropicTools(req.Tools)
		if err != nil {
			return nil, classify(p.Name(), modelID, err)
		}
		params.Tools = tools
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classify(p.Name(), modelID, err)
	}

	out := &agent.GenerateResponse{}
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			out.Text += variant.Text
		case anthropic.ToolUseBlock:
			input, err := json.Marshal(variant.Input)
			if err != nil {
				input = []byte("{}")
			}
			out.ToolCalls = append(out.ToolCalls, models.ToolCall{ID: variant.ID, Name: variant.Name, Input: input})
		}
	}
	out.Final = len(out.ToolCalls) == 0
	return out, nil
}

// anthropicMessages converts the session's event history into Claude's
// MessageParam format. System parts are dropped; they travel via
// params.System instead.
func anthropicMessages(history []models.ConversationPart) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam
	for _, part := range history {
		if part.Role == models.RoleSystem {
			continue
		}

		var content []anthropic.ContentBlockParamUnion
		if part.Text != "" {
			content = append(content, anthropic.NewTextBlock(part.Text))
		}
		if part.ToolCall != nil {
			var input map[string]any
			if err := json.Unmarshal(part.ToolCall.Input, &input); err != nil {
				return nil, fmt.Errorf("anthropic: invalid tool call input: %w", err)
			}
			content = append(content, anthropic.NewToolUseBlock(part.ToolCall.ID, input, part.ToolCall.Name))
		}
		if part.ToolResult != nil {
			content = append(content, anthropic.NewToolResultBlock(part.ToolResult.ToolCallID, part.ToolResult.Content, part.ToolResult.IsError))
		}
		if len(content) == 0 {
			continue
		}

		if part.Role == models.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}
	return result, nil
}

func anthropicTools(tools []agent.Tool) ([]anthropic.ToolUnionParam, error) {
	var result []anthropic.ToolUnionParam
	for _, tool := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(tool.Schema(), &schema); err != nil {
			return nil, fmt.Errorf("anthropic: invalid tool schema for %s: %w", tool.Name(), err)
		}
		toolParam := anthropic.ToolUnionParamOfTool(schema, tool.Name())
		if toolParam.OfTool == nil {
			return nil, fmt.Errorf("anthropic: invalid tool schema for %s", tool.Name())
		}
		toolParam.OfTool.Description = anthropic.String(tool.Description())
		result = append(result, toolParam)
	}
	return result, nil
}
