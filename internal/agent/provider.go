package agent

import (
	"context"

	"github.com/riverbend-labs/canvas-agent/pkg/models"
)

// GenerateRequest is one LLM call: the agent's instruction, the turn's
// accumulated event history, and the tool schemas (including sub-agent
// stubs) the model may call.
type GenerateRequest struct {
	Instruction string
	History     []models.ConversationPart
	Tools       []Tool
}

// GenerateResponse is a single LLM reply: either a final text part, or one
// or more tool calls the Runner must dispatch and feed back. A response is
// never both — a provider that wants to emit text alongside tool calls
// should set Final false and return the text as a preceding ConversationPart
// appended by the Runner on the next turn of the loop.
type GenerateResponse struct {
	Text      string
	Final     bool
	ToolCalls []models.ToolCall
}

// Provider is the LLM backend a Runner drives. Implementations live in
// internal/providers (Gemini, Anthropic) and translate provider-specific
// quota/5xx/4xx failures into the agent.RunnerError taxonomy (spec §7)
// before returning.
type Provider interface {
	Name() string
	Generate(ctx context.Context, model ModelHandle, req GenerateRequest) (*GenerateResponse, error)
}
