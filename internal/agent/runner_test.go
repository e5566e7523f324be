package agent

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/riverbend-labs/canvas-agent/internal/sessions"
	"github.com/riverbend-labs/canvas-agent/pkg/models"
)

// scriptedProvider replays a fixed sequence of responses, one per call,
// regardless of what history/tools it receives.
type scriptedProvider struct {
	responses []*GenerateResponse
	calls     int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Generate(_ context.Context, _ ModelHandle, _ GenerateRequest) (*GenerateResponse, error) {
	if p.calls >= len(p.responses) {
		return &GenerateResponse{Text: "", Final: true}, nil
	}
	r := p.responses[p.calls]
	p.calls++
	return r, nil
}

type sumTool struct{}

func (sumTool) Name() string            { return "sum" }
func (sumTool) Description() string     { return "adds two numbers" }
func (sumTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (sumTool) Execute(_ context.Context, _ ToolContext, params json.RawMessage) (*ToolResult, error) {
	var in struct{ A, B int }
	if err := json.Unmarshal(params, &in); err != nil {
		return &ToolResult{Content: err.Error(), IsError: true}, nil
	}
	b, _ := json.Marshal(map[string]int{"sum": in.A + in.B})
	return &ToolResult{Content: string(b)}, nil
}

func TestRunnerDirectFinalResponse(t *testing.T) {
	root := &Agent{Name: "orchestrator", Model: "test-model"}
	provider := &scriptedProvider{responses: []*GenerateResponse{{Text: "hello there", Final: true}}}
	store := sessions.NewMemoryStore()

	runner, err := NewRunner(root, provider, store, nil, nil)
	require.NoError(t, err)

	text, err := runner.Run(context.Background(), "orchestrator", "chat:1", "hi")
	require.NoError(t, err)
	require.Equal(t, "hello there", text)
	require.Equal(t, 1, provider.calls)
}

func TestRunnerExecutesToolCallThenFinal(t *testing.T) {
	root := &Agent{Name: "orchestrator", Model: "test-model", Tools: []Tool{sumTool{}}}
	callID := uuid.NewString()
	params, _ := json.Marshal(map[string]int{"A": 2, "B": 3})
	provider := &scriptedProvider{responses: []*GenerateResponse{
		{ToolCalls: []models.ToolCall{{ID: callID, Name: "sum", Input: params}}},
		{Text: "the sum is 5", Final: true},
	}}
	store := sessions.NewMemoryStore()

	runner, err := NewRunner(root, provider, store, nil, nil)
	require.NoError(t, err)

	text, err := runner.Run(context.Background(), "orchestrator", "chat:2", "add 2 and 3")
	require.NoError(t, err)
	require.Equal(t, "the sum is 5", text)
	require.Equal(t, 2, provider.calls)

	session, err := store.GetByKey(context.Background(), sessions.Key("chat:2"))
	require.NoError(t, err)
	events, err := store.GetEvents(context.Background(), session.ID, 100)
	require.NoError(t, err)
	require.True(t, len(events) >= 4) // user, tool_call, tool_result, final
}

func TestRunnerSurfacesQuotaErrorWithoutRetry(t *testing.T) {
	root := &Agent{Name: "orchestrator", Model: "test-model"}
	provider := &erroringProvider{err: NewQuotaExhaustedError("test-model", "requests_per_minute", 10, "30s")}
	store := sessions.NewMemoryStore()

	runner, err := NewRunner(root, provider, store, nil, nil)
	require.NoError(t, err)

	_, err = runner.Run(context.Background(), "orchestrator", "chat:3", "hi")
	require.True(t, IsKind(err, KindQuota))
	require.Equal(t, 1, provider.calls)
}

type erroringProvider struct {
	err   error
	calls int
}

func (p *erroringProvider) Name() string { return "erroring" }
func (p *erroringProvider) Generate(_ context.Context, _ ModelHandle, _ GenerateRequest) (*GenerateResponse, error) {
	p.calls++
	return nil, p.err
}

func TestRunnerHonoursCancellation(t *testing.T) {
	root := &Agent{Name: "orchestrator", Model: "test-model"}
	provider := &slowProvider{delay: 200 * time.Millisecond}
	store := sessions.NewMemoryStore()

	runner, err := NewRunner(root, provider, store, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = runner.Run(ctx, "orchestrator", "chat:4", "hi")
	require.True(t, IsKind(err, KindCancelled) || IsKind(err, KindTransient))
}

type slowProvider struct{ delay time.Duration }

func (p *slowProvider) Name() string { return "slow" }
func (p *slowProvider) Generate(ctx context.Context, _ ModelHandle, _ GenerateRequest) (*GenerateResponse, error) {
	select {
	case <-time.After(p.delay):
		return &GenerateResponse{Text: "too late", Final: true}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
