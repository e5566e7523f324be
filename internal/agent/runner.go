package agent

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/riverbend-labs/canvas-agent/internal/retry"
	"github.com/riverbend-labs/canvas-agent/internal/sessions"
	"github.com/riverbend-labs/canvas-agent/pkg/models"
)

// MaxToolCallIterations bounds the tool-call loop (spec §4.5 step 3) so a
// misbehaving model can't drive the Runner into an unbounded loop.
const MaxToolCallIterations = 32

// DefaultTurnDeadline is the recommended per-turn deadline (spec §5).
const DefaultTurnDeadline = 120 * time.Second

// LLMRetryConfig is the backoff policy spec §4.5 mandates for the provider
// call: up to 5 attempts, wait in [4s, 20s], multiplier 2. Retries apply
// only to the 5xx/ServiceUnavailable case the provider wraps in a
// retry.Permanent-exempt *RunnerError{Kind: KindTransient}; QuotaExhausted
// and client errors are never retried (enforced in callLLM, not here).
func LLMRetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:  5,
		InitialDelay: 4 * time.Second,
		MaxDelay:     20 * time.Second,
		Factor:       2.0,
		Jitter:       false,
	}
}

// Runner executes one conversational turn of an Agent tree against a
// Provider, backed by the Session Service for event-log persistence (spec
// §4.5). One Runner instance serves every chat; per-session ordering is
// enforced by the SessionLocker, not by Runner state.
type Runner struct {
	provider Provider
	sessions sessions.Store
	locker   *sessions.SessionLocker
	logger   *slog.Logger
	index    map[string]*Agent // flattened agent tree, by name
}

// NewRunner builds a Runner over root's agent tree. root's composition is
// validated as a cycle-free rooted DAG (spec §4.4) before the Runner is
// returned.
func NewRunner(root *Agent, provider Provider, store sessions.Store, locker *sessions.SessionLocker, logger *slog.Logger) (*Runner, error) {
	index, err := BuildTree(root)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if locker == nil {
		locker = sessions.NewSessionLocker(DefaultTurnDeadline)
	}
	return &Runner{
		provider: provider,
		sessions: store,
		locker:   locker,
		logger:   logger.With("component", "runner"),
		index:    index,
	}, nil
}

// Run executes a single turn for agentName against chatID/userID, appending
// the turn to the chat's session event log and returning the final text.
// It implements spec §4.5's five-step algorithm: session resolution,
// context injection, the tool-call loop, cancellation, and termination.
func (r *Runner) Run(ctx context.Context, agentName, chatID, userMessage string) (string, error) {
	root, ok := r.index[agentName]
	if !ok {
		return "", NewNotFoundError("agent not found: " + agentName)
	}
	if r.provider == nil {
		return "", NewFatalConfigError("no provider configured")
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultTurnDeadline)
	defer cancel()

	// Step 1: session resolution. GetOrCreate is idempotent under concurrent
	// first turns for the same chat (sessions.MemoryStore/SQLStore both
	// singleflight/upsert-guard this).
	session, err := r.sessions.GetOrCreate(ctx, sessions.Key(chatID), root.Name)
	if err != nil {
		return "", NewFatalConfigError("session resolution failed: " + err.Error())
	}

	var finalText string
	lockErr := r.locker.WithLock(ctx, session.ID, func(ctx context.Context) error {
		text, runErr := r.runTurn(ctx, root, session, chatID, userMessage)
		finalText = text
		return runErr
	})
	if lockErr != nil {
		if errors.Is(lockErr, sessions.ErrLockTimeout) {
			return "", NewCancelledError(lockErr)
		}
		return "", lockErr
	}
	return finalText, nil
}

func (r *Runner) runTurn(ctx context.Context, root *Agent, session *models.Session, chatID, userMessage string) (string, error) {
	// Step 2: context injection. The chat_id travels on ToolContext, never
	// as a model-visible argument a tool could be tricked into trusting.
	tc := ToolContext{ChatID: chatID, SessionID: session.ID, AgentID: root.Name, State: session.Metadata}

	if _, err := r.sessions.AppendEvent(ctx, session.ID, models.ConversationPart{
		Role: models.RoleUser, Text: userMessage, AgentID: root.Name,
	}); err != nil {
		return "", NewFatalConfigError("failed to append user event: " + err.Error())
	}

	registry := NewToolRegistryFor(root, r.transfer)
	history := []models.ConversationPart{{Role: models.RoleUser, Text: userMessage, AgentID: root.Name}}

	for i := 0; i < MaxToolCallIterations; i++ {
		select {
		case <-ctx.Done():
			r.appendCancelled(session.ID, root.Name)
			return "", NewCancelledError(ctx.Err())
		default:
		}

		resp, err := r.callLLM(ctx, root, history, registry.Tools())
		if err != nil {
			return "", err
		}

		if resp.Final || len(resp.ToolCalls) == 0 {
			if _, appendErr := r.sessions.AppendEvent(ctx, session.ID, models.ConversationPart{
				Role: models.RoleAssistant, Text: resp.Text, AgentID: root.Name,
			}); appendErr != nil {
				r.logger.Warn("failed to append final event", "error", appendErr, "session_id", session.ID)
			}
			if resp.Text == "" {
				return "", nil // spec §4.5 step 5: "no response" sentinel, callers render as silence
			}
			return resp.Text, nil
		}

		history = append(history, models.ConversationPart{Role: models.RoleAssistant, AgentID: root.Name})
		for _, call := range resp.ToolCalls {
			if _, appendErr := r.sessions.AppendEvent(ctx, session.ID, models.ConversationPart{
				Role: models.RoleAssistant, ToolCall: &call, AgentID: root.Name,
			}); appendErr != nil {
				r.logger.Warn("failed to append tool_call event", "error", appendErr)
			}
			r.logger.Info("tool_call", "name", call.Name, "args", logSafe(string(call.Input)), "chat_id", chatID)

			result, execErr := registry.Execute(ctx, tc, call.Name, call.Input)
			if execErr != nil {
				result = &ToolResult{Content: "Error: " + NewToolError(call.Name, execErr).Error(), IsError: true}
			}
			r.logger.Info("tool_result", "name", call.Name, "result", logSafe(result.Content), "is_error", result.IsError)

			toolResult := models.ToolResult{ToolCallID: call.ID, Content: result.Content, IsError: result.IsError}
			if _, appendErr := r.sessions.AppendEvent(ctx, session.ID, models.ConversationPart{
				Role: models.RoleTool, ToolResult: &toolResult, AgentID: root.Name,
			}); appendErr != nil {
				r.logger.Warn("failed to append tool_result event", "error", appendErr)
			}
			history = append(history, models.ConversationPart{Role: models.RoleTool, ToolResult: &toolResult, AgentID: root.Name})
		}
	}

	return "", NewFatalConfigError("exceeded maximum tool-call iterations")
}

// callLLM wraps the provider call in the spec §4.5 backoff policy: retryable
// 5xx/ServiceUnavailable errors are retried up to 5 attempts; QuotaExhausted
// and fatal/validation errors short-circuit immediately.
func (r *Runner) callLLM(ctx context.Context, a *Agent, history []models.ConversationPart, tools []Tool) (*GenerateResponse, error) {
	var resp *GenerateResponse
	result := retry.Do(ctx, LLMRetryConfig(), func() error {
		out, err := r.provider.Generate(ctx, a.Model, GenerateRequest{Instruction: a.Instruction, History: history, Tools: tools})
		if err != nil {
			if IsKind(err, KindQuota) || IsKind(err, KindValidation) || IsKind(err, KindFatalConfig) {
				return retry.Permanent(err)
			}
			return err
		}
		resp = out
		return nil
	})
	if result.Err != nil {
		if ctx.Err() != nil {
			return nil, NewCancelledError(ctx.Err())
		}
		var re *RunnerError
		if errors.As(result.Err, &re) {
			return nil, re
		}
		return nil, NewTransientLLMError(result.Err)
	}
	return resp, nil
}

// transfer runs target on the same session, sharing state and forking the
// event log under target's agent id (spec §4.5 step 3, sub_agent_transfer).
func (r *Runner) transfer(ctx context.Context, tc ToolContext, target *Agent, userMessage string) (string, error) {
	session, err := r.sessions.Get(ctx, tc.SessionID)
	if err != nil {
		return "", err
	}
	if _, err := r.sessions.AppendEvent(ctx, session.ID, models.ConversationPart{
		Role: models.RoleSystem, Text: "sub_agent_transfer:" + target.Name, AgentID: tc.AgentID,
	}); err != nil {
		r.logger.Warn("failed to append transfer event", "error", err)
	}
	return r.runTurn(ctx, target, session, tc.ChatID, userMessage)
}

func (r *Runner) appendCancelled(sessionID, agentID string) {
	if _, err := r.sessions.AppendEvent(context.Background(), sessionID, models.ConversationPart{
		Role: models.RoleSystem, Text: "cancelled", AgentID: agentID,
	}); err != nil {
		r.logger.Warn("failed to append cancelled event", "error", err, "session_id", sessionID)
	}
}
