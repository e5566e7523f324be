package agent

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the runner and tool dispatch loop.
var (
	ErrMaxIterations    = errors.New("agent: max iterations exceeded")
	ErrContextCancelled = errors.New("agent: context cancelled")
	ErrNoProvider       = errors.New("agent: no provider configured")
	ErrToolNotFound     = errors.New("agent: tool not found")
	ErrCycle            = errors.New("agent: sub-agent tree contains a cycle")
)

// ToolErrorType categorizes a tool execution failure.
type ToolErrorType string

const (
	ToolErrorNotFound     ToolErrorType = "not_found"
	ToolErrorInvalidInput ToolErrorType = "invalid_input"
	ToolErrorTimeout      ToolErrorType = "timeout"
	ToolErrorNetwork      ToolErrorType = "network"
	ToolErrorPermission   ToolErrorType = "permission"
	ToolErrorExecution    ToolErrorType = "execution"
	ToolErrorPanic        ToolErrorType = "panic"
	ToolErrorUnknown      ToolErrorType = "unknown"
)

// IsRetryable reports whether retrying a tool call of this error type may succeed.
func (t ToolErrorType) IsRetryable() bool {
	switch t {
	case ToolErrorTimeout, ToolErrorNetwork:
		return true
	default:
		return false
	}
}

// ToolError is a structured tool-execution failure. Tools never propagate
// this across the LLM boundary directly — the Runner renders it into a
// models.ToolResult with IsError set (spec §7: "Tool returns string; no
// crash").
type ToolError struct {
	Type       ToolErrorType
	ToolName   string
	ToolCallID string
	Message    string
	Cause      error
}

func (e *ToolError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[tool:%s]", e.Type))
	if e.ToolName != "" {
		parts = append(parts, e.ToolName)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " ")
}

func (e *ToolError) Unwrap() error { return e.Cause }

// NewToolError wraps cause with a classified ToolError.
func NewToolError(toolName string, cause error) *ToolError {
	return &ToolError{ToolName: toolName, Cause: cause, Message: causeMessage(cause), Type: classifyToolError(cause)}
}

func causeMessage(cause error) string {
	if cause == nil {
		return ""
	}
	return cause.Error()
}

func classifyToolError(err error) ToolErrorType {
	if err == nil {
		return ToolErrorUnknown
	}
	if errors.Is(err, ErrToolNotFound) {
		return ToolErrorNotFound
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "timeout") || strings.Contains(s, "deadline exceeded"):
		return ToolErrorTimeout
	case strings.Contains(s, "connection") || strings.Contains(s, "network") || strings.Contains(s, "refused"):
		return ToolErrorNetwork
	case strings.Contains(s, "permission") || strings.Contains(s, "forbidden") || strings.Contains(s, "unauthorized"):
		return ToolErrorPermission
	case strings.Contains(s, "invalid") || strings.Contains(s, "required") || strings.Contains(s, "missing") || strings.Contains(s, "malformed"):
		return ToolErrorInvalidInput
	default:
		return ToolErrorExecution
	}
}

// RunnerErrorKind is the Runner/Canvas-facing error taxonomy (spec §7).
type RunnerErrorKind string

const (
	KindValidation  RunnerErrorKind = "validation_error"
	KindNotFound    RunnerErrorKind = "not_found"
	KindCrossCanvas RunnerErrorKind = "cross_canvas_error"
	KindQuota       RunnerErrorKind = "quota_exhausted"
	KindTransient   RunnerErrorKind = "transient_llm"
	KindCancelled   RunnerErrorKind = "cancelled"
	KindFatalConfig RunnerErrorKind = "fatal_config"
)

// RunnerError is the typed error surfaced to callers of the Runner and the
// Canvas Store-backed tools. Kind drives retry/logging behavior upstream:
// QuotaExhausted is never retried, TransientLLM is retried per the backoff
// policy, FatalConfig fails startup loudly.
type RunnerError struct {
	Kind    RunnerErrorKind
	Message string
	Cause   error

	// Quota details, populated only for KindQuota.
	QuotaModel      string
	QuotaMetric     string
	QuotaLimit      int64
	QuotaRetryAfter string
}

func (e *RunnerError) Error() string {
	if e.Kind == KindQuota {
		parts := []string{"quota exhausted"}
		if e.QuotaModel != "" {
			parts = append(parts, "model="+e.QuotaModel)
		}
		if e.QuotaMetric != "" {
			parts = append(parts, "metric="+e.QuotaMetric)
		}
		if e.QuotaLimit > 0 {
			parts = append(parts, fmt.Sprintf("limit=%d", e.QuotaLimit))
		}
		if e.QuotaRetryAfter != "" {
			parts = append(parts, "retry_after="+e.QuotaRetryAfter)
		}
		return strings.Join(parts, " ")
	}
	if e.Message != "" {
		return string(e.Kind) + ": " + e.Message
	}
	if e.Cause != nil {
		return string(e.Kind) + ": " + e.Cause.Error()
	}
	return string(e.Kind)
}

func (e *RunnerError) Unwrap() error { return e.Cause }

func NewValidationError(msg string) *RunnerError  { return &RunnerError{Kind: KindValidation, Message: msg} }
func NewNotFoundError(msg string) *RunnerError    { return &RunnerError{Kind: KindNotFound, Message: msg} }
func NewCrossCanvasError(msg string) *RunnerError { return &RunnerError{Kind: KindCrossCanvas, Message: msg} }
func NewCancelledError(cause error) *RunnerError  { return &RunnerError{Kind: KindCancelled, Cause: cause} }
func NewFatalConfigError(msg string) *RunnerError { return &RunnerError{Kind: KindFatalConfig, Message: msg} }
func NewTransientLLMError(cause error) *RunnerError {
	return &RunnerError{Kind: KindTransient, Cause: cause}
}

// NewQuotaExhaustedError builds a KindQuota RunnerError from provider quota
// violation details, following the original system's
// google.api_core.exceptions.ResourceExhausted payload shape.
func NewQuotaExhaustedError(model, metric string, limit int64, retryAfter string) *RunnerError {
	return &RunnerError{
		Kind:            KindQuota,
		QuotaModel:      model,
		QuotaMetric:     metric,
		QuotaLimit:      limit,
		QuotaRetryAfter: retryAfter,
	}
}

// IsKind reports whether err is a *RunnerError of the given kind.
func IsKind(err error, kind RunnerErrorKind) bool {
	var re *RunnerError
	if errors.As(err, &re) {
		return re.Kind == kind
	}
	return false
}
