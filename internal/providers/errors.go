package providers

import (
	"strings"

	"github.com/riverbend-labs/canvas-agent/internal/agent"
)

// classify turns a raw provider error into the agent.RunnerError kind the
// Runner's retry policy (spec §4.5, §7) switches on: quota errors are never
// retried, transient errors are retried with backoff, everything else not
// otherwise recognized falls back to transient so a flaky provider never
// silently wedges a turn.
func classify(providerName, model string, err error) *agent.RunnerError {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())

	switch {
	case containsAny(msg, "rate limit", "rate_limit", "429", "too many requests", "resource exhausted", "quota", "insufficient_quota", "billing", "payment required", "402"):
		return agent.NewQuotaExhaustedError(model, providerName, 0, "")
	case containsAny(msg, "401", "403", "unauthorized", "authentication", "invalid api key", "invalid_api_key", "permission denied"):
		return agent.NewFatalConfigError(providerName + ": authentication failed: " + err.Error())
	case containsAny(msg, "400", "bad request", "invalid_request_error", "model not found", "model_not_found", "does not exist"):
		return agent.NewValidationError(providerName + ": " + err.Error())
	default:
		return agent.NewTransientLLMError(err)
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
