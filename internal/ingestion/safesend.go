package ingestion

import (
	"strings"
)

// MaxReplySize is the safe-send truncation limit (spec §4.6).
const MaxReplySize = 4000

const truncationNotice = "\n\n[truncated]"

// SafeSend wraps an orchestrator reply for delivery to a chat adapter: it
// truncates to MaxReplySize characters, appending a truncation notice when
// it does. It does not strip markup; RenderOrFallback does that when the
// caller's renderer rejects the reply.
func SafeSend(reply string) string {
	return Truncate(reply, MaxReplySize)
}

// Truncate cuts s to at most limit characters (runes), appending
// truncationNotice when the cut happens, without splitting a rune.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	noticeRunes := []rune(truncationNotice)
	cut := limit - len(noticeRunes)
	if cut < 0 {
		cut = 0
	}
	return string(runes[:cut]) + truncationNotice
}

// PlainFallback strips the handful of markup characters the chat adapter's
// rendered-markup path might reject, for use when RenderOrFallback's render
// step fails.
func PlainFallback(s string) string {
	replacer := strings.NewReplacer(
		"**", "", "__", "", "*", "", "_", "", "`", "", "~~", "",
	)
	return replacer.Replace(s)
}

// RenderOrFallback calls render on reply; if render fails, it falls back to
// a plain-formatted, truncated version (spec §4.6: "falls back to plain
// formatting if the rendered markup is rejected"). render is supplied by
// the chat-specific adapter (e.g. Telegram MarkdownV2); ingestion itself is
// chat-platform agnostic and has no renderer of its own.
func RenderOrFallback(reply string, render func(string) error) string {
	safe := SafeSend(reply)
	if render == nil {
		return safe
	}
	if err := render(safe); err != nil {
		return Truncate(PlainFallback(reply), MaxReplySize)
	}
	return safe
}
