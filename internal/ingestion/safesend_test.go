package ingestion

import (
	"errors"
	"strings"
	"testing"
)

func TestTruncateLeavesShortStringUnchanged(t *testing.T) {
	if got := Truncate("hello", 100); got != "hello" {
		t.Errorf("Truncate() = %q, want hello", got)
	}
}

func TestTruncateAppendsNoticeWhenCut(t *testing.T) {
	long := strings.Repeat("a", 5000)
	got := Truncate(long, MaxReplySize)
	if len(got) >= len(long) {
		t.Errorf("expected truncated output shorter than input")
	}
	if !strings.HasSuffix(got, "[truncated]") {
		t.Errorf("expected truncation notice, got suffix %q", got[len(got)-20:])
	}
}

func TestPlainFallbackStripsMarkup(t *testing.T) {
	got := PlainFallback("**bold** _em_ `code`")
	if strings.ContainsAny(got, "*_`") {
		t.Errorf("PlainFallback() left markup characters: %q", got)
	}
}

func TestRenderOrFallbackUsesPlainOnRenderError(t *testing.T) {
	got := RenderOrFallback("**bold**", func(string) error { return errors.New("rejected") })
	if strings.Contains(got, "*") {
		t.Errorf("expected markup stripped after render failure, got %q", got)
	}
}

func TestRenderOrFallbackReturnsRenderedOnSuccess(t *testing.T) {
	got := RenderOrFallback("**bold**", func(string) error { return nil })
	if got != "**bold**" {
		t.Errorf("RenderOrFallback() = %q, want markup preserved", got)
	}
}
