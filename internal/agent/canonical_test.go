package agent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildCanonicalTreeIsAcyclicAndComplete(t *testing.T) {
	root := BuildCanonicalTree(CanonicalTreeConfig{DefaultModel: "test-model"})
	index, err := BuildTree(root)
	require.NoError(t, err)

	for _, name := range []string{
		"orchestrator", "chat_summarizer", "canvas_manager", "maintenance_agent",
		"disney_facilitator", "dreamer", "realist", "critic",
	} {
		require.Contains(t, index, name)
	}
}

func TestBuildCanonicalTreeCanvasManagerIsToolShaped(t *testing.T) {
	root := BuildCanonicalTree(CanonicalTreeConfig{DefaultModel: "test-model"})
	for _, sub := range root.SubAgents {
		if sub.Name == "canvas_manager" {
			require.True(t, sub.AsTool)
			return
		}
	}
	t.Fatal("canvas_manager not found under orchestrator")
}
