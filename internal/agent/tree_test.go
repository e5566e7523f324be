package agent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildTreeDetectsCycle(t *testing.T) {
	a := &Agent{Name: "a"}
	b := &Agent{Name: "b"}
	a.SubAgents = []*Agent{b}
	b.SubAgents = []*Agent{a}

	_, err := BuildTree(a)
	require.ErrorIs(t, err, ErrCycle)
}

func TestBuildTreeIndexesCanonicalShape(t *testing.T) {
	dreamer := &Agent{Name: "dreamer"}
	realist := &Agent{Name: "realist"}
	critic := &Agent{Name: "critic"}
	canvasManager := &Agent{Name: "canvas_manager", AsTool: true}
	disney := &Agent{Name: "disney_facilitator", SubAgents: []*Agent{dreamer, realist, critic, canvasManager}}
	chatSummarizer := &Agent{Name: "chat_summarizer"}
	maintenance := &Agent{Name: "maintenance_agent"}
	orchestrator := &Agent{Name: "orchestrator", SubAgents: []*Agent{chatSummarizer, canvasManager, maintenance, disney}}

	index, err := BuildTree(orchestrator)
	require.NoError(t, err)
	require.Len(t, index, 8)
	require.Contains(t, index, "dreamer")
	require.Contains(t, index, "disney_facilitator")
}

func TestBuildTreeRejectsDuplicateNameDifferentValue(t *testing.T) {
	a := &Agent{Name: "dup"}
	b := &Agent{Name: "dup"}
	root := &Agent{Name: "root", SubAgents: []*Agent{a, b}}

	_, err := BuildTree(root)
	require.Error(t, err)
}
