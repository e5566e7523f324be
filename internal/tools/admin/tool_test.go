package admin

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riverbend-labs/canvas-agent/internal/agent"
)

func TestToolDisabledByDefault(t *testing.T) {
	os.Unsetenv(EnableEnvVar)
	tool := NewTool("", "")
	params, _ := json.Marshal(map[string]any{"action": "check_version_status"})
	res, err := tool.Execute(context.Background(), agent.ToolContext{}, params)
	require.NoError(t, err)
	require.True(t, res.IsError)
}

func TestToolVersionStatusWhenEnabled(t *testing.T) {
	t.Setenv(EnableEnvVar, "true")
	tool := NewTool("", "")
	tool.VersionProvider = func() string { return "v1.2.3" }

	params, _ := json.Marshal(map[string]any{"action": "check_version_status"})
	res, err := tool.Execute(context.Background(), agent.ToolContext{}, params)
	require.NoError(t, err)
	require.False(t, res.IsError)

	var out map[string]string
	require.NoError(t, json.Unmarshal([]byte(res.Content), &out))
	require.Equal(t, "v1.2.3", out["version"])
}

func TestToolRestartWithoutRestarterReportsNotRestarted(t *testing.T) {
	t.Setenv(EnableEnvVar, "1")
	tool := NewTool("", "")

	params, _ := json.Marshal(map[string]any{"action": "restart_application"})
	res, err := tool.Execute(context.Background(), agent.ToolContext{}, params)
	require.NoError(t, err)
	require.False(t, res.IsError)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Content), &out))
	require.Equal(t, false, out["restarted"])
}

func TestToolRecentLogsReturnsTrailingLines(t *testing.T) {
	t.Setenv(EnableEnvVar, "true")
	path := t.TempDir() + "/app.log"
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\nthree\n"), 0o644))
	tool := NewTool(path, "")

	params, _ := json.Marshal(map[string]any{"action": "get_recent_logs", "lines": 2})
	res, err := tool.Execute(context.Background(), agent.ToolContext{}, params)
	require.NoError(t, err)
	require.False(t, res.IsError)

	var out struct {
		Lines []string `json:"lines"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Content), &out))
	require.Equal(t, []string{"two", "three"}, out.Lines)
}
