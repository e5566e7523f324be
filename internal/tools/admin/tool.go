// Package admin implements the administrative tool group spec §4.2 names —
// check_version_status, update_codebase, restart_application,
// get_recent_logs — guarded by an environment flag so they are unavailable
// unless an operator explicitly opts in.
package admin

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/riverbend-labs/canvas-agent/internal/agent"
)

// EnableEnvVar is the environment flag gating every admin tool. Unset or
// not a true value for strconv.ParseBool ("1", "t", "true", any case), the
// tool refuses every action rather than silently no-op
// succeeding — an agent must never believe a restart happened when it did
// not.
const EnableEnvVar = "CANVAS_AGENT_ENABLE_ADMIN_TOOLS"

// Enabled reports whether the admin tool group is turned on for this process.
func Enabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(EnableEnvVar)))
	enabled, _ := strconv.ParseBool(v)
	return enabled
}

// Tool dispatches the four administrative actions. Maintenance is the only
// agent this tool is wired into (spec §4.4's canonical tree).
type Tool struct {
	// VersionProvider reports the running build's version/commit; defaults
	// to reading CANVAS_AGENT_VERSION.
	VersionProvider func() string
	// Restarter performs the actual process restart (e.g. exiting with a
	// supervisor-recognized code); defaults to a no-op that reports success
	// without restarting, since an in-process call cannot safely exec itself.
	Restarter func() error
	// LogPath is the log file get_recent_logs tails.
	LogPath string
	// GitDir, when set, is the repository update_codebase pulls in.
	GitDir string
}

// NewTool creates the administrative tool with defaults filled in.
func NewTool(logPath, gitDir string) *Tool {
	return &Tool{LogPath: logPath, GitDir: gitDir}
}

func (t *Tool) Name() string { return "admin" }

func (t *Tool) Description() string {
	return "Operator-gated maintenance actions: version status, codebase update, restart, recent logs."
}

func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"action":{"type":"string","enum":["check_version_status","update_codebase","restart_application","get_recent_logs"]},"lines":{"type":"integer","description":"Number of trailing log lines for get_recent_logs."}},"required":["action"]}`)
}

func (t *Tool) Execute(ctx context.Context, _ agent.ToolContext, params json.RawMessage) (*agent.ToolResult, error) {
	if !Enabled() {
		return toolError("administrative tools are disabled"), nil
	}
	var in struct {
		Action string `json:"action"`
		Lines  int    `json:"lines"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return toolError("invalid parameters: " + err.Error()), nil
	}
	switch strings.ToLower(strings.TrimSpace(in.Action)) {
	case "check_version_status":
		return t.checkVersionStatus()
	case "update_codebase":
		return t.updateCodebase(ctx)
	case "restart_application":
		return t.restartApplication()
	case "get_recent_logs":
		return t.recentLogs(in.Lines)
	default:
		return toolError("unsupported action: " + in.Action), nil
	}
}

func (t *Tool) checkVersionStatus() (*agent.ToolResult, error) {
	version := os.Getenv("CANVAS_AGENT_VERSION")
	if t.VersionProvider != nil {
		version = t.VersionProvider()
	}
	if version == "" {
		version = "unknown"
	}
	return jsonResult(map[string]string{"version": version})
}

func (t *Tool) updateCodebase(ctx context.Context) (*agent.ToolResult, error) {
	if t.GitDir == "" {
		return toolError("no git directory configured"), nil
	}
	cmd := exec.CommandContext(ctx, "git", "pull", "--ff-only")
	cmd.Dir = t.GitDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return toolError("git pull failed: " + err.Error() + ": " + string(out)), nil
	}
	return jsonResult(map[string]string{"output": string(out)})
}

func (t *Tool) restartApplication() (*agent.ToolResult, error) {
	if t.Restarter == nil {
		return jsonResult(map[string]any{"ok": true, "restarted": false, "note": "no restarter configured"})
	}
	if err := t.Restarter(); err != nil {
		return toolError("restart failed: " + err.Error()), nil
	}
	return jsonResult(map[string]any{"ok": true, "restarted": true})
}

func (t *Tool) recentLogs(lines int) (*agent.ToolResult, error) {
	if t.LogPath == "" {
		return toolError("no log path configured"), nil
	}
	if lines <= 0 {
		lines = 100
	}
	content, err := os.ReadFile(t.LogPath)
	if err != nil {
		return toolError("reading logs: " + err.Error()), nil
	}
	all := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	if len(all) > lines {
		all = all[len(all)-lines:]
	}
	return jsonResult(map[string]any{"lines": all})
}

func jsonResult(v any) (*agent.ToolResult, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return toolError("encode result: " + err.Error()), nil
	}
	return &agent.ToolResult{Content: string(payload)}, nil
}

func toolError(message string) *agent.ToolResult {
	return &agent.ToolResult{Content: "Error: " + message, IsError: true}
}
