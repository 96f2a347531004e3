package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runResponse struct {
	Status string    `json:"status"`
	Data   RunResult `json:"data"`
	RunID  string    `json:"run_id"`
}

func decodeRun(t *testing.T, out string) RunResult {
	t.Helper()
	var resp runResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	assert.Equal(t, resp.RunID, resp.Data.RunID)
	return resp.Data
}

func labels(events []EventLine) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i], _ = ev.Arguments[0].(string)
	}
	return out
}

func TestRun_MountAndHandlers(t *testing.T) {
	path := writeFile(t, t.TempDir(), "panel.yaml", panelDocument)

	out, _, err := execute(t, "--format", "json", "run", path, "--handler", "press", "--handler", "slow")
	require.NoError(t, err)

	result := decodeRun(t, out)
	assert.Equal(t, []string{"header", "mounted", "pressed", "slow-done"}, labels(result.Events))
	assert.Equal(t, "header", result.Events[0].Component)
	assert.Equal(t, int64(100), result.Events[1].AtMS)
	assert.Equal(t, int64(600), result.EndMS)
	assert.Equal(t, "1.4", result.Version)
	assert.Equal(t, 3, result.Trace["execute"])
	assert.Equal(t, 1, result.Trace["shutdown"])
	assert.False(t, result.Stored)
	assert.Len(t, result.RunID, 36, "run ids are UUIDs")
}

func TestRun_FastMode(t *testing.T) {
	path := writeFile(t, t.TempDir(), "panel.yaml", panelDocument)

	out, _, err := execute(t, "--format", "json", "run", path, "--no-mount", "--fast", "--handler", "slow")
	require.NoError(t, err)

	result := decodeRun(t, out)
	assert.Equal(t, []string{"slow-done"}, labels(result.Events))
	assert.Equal(t, int64(0), result.EndMS, "fast mode takes no virtual time")
	assert.Equal(t, 1, result.Trace["fast"])
}

func TestRun_Until(t *testing.T) {
	path := writeFile(t, t.TempDir(), "panel.yaml", panelDocument)

	out, _, err := execute(t, "--format", "json", "run", path, "--until", "300", "--handler", "slow")
	require.NoError(t, err)

	result := decodeRun(t, out)
	assert.Equal(t, []string{"header", "mounted"}, labels(result.Events))
	assert.Equal(t, int64(300), result.EndMS)
	assert.Equal(t, 1, result.Trace["terminate"], "the unfinished handler is terminated at shutdown")
}

func TestRun_TextOutput(t *testing.T) {
	path := writeFile(t, t.TempDir(), "panel.yaml", panelDocument)

	out, _, err := execute(t, "run", path, "--handler", "press")
	require.NoError(t, err)
	assert.Contains(t, out, "=== Events ===")
	assert.Contains(t, out, "SendEvent header [header]")
	assert.Contains(t, out, "[pressed, 1]")
	assert.Contains(t, out, "=== Trace ===")
	assert.Contains(t, out, "Finished at 100ms")
}

func TestRun_RecordsToDatabase(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "panel.yaml", panelDocument)
	db := filepath.Join(dir, "runs.db")

	out, _, err := execute(t, "--format", "json", "run", path, "--db", db, "--handler", "spin")
	require.NoError(t, err)
	result := decodeRun(t, out)
	assert.True(t, result.Stored)
	assert.Equal(t, 1, result.Trace["claim"])

	out, _, err = execute(t, "--format", "json", "trace", "--db", db)
	require.NoError(t, err)
	traced := decodeTrace(t, out)
	assert.Equal(t, result.RunID, traced.Run.ID)
	assert.Equal(t, len(result.Events), traced.Stats.Emitted)
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	valid := writeFile(t, dir, "panel.yaml", panelDocument)
	invalid := writeFile(t, dir, "bad.yaml", "version: \"1.4\"\nonMount:\n  - type: SendEvent\n    arguments: [1.5]\n")

	tests := []struct {
		name string
		args []string
		code int
		want string
	}{
		{"missing document", []string{"run", filepath.Join(dir, "nope.yaml")}, ExitCommandError, "E005"},
		{"invalid document", []string{"run", invalid}, ExitFailure, "Validation failed"},
		{"unknown handler", []string{"run", valid, "--handler", "missing"}, ExitCommandError, `unknown handler "missing"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.code, GetExitCode(err))
			assert.Contains(t, out, tt.want)
		})
	}
}
