package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docrun/internal/store"
	"github.com/roach88/docrun/internal/trace"
)

func decodeTrace(t *testing.T, out string) TraceResult {
	t.Helper()
	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

// recordedRun runs the panel document into a fresh database and returns
// the database path.
func recordedRun(t *testing.T, args ...string) string {
	t.Helper()
	dir := t.TempDir()
	doc := writeFile(t, dir, "panel.yaml", panelDocument)
	db := filepath.Join(dir, "runs.db")
	_, _, err := execute(t, append([]string{"run", doc, "--db", db}, args...)...)
	require.NoError(t, err)
	return db
}

func TestTrace_LatestRun(t *testing.T) {
	db := recordedRun(t, "--handler", "spin")

	out, _, err := execute(t, "--format", "json", "trace", "--db", db)
	require.NoError(t, err)

	result := decodeTrace(t, out)
	assert.Equal(t, "1.4", result.Run.Version)
	require.NotEmpty(t, result.Timeline)
	assert.Equal(t, trace.KindExecute, result.Timeline[0].Kind)
	assert.Equal(t, "Document", result.Timeline[0].Command)
	assert.Equal(t, trace.KindShutdown, result.Timeline[len(result.Timeline)-1].Kind)
	assert.Equal(t, 1, result.Stats.ByKind["claim"])
	assert.Equal(t, int64(1100), result.Stats.EndMS)
	require.Len(t, result.Events, 2)
	assert.Len(t, result.Events[0].Digest, 64)
}

func TestTrace_LaneFilter(t *testing.T) {
	db := recordedRun(t, "--handler", "spin")

	out, _, err := execute(t, "--format", "json", "trace", "--db", db, "--lane", "anim")
	require.NoError(t, err)

	result := decodeTrace(t, out)
	require.NotEmpty(t, result.Timeline)
	for _, ev := range result.Timeline {
		assert.Equal(t, "anim", ev.Lane)
	}
	assert.Greater(t, result.Stats.TotalEvents, len(result.Timeline))
}

func TestTrace_TextOutput(t *testing.T) {
	db := recordedRun(t, "--handler", "press")

	out, _, err := execute(t, "trace", "--db", db, "--verbose")
	require.NoError(t, err)
	assert.Contains(t, out, "=== Timeline ===")
	assert.Contains(t, out, "EXECUTE")
	assert.Contains(t, out, "lane=__MAIN__ Document")
	assert.Contains(t, out, "=== Events ===")
	assert.Contains(t, out, "Digest:")
	assert.Contains(t, out, "=== Stats ===")
}

func TestTrace_SelectAndList(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "panel.yaml", panelDocument)
	db := filepath.Join(dir, "runs.db")

	var ids []string
	for _, h := range []string{"press", "slow"} {
		out, _, err := execute(t, "--format", "json", "run", doc, "--db", db, "--handler", h)
		require.NoError(t, err)
		ids = append(ids, decodeRun(t, out).RunID)
	}

	out, _, err := execute(t, "--format", "json", "trace", "--db", db, "--run", ids[0])
	require.NoError(t, err)
	assert.Equal(t, ids[0], decodeTrace(t, out).Run.ID)

	out, _, err = execute(t, "--format", "json", "trace", "--db", db, "--list")
	require.NoError(t, err)
	var resp struct {
		Data []store.Run `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, ids, []string{resp.Data[0].ID, resp.Data[1].ID})
}

func TestTrace_Errors(t *testing.T) {
	empty := filepath.Join(t.TempDir(), "empty.db")

	out, _, err := execute(t, "trace", "--db", empty)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "no runs recorded")

	db := recordedRun(t)
	out, _, err = execute(t, "trace", "--db", db, "--run", "missing")
	require.Error(t, err)
	assert.Contains(t, out, "run not found: missing")

	_, _, err = execute(t, "trace")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}
