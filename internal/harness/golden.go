package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/docrun/internal/canonical"
)

// TraceSnapshot captures what a scenario produced, in a form that
// serializes to identical canonical JSON on every run.
type TraceSnapshot struct {
	ScenarioName string
	Result       *Result
}

// toCanonicalMap converts a TraceSnapshot to plain maps and slices, the
// only shapes canonical.Marshal accepts. Empty strings are left out.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Result.Trace))
	for i, ev := range s.Result.Trace {
		m := map[string]any{
			"seq":   ev.Seq,
			"kind":  string(ev.Kind),
			"at_ms": ev.AtMS,
		}
		putString(m, "lane", ev.Lane)
		putString(m, "command", ev.Command)
		putString(m, "action_id", ev.ActionID)
		putString(m, "resource", ev.Resource)
		traceList[i] = m
	}

	eventList := make([]any, len(s.Result.Events))
	for i, ev := range s.Result.Events {
		args := ev.Arguments
		if args == nil {
			args = []any{}
		}
		m := map[string]any{
			"seq":       ev.Seq,
			"type":      ev.Type,
			"arguments": args,
			"digest":    ev.Digest,
			"at_ms":     ev.AtMS,
		}
		putString(m, "component", ev.Component)
		eventList[i] = m
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"run_id":        s.Result.RunID,
		"end_ms":        s.Result.EndMS,
		"trace":         traceList,
		"events":        eventList,
	}
}

func putString(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

// Snapshot returns the canonical JSON golden files hold for result.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{ScenarioName: scenarioName, Result: result}
	return canonical.Marshal(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
