package harness

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/docrun/internal/document"
	"github.com/roach88/docrun/internal/trace"
)

// AssertionContext gives assertions access to the live runtime after the
// last step.
type AssertionContext struct {
	Runtime *document.Runtime
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Labels   []string // Emitted event labels for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Labels) > 0 {
		fmt.Fprintf(&buf, "\nEmitted events:\n")
		for i, l := range e.Labels {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, l)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns one message per
// failure, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertEventOrder:
		return assertEventOrder(result, a)
	case AssertEventCount:
		return assertEventCount(result, a)
	case AssertTraceCount:
		return assertTraceCount(result, a)
	case AssertLaneEmpty:
		return assertLaneEmpty(actx, a)
	case AssertScopeValue:
		return assertScopeValue(actx, a)
	case AssertTime:
		if result.EndMS != int64(a.MS) {
			return &AssertionError{
				Type:     AssertTime,
				Expected: fmt.Sprintf("%dms", a.MS),
				Actual:   fmt.Sprintf("%dms", result.EndMS),
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertEventOrder checks that the labels appear in the given order.
// Other events may appear in between.
func assertEventOrder(result *Result, a Assertion) error {
	labels := result.Labels()
	next := 0
	for _, l := range labels {
		if next < len(a.Events) && l == a.Events[next] {
			next++
		}
	}
	if next == len(a.Events) {
		return nil
	}
	return &AssertionError{
		Type:     AssertEventOrder,
		Expected: fmt.Sprintf("events in order: %v", a.Events),
		Actual:   fmt.Sprintf("%q not found after %v", a.Events[next], a.Events[:next]),
		Labels:   labels,
	}
}

func assertEventCount(result *Result, a Assertion) error {
	labels := result.Labels()
	count := 0
	for _, l := range labels {
		if l == a.Event {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Labels:   labels,
		}
	}
	return nil
}

func assertTraceCount(result *Result, a Assertion) error {
	count := 0
	for _, ev := range result.Trace {
		if ev.Kind != trace.Kind(a.Kind) {
			continue
		}
		if a.Lane != "" && ev.Lane != a.Lane {
			continue
		}
		count++
	}
	if count != a.Count {
		where := a.Kind
		if a.Lane != "" {
			where += " on " + a.Lane
		}
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d trace events %s", a.Count, where),
			Actual:   fmt.Sprintf("%d", count),
		}
	}
	return nil
}

func assertLaneEmpty(actx *AssertionContext, a Assertion) error {
	if actx == nil || actx.Runtime == nil {
		return fmt.Errorf("lane_empty needs a runtime")
	}
	if !actx.Runtime.Sequencer().IsEmpty(a.Lane) {
		return &AssertionError{
			Type:     AssertLaneEmpty,
			Expected: fmt.Sprintf("lane %s empty", a.Lane),
			Actual:   "lane has a pending occupant",
		}
	}
	return nil
}

func assertScopeValue(actx *AssertionContext, a Assertion) error {
	if actx == nil || actx.Runtime == nil {
		return fmt.Errorf("scope_value needs a runtime")
	}
	got, ok := actx.Runtime.Value(a.Name)
	if !ok {
		return &AssertionError{
			Type:     AssertScopeValue,
			Expected: fmt.Sprintf("%s = %v", a.Name, a.Value),
			Actual:   "not defined",
		}
	}
	if !sameValue(got, a.Value) {
		return &AssertionError{
			Type:     AssertScopeValue,
			Expected: fmt.Sprintf("%s = %v", a.Name, a.Value),
			Actual:   fmt.Sprintf("%s = %v", a.Name, got),
		}
	}
	return nil
}

// sameValue compares integers by value regardless of their Go type, and
// everything else with reflect.DeepEqual.
func sameValue(got, want any) bool {
	gi, gok := asInt64(got)
	wi, wok := asInt64(want)
	if gok && wok {
		return gi == wi
	}
	return reflect.DeepEqual(got, want)
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}
