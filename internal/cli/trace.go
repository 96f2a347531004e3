package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/docrun/internal/store"
	"github.com/roach88/docrun/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // optional; defaults to the latest run
	Lane     string // optional; filter sequencer events to one lane
	List     bool   // list runs instead of showing one
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Run      store.Run            `json:"run"`
	Timeline []trace.Event        `json:"timeline"`
	Events   []store.EmittedEvent `json:"events"`
	Stats    TraceStats           `json:"stats"`
}

// TraceStats holds summary statistics for the run.
type TraceStats struct {
	TotalEvents int            `json:"total_events"`
	Emitted     int            `json:"emitted"`
	ByKind      map[string]int `json:"by_kind"`
	EndMS       int64          `json:"end_ms"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the recorded trace of a run",
		Long: `Show what the sequencer did during a run recorded with --db.

The output includes:
- Timeline: sequencer events (execute, fast, preempt, complete,
  terminate, claim, release, reset, shutdown) in order
- Events: what the document emitted, with argument digests
- Stats: counts per event kind

Examples:
  docrun trace --db ./docrun.db
  docrun trace --db ./docrun.db --run 0190f3c4-...
  docrun trace --db ./docrun.db --lane anim --format json
  docrun trace --db ./docrun.db --list`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to show (default: latest run)")
	cmd.Flags().StringVar(&opts.Lane, "lane", "", "only show sequencer events on this lane")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list recorded runs")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), opts.Database)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.List {
		return listRuns(ctx, st, formatter)
	}

	run, err := selectRun(ctx, st, opts.RunID)
	if errors.Is(err, sql.ErrNoRows) {
		msg := "no runs recorded"
		if opts.RunID != "" {
			msg = fmt.Sprintf("run not found: %s", opts.RunID)
		}
		_ = formatter.Error(ErrCodeNotFound, msg, opts.Database)
		return NewExitError(ExitCommandError, msg)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	events, err := st.ReadTrace(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}
	emitted, err := st.ReadEmitted(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read emitted events", err)
	}
	counts, err := st.CountTrace(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count trace", err)
	}

	result := TraceResult{
		Run:      run,
		Timeline: filterLane(events, opts.Lane),
		Events:   emitted,
		Stats: TraceStats{
			TotalEvents: len(events),
			Emitted:     len(emitted),
			ByKind:      make(map[string]int, len(counts)),
		},
	}
	for k, n := range counts {
		result.Stats.ByKind[string(k)] = n
	}
	if n := len(events); n > 0 {
		result.Stats.EndMS = events[n-1].AtMS
	}

	if formatter.JSON() {
		return formatter.Encode(CLIResponse{Status: "ok", Data: result, RunID: run.ID})
	}
	outputTraceText(formatter.Writer, result, opts.Verbose)
	return nil
}

func selectRun(ctx context.Context, st *store.Store, id string) (store.Run, error) {
	if id == "" {
		return st.LatestRun(ctx)
	}
	return st.ReadRun(ctx, id)
}

func listRuns(ctx context.Context, st *store.Store, formatter *OutputFormatter) error {
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	if formatter.JSON() {
		return formatter.Success(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(formatter.Writer, "%s  %s (version %s)\n", r.ID, r.Document, r.Version)
	}
	return nil
}

// filterLane keeps events on lane. Events without a lane (fast, claim,
// release, shutdown) are kept only when no lane is given.
func filterLane(events []trace.Event, lane string) []trace.Event {
	if lane == "" {
		return events
	}
	out := make([]trace.Event, 0, len(events))
	for _, ev := range events {
		if ev.Lane == lane {
			out = append(out, ev)
		}
	}
	return out
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Trace for Run: %s\n", result.Run.ID)
	fmt.Fprintf(w, "Document: %s (version %s)\n", result.Run.Document, result.Run.Version)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, ev := range result.Timeline {
		formatTimelineEvent(w, ev, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Events ===")
	if len(result.Events) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, ev := range result.Events {
		fmt.Fprintf(w, "  [%d] %6dms %s %s\n", ev.Seq, ev.AtMS, ev.Type, formatValue(ev.Arguments))
		if verbose {
			fmt.Fprintf(w, "       Digest: %s\n", truncateID(ev.Digest))
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Emitted:      %d\n", result.Stats.Emitted)
	kinds := make([]string, 0, len(result.Stats.ByKind))
	for k := range result.Stats.ByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-13s %d\n", k+":", result.Stats.ByKind[k])
	}
}

// formatTimelineEvent formats a single sequencer event for text output.
func formatTimelineEvent(w io.Writer, ev trace.Event, verbose bool) {
	fmt.Fprintf(w, "  [%d] %6dms %-9s", ev.Seq, ev.AtMS, strings.ToUpper(string(ev.Kind)))
	if ev.Lane != "" {
		fmt.Fprintf(w, " lane=%s", ev.Lane)
	}
	if ev.Command != "" {
		fmt.Fprintf(w, " %s", ev.Command)
	}
	if ev.Resource != "" {
		fmt.Fprintf(w, " %s", ev.Resource)
	}
	fmt.Fprintln(w)
	if verbose && ev.ActionID != "" {
		fmt.Fprintf(w, "       ID: %s\n", truncateID(ev.ActionID))
	}
}

// formatValue formats a value for display, handling nested structures
// deterministically.
func formatValue(v any) string {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%s", k, formatValue(val[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
