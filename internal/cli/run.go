package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/docrun/internal/document"
	"github.com/roach88/docrun/internal/store"
	"github.com/roach88/docrun/internal/trace"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Handlers []string
	Fast     bool
	UntilMS  int
	NoMount  bool

	// IDGenerator allows overriding the run and action id generator (for
	// testing). If nil, defaults to trace.UUIDv7Generator.
	IDGenerator trace.IDGenerator
}

// EventLine is one emitted event in run output.
type EventLine struct {
	Seq       int64  `json:"seq"`
	AtMS      int64  `json:"at_ms"`
	Type      string `json:"type"`
	Component string `json:"component,omitempty"`
	Arguments []any  `json:"arguments"`
}

// RunResult summarises a document run.
type RunResult struct {
	RunID    string         `json:"run_id"`
	Document string         `json:"document"`
	Version  string         `json:"version"`
	EndMS    int64          `json:"end_ms"`
	Events   []EventLine    `json:"events"`
	Trace    map[string]int `json:"trace"`
	Stored   bool           `json:"stored"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <document>",
		Short: "Mount a document and run handlers in virtual time",
		Long: `Mount a command document, then invoke handlers one after another.

Each phase runs until no timers remain, or until virtual time reaches
--until. Emitted events are printed in order. With --db the trace and the
emitted events are recorded in a SQLite database (created if missing) for
the trace command.

Examples:
  docrun run panel.yaml
  docrun run panel.yaml --handler press --handler spin --db ./docrun.db
  docrun run panel.yaml --handler slow --until 200 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDocument(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite database")
	cmd.Flags().StringArrayVar(&opts.Handlers, "handler", nil, "handler to invoke after mounting (repeatable)")
	cmd.Flags().BoolVar(&opts.Fast, "fast", false, "invoke handlers in fast mode")
	cmd.Flags().IntVar(&opts.UntilMS, "until", 0, "stop at this virtual time in ms (0 runs to the end)")
	cmd.Flags().BoolVar(&opts.NoMount, "no-mount", false, "skip the onMount commands")

	return cmd
}

func runDocument(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	doc, err := loadDocument(path)
	if err != nil {
		var verrs document.ValidationErrors
		if errors.As(err, &verrs) {
			return outputValidationErrors(formatter, path, verrs)
		}
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			_ = formatter.Error(loadErr.Code, loadErr.Message, path)
		}
		return WrapExitError(ExitCommandError, "failed to load document", err)
	}
	for _, h := range opts.Handlers {
		if _, ok := doc.Handler(h); !ok {
			_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("unknown handler %q", h), path)
			return NewExitError(ExitCommandError, fmt.Sprintf("unknown handler %q", h))
		}
	}

	ids := opts.IDGenerator
	if ids == nil {
		ids = trace.UUIDv7Generator{}
	}
	mem := trace.NewMemory()
	rec := &recorder{logger: logger}
	rt := document.NewRuntime(doc,
		document.WithLogger(logger),
		document.WithIDGenerator(ids),
		document.WithObserver(mem),
		document.WithObserver(rec),
		document.WithEventSink(rec.emitted),
	)

	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), opts.Database)
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		if err := rec.attach(cmd.Context(), st, rt.RunID(), path, doc.Version); err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), opts.Database)
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
		logger.Info("recording run", "db", opts.Database, "run", rt.RunID())
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	until := time.Duration(opts.UntilMS) * time.Millisecond
	settle := func() {
		if until <= 0 {
			rt.AdvanceToEnd()
			return
		}
		if remaining := until - rt.Now(); remaining > 0 {
			rt.AdvanceBy(remaining)
		}
	}

	if !opts.NoMount {
		rt.Mount()
		settle()
	}
	for _, h := range opts.Handlers {
		if ctx.Err() != nil {
			logger.Info("interrupted, terminating run", "handler", h)
			break
		}
		formatter.VerboseLog("invoke %s at %dms", h, rt.Now().Milliseconds())
		if _, err := rt.Invoke(h, opts.Fast); err != nil {
			return WrapExitError(ExitFailure, "invoke failed", err)
		}
		settle()
	}
	rt.Terminate()

	if err := rec.err(); err != nil {
		return WrapExitError(ExitFailure, "failed to record run", err)
	}

	result := RunResult{
		RunID:    rt.RunID(),
		Document: path,
		Version:  doc.Version,
		EndMS:    rt.Now().Milliseconds(),
		Events:   make([]EventLine, 0),
		Trace:    make(map[string]int),
		Stored:   opts.Database != "",
	}
	for _, e := range rt.Events() {
		result.Events = append(result.Events, EventLine{
			Seq:       e.Seq,
			AtMS:      e.AtMS,
			Type:      e.Event.Type,
			Component: e.Event.Component,
			Arguments: e.Event.Arguments,
		})
	}
	for _, ev := range mem.Events() {
		result.Trace[string(ev.Kind)]++
	}

	if formatter.JSON() {
		return formatter.Encode(CLIResponse{Status: "ok", Data: result, RunID: result.RunID})
	}
	outputRunText(formatter, result)
	return nil
}

func outputRunText(formatter *OutputFormatter, result RunResult) {
	w := formatter.Writer
	fmt.Fprintf(w, "Run %s (%s, version %s)\n", result.RunID, result.Document, result.Version)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Events ===")
	if len(result.Events) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, ev := range result.Events {
		fmt.Fprintf(w, "  [%d] %6dms %s", ev.Seq, ev.AtMS, ev.Type)
		if ev.Component != "" {
			fmt.Fprintf(w, " %s", ev.Component)
		}
		fmt.Fprintf(w, " %s\n", formatValue(ev.Arguments))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Trace ===")
	kinds := make([]string, 0, len(result.Trace))
	for k := range result.Trace {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-10s %d\n", k+":", result.Trace[k])
	}
	fmt.Fprintf(w, "\nFinished at %dms\n", result.EndMS)
}

// recorder forwards trace and emitted events to a store once attached.
// Before attach, and without --db, it drops them.
type recorder struct {
	logger *slog.Logger
	ctx    context.Context
	store  *store.Store
	sink   *store.TraceSink
	runID  string
	first  error
}

func (r *recorder) attach(ctx context.Context, st *store.Store, runID, path, version string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := st.BeginRun(ctx, store.Run{ID: runID, Document: path, Version: version}); err != nil {
		return err
	}
	r.ctx = ctx
	r.store = st
	r.runID = runID
	r.sink = store.NewTraceSink(st, runID, r.logger)
	return nil
}

func (r *recorder) Record(ev trace.Event) {
	if r.sink != nil {
		r.sink.Record(ev)
	}
}

func (r *recorder) emitted(e document.Emitted) {
	if r.store == nil {
		return
	}
	_, err := r.store.WriteEmitted(r.ctx, store.EmittedEvent{
		RunID:     r.runID,
		Seq:       e.Seq,
		Type:      e.Event.Type,
		Component: e.Event.Component,
		Arguments: e.Event.Arguments,
		AtMS:      e.AtMS,
	})
	if err != nil {
		r.logger.Warn("emitted event write failed", "seq", e.Seq, "error", err)
		if r.first == nil {
			r.first = err
		}
	}
}

func (r *recorder) err() error {
	if r.first != nil {
		return r.first
	}
	if r.sink != nil {
		if n := r.sink.Failures(); n > 0 {
			return fmt.Errorf("%d trace events could not be stored", n)
		}
	}
	return nil
}
