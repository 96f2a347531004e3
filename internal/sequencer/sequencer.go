// Package sequencer arbitrates which document work runs concurrently.
//
// Work is placed on named lanes. Each lane holds at most one live action;
// placing new work on an occupied lane terminates the occupant first. The
// main lane carries the document's top-level instruction stream and is the
// only lane whose action is returned to callers.
//
// Fast-mode work bypasses lanes and delays entirely and is only tracked so
// that Terminate can stop it.
//
// Resources are named capabilities (such as animating one property) held
// by at most one action or Holder at a time. Claiming a held resource
// evicts the previous holder.
//
// Documents older than version 1.4 predate lanes and resources: explicit
// lanes collapse onto the main lane and resource eviction does not
// terminate the previous holder.
//
// Thread-safety: Sequencer is NOT safe for concurrent use. It is driven
// from the goroutine that advances the timer loop.
package sequencer

import (
	"log/slog"
	"sort"

	"golang.org/x/mod/semver"

	"github.com/roach88/docrun/internal/action"
	"github.com/roach88/docrun/internal/command"
	"github.com/roach88/docrun/internal/timer"
	"github.com/roach88/docrun/internal/trace"
)

// MainLane is the reserved name of the default lane.
const MainLane = "__MAIN__"

// FeatureVersion is the first document version with multiple lanes and
// resource arbitration.
const FeatureVersion = "1.4"

// Resource identifies an exclusively held capability.
type Resource = command.Resource

// Holder is a resource owner that is not an action. It is told when a
// newer claim takes its resource away.
type Holder interface {
	OnResourceLoss()
}

// Sequencer owns the lane map, the fast-mode set and the resource maps.
type Sequencer struct {
	timers timer.Timers

	lanes          map[string]*action.Action
	oneShots       []*action.Action
	resetInExecute map[string]bool
	terminated     bool

	byAction map[Resource]*action.Action
	byHolder map[Resource]Holder

	multiLane bool
	resources bool

	logger   *slog.Logger
	observer trace.Observer
	ids      trace.IDGenerator
	actionID map[*action.Action]string
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Sequencer) {
		s.logger = l
	}
}

// WithObserver reports lane, fast-mode and resource events to o.
func WithObserver(o trace.Observer) Option {
	return func(s *Sequencer) {
		s.observer = o
	}
}

// WithIDGenerator sets the generator used to name tracked actions in
// trace events. Default: UUIDv7Generator.
func WithIDGenerator(g trace.IDGenerator) Option {
	return func(s *Sequencer) {
		s.ids = g
	}
}

// New creates a sequencer for a document of the given version.
func New(timers timer.Timers, documentVersion string, opts ...Option) *Sequencer {
	supported := VersionSupportsLanes(documentVersion)
	s := &Sequencer{
		timers:         timers,
		lanes:          make(map[string]*action.Action),
		resetInExecute: make(map[string]bool),
		byAction:       make(map[Resource]*action.Action),
		byHolder:       make(map[Resource]Holder),
		multiLane:      supported,
		resources:      supported,
		logger:         slog.Default(),
		ids:            trace.UUIDv7Generator{},
		actionID:       make(map[*action.Action]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// VersionSupportsLanes reports whether documentVersion is at least
// FeatureVersion. Unparsable versions are treated as old.
func VersionSupportsLanes(documentVersion string) bool {
	v := "v" + documentVersion
	if !semver.IsValid(v) {
		return false
	}
	return semver.Compare(v, "v"+FeatureVersion) >= 0
}

// MultiLane reports whether explicit lanes are honored.
func (s *Sequencer) MultiLane() bool { return s.multiLane }

// SupportsResources reports whether resource claims evict holders.
func (s *Sequencer) SupportsResources() bool { return s.resources }

// IsTerminated reports whether Terminate has been called.
func (s *Sequencer) IsTerminated() bool { return s.terminated }

// Execute runs cmd. A command with an explicit lane always runs normally
// on that lane, even when fastMode is requested. In fast mode the command
// executes at once without a delay gate and nil is returned. Otherwise the
// command is placed on its lane; only main lane placement returns the
// action.
func (s *Sequencer) Execute(cmd command.Command, fastMode bool) *action.Action {
	if s.terminated || cmd == nil {
		return nil
	}

	lane := cmd.Sequencer()
	if lane == "" {
		lane = MainLane
	} else {
		fastMode = false
	}

	if fastMode {
		s.executeFast(cmd)
		return nil
	}
	return s.ExecuteOnSequencer(cmd, lane)
}

// ExecuteOnSequencer places cmd on lane, terminating the previous occupant.
// It returns the gate action for the main lane and nil for other lanes,
// whose entries clear themselves when the action finishes.
func (s *Sequencer) ExecuteOnSequencer(cmd command.Command, lane string) *action.Action {
	if s.terminated || cmd == nil {
		return nil
	}
	if !s.multiLane || lane == "" {
		lane = MainLane
	}

	s.evict(lane, cmd.Name())

	delete(s.resetInExecute, lane)
	obs := &observed{Command: cmd}
	gate := command.NewDelayAction(s.timers, obs, false)
	obs.gate = gate
	if s.resetInExecute[lane] || s.terminated {
		delete(s.resetInExecute, lane)
		gate.Terminate()
		s.logger.Debug("lane reset while executing, dropping action",
			"lane", lane,
			"command", cmd.Name(),
		)
	}

	if gate.IsPending() {
		s.install(lane, gate, cmd.Name())
		obs.done = func(kind trace.Kind) { s.finished(gate, kind, lane) }
	} else {
		s.record(trace.Event{Kind: trace.KindExecute, Lane: lane, Command: cmd.Name()})
	}

	if lane != MainLane {
		return nil
	}
	return gate
}

// observed reports when a lane command completes. The main lane gate is
// handed to the caller, who owns its Then callback, so completion is
// observed through Complete instead.
type observed struct {
	command.Command
	gate *action.Action
	done func(kind trace.Kind)
}

func (o *observed) Complete() {
	o.Command.Complete()
	if o.done == nil {
		return
	}
	kind := trace.KindComplete
	if o.gate != nil && o.gate.IsTerminated() {
		kind = trace.KindTerminate
	}
	o.done(kind)
}

// ExecuteCommands inflates descs into one ArrayCommand bound to scope and
// component and executes it.
func (s *Sequencer) ExecuteCommands(ctx *command.Context, descs []command.Description, scope *command.Scope, component string, fastMode bool) *action.Action {
	if s.terminated || len(descs) == 0 {
		return nil
	}
	return s.Execute(s.arrayOf(ctx, descs, scope, component, ""), fastMode)
}

// ExecuteCommandsOnSequencer inflates descs into one ArrayCommand and
// places it on lane.
func (s *Sequencer) ExecuteCommandsOnSequencer(ctx *command.Context, descs []command.Description, scope *command.Scope, component, lane string) *action.Action {
	if s.terminated || len(descs) == 0 {
		return nil
	}
	return s.ExecuteOnSequencer(s.arrayOf(ctx, descs, scope, component, lane), lane)
}

// arrayOf wraps descs in an ArrayCommand whose children inherit lane.
func (s *Sequencer) arrayOf(ctx *command.Context, descs []command.Description, scope *command.Scope, component, lane string) *command.ArrayCommand {
	if lane == MainLane {
		lane = ""
	}
	return command.NewArrayCommand(ctx, command.Properties{
		Type:      "Array",
		Inherited: lane,
		Scope:     scope,
		Component: component,
	}, descs, false)
}

// AttachToSequencer makes an externally created action the occupant of
// lane, terminating the previous occupant. The main lane cannot be
// attached to.
func (s *Sequencer) AttachToSequencer(a *action.Action, lane string) {
	if s.terminated || a == nil || lane == MainLane || lane == "" {
		return
	}
	s.evict(lane, "attach")
	if !a.IsPending() {
		return
	}
	s.install(lane, a, "attach")
	a.AddTerminateCallback(func() { s.finished(a, trace.KindTerminate, lane) })
}

// TerminateSequencer terminates and clears a named lane. The main lane is
// only cleared by Reset.
func (s *Sequencer) TerminateSequencer(lane string) {
	if lane == MainLane {
		return
	}
	s.evict(lane, "")
}

// IsRunning reports whether lane is active. The main lane always is.
func (s *Sequencer) IsRunning(lane string) bool {
	if lane == MainLane {
		return true
	}
	_, ok := s.lanes[lane]
	return ok
}

// IsEmpty reports whether no live action occupies lane. Everything is
// empty once the sequencer has terminated.
func (s *Sequencer) IsEmpty(lane string) bool {
	if s.terminated {
		return true
	}
	a, ok := s.lanes[lane]
	return !ok || a == nil || !a.IsPending()
}

// Occupant returns the action currently on lane, if any.
func (s *Sequencer) Occupant(lane string) *action.Action {
	return s.lanes[lane]
}

// Lanes returns the names of occupied lanes, sorted.
func (s *Sequencer) Lanes() []string {
	names := make([]string, 0, len(s.lanes))
	for name := range s.lanes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FastCount returns how many fast-mode actions are still running.
func (s *Sequencer) FastCount() int {
	return len(s.oneShots)
}

// Reset abandons the main lane: its occupant is terminated and evicted.
// Other lanes, fast-mode work and resources are untouched. A main lane
// placement that is still executing when Reset runs is dropped.
func (s *Sequencer) Reset() {
	s.resetInExecute[MainLane] = true
	s.record(trace.Event{Kind: trace.KindReset, Lane: MainLane})
	if a, ok := s.lanes[MainLane]; ok {
		delete(s.lanes, MainLane)
		a.Terminate()
		delete(s.resetInExecute, MainLane)
	}
}

// Terminate stops everything: every lane occupant and every fast-mode
// action is terminated, all maps are cleared and further work is
// rejected. Lanes are terminated in name order.
func (s *Sequencer) Terminate() {
	if s.terminated {
		return
	}
	s.logger.Debug("sequencer terminate",
		"lanes", len(s.lanes),
		"fast", len(s.oneShots),
	)

	// Terminating an action can synchronously submit more work (a document
	// wrap-up, a finish-all group), so drain until nothing is left.
	for len(s.lanes) > 0 || len(s.oneShots) > 0 {
		for _, name := range s.Lanes() {
			a := s.lanes[name]
			delete(s.lanes, name)
			s.resetInExecute[name] = true
			a.Terminate()
		}
		shots := s.oneShots
		s.oneShots = nil
		for _, a := range shots {
			a.Terminate()
		}
	}

	clear(s.byAction)
	clear(s.byHolder)
	clear(s.resetInExecute)
	s.terminated = true
	s.record(trace.Event{Kind: trace.KindShutdown})
}

// evict terminates the occupant of lane. If terminating it synchronously
// placed new work on the same lane, that work keeps running as fast-mode
// work so the incoming placement does not cancel it.
func (s *Sequencer) evict(lane, by string) {
	old, ok := s.lanes[lane]
	if !ok {
		return
	}
	delete(s.lanes, lane)
	s.record(trace.Event{Kind: trace.KindPreempt, Lane: lane, Command: by, ActionID: s.actionID[old]})
	old.Terminate()

	if reentrant, ok := s.lanes[lane]; ok {
		delete(s.lanes, lane)
		s.trackFast(reentrant)
	}
}

func (s *Sequencer) install(lane string, a *action.Action, name string) {
	s.lanes[lane] = a
	id := s.track(a)
	s.record(trace.Event{Kind: trace.KindExecute, Lane: lane, Command: name, ActionID: id})
	if lane == MainLane {
		return
	}

	// Clear the lane when this action finishes, unless something newer
	// has taken it over by then.
	release := func() {
		if s.lanes[lane] == a {
			delete(s.lanes, lane)
		}
	}
	a.Then(func(*action.Action) { release() })
	a.AddTerminateCallback(release)
}

func (s *Sequencer) executeFast(cmd command.Command) {
	a := cmd.Execute(true)
	if a == nil || !a.IsPending() {
		s.record(trace.Event{Kind: trace.KindFast, Command: cmd.Name()})
		return
	}
	s.trackFast(a)
	s.record(trace.Event{Kind: trace.KindFast, Command: cmd.Name(), ActionID: s.actionID[a]})
}

func (s *Sequencer) trackFast(a *action.Action) {
	s.oneShots = append(s.oneShots, a)
	s.track(a)
	drop := func(kind trace.Kind) {
		for i, shot := range s.oneShots {
			if shot == a {
				s.oneShots = append(s.oneShots[:i], s.oneShots[i+1:]...)
				break
			}
		}
		s.finished(a, kind, "")
	}
	a.Then(func(*action.Action) { drop(trace.KindComplete) })
	a.AddTerminateCallback(func() { drop(trace.KindTerminate) })
}

func (s *Sequencer) track(a *action.Action) string {
	if id, ok := s.actionID[a]; ok {
		return id
	}
	id := s.ids.Generate()
	s.actionID[a] = id
	return id
}

func (s *Sequencer) finished(a *action.Action, kind trace.Kind, lane string) {
	id, ok := s.actionID[a]
	if !ok {
		return
	}
	delete(s.actionID, a)
	s.record(trace.Event{Kind: kind, Lane: lane, ActionID: id})
}

func (s *Sequencer) record(ev trace.Event) {
	if s.observer != nil {
		s.observer.Record(ev)
	}
}

// ClaimResource makes a the holder of res. Any current holder of res is
// released first (see ReleaseResource).
func (s *Sequencer) ClaimResource(res Resource, a *action.Action) {
	if s.terminated || a == nil {
		return
	}
	s.ReleaseResource(res)
	s.byAction[res] = a
	s.record(trace.Event{Kind: trace.KindClaim, Resource: res.String(), ActionID: s.actionID[a]})
}

// ClaimResourceForHolder makes h the holder of res. Any current holder of
// res is released first.
func (s *Sequencer) ClaimResourceForHolder(res Resource, h Holder) {
	if s.terminated || h == nil {
		return
	}
	s.ReleaseResource(res)
	s.byHolder[res] = h
	s.record(trace.Event{Kind: trace.KindClaim, Resource: res.String()})
}

// ReleaseResource evicts the holder of res. With resource arbitration
// enabled an action holder is terminated and a Holder is told through
// OnResourceLoss. Either way every resource the holder owned is released.
// Releasing an unheld resource does nothing.
func (s *Sequencer) ReleaseResource(res Resource) {
	if s.terminated {
		return
	}

	for r, a := range s.byAction {
		if !a.IsPending() {
			delete(s.byAction, r)
		}
	}

	if a, ok := s.byAction[res]; ok {
		s.record(trace.Event{Kind: trace.KindRelease, Resource: res.String(), ActionID: s.actionID[a]})
		s.ReleaseRelatedResources(a)
		if s.resources {
			a.Terminate()
		}
	}

	if h, ok := s.byHolder[res]; ok {
		s.record(trace.Event{Kind: trace.KindRelease, Resource: res.String()})
		s.releaseHolder(h)
		if s.resources {
			h.OnResourceLoss()
		}
	}
}

// ReleaseRelatedResources drops every resource held by a without
// terminating it.
func (s *Sequencer) ReleaseRelatedResources(a *action.Action) {
	if s.terminated {
		return
	}
	for r, held := range s.byAction {
		if held == a || !held.IsPending() {
			delete(s.byAction, r)
		}
	}
}

func (s *Sequencer) releaseHolder(h Holder) {
	for r, held := range s.byHolder {
		if held == h {
			delete(s.byHolder, r)
		}
	}
}

// HolderOf returns the live action holding res, if any.
func (s *Sequencer) HolderOf(res Resource) (*action.Action, bool) {
	a, ok := s.byAction[res]
	if ok && !a.IsPending() {
		return nil, false
	}
	return a, ok
}

// HeldResources returns how many resources are currently held by actions
// and holders together.
func (s *Sequencer) HeldResources() int {
	n := len(s.byHolder)
	for _, a := range s.byAction {
		if a.IsPending() {
			n++
		}
	}
	return n
}
