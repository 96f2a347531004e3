package testutil

import (
	"time"

	"github.com/roach88/docrun/internal/action"
	"github.com/roach88/docrun/internal/timer"
)

// FakeCommand is a scriptable command for sequencing tests.
//
// Every lifecycle call is written to the Journal as "prepare:NAME",
// "execute:NAME" (or "execute-fast:NAME") and "complete:NAME". With a
// positive Work duration Execute returns an action that resolves after
// that long; otherwise Execute returns nil.
type FakeCommand struct {
	CommandName string
	DelayValue  time.Duration
	Lane        string
	Work        time.Duration

	Timers    timer.Timers
	Journal   *Journal
	OnExecute func(fastMode bool)

	Prepared  int
	Executed  int
	Completed int
	Last      *action.Action
}

// NewFakeCommand creates a command named name that journals into j.
func NewFakeCommand(timers timer.Timers, j *Journal, name string) *FakeCommand {
	return &FakeCommand{CommandName: name, Timers: timers, Journal: j}
}

// WithDelay sets the declared delay.
func (c *FakeCommand) WithDelay(d time.Duration) *FakeCommand {
	c.DelayValue = d
	return c
}

// WithWork makes Execute return an action resolving after d.
func (c *FakeCommand) WithWork(d time.Duration) *FakeCommand {
	c.Work = d
	return c
}

// OnLane sets the explicit lane.
func (c *FakeCommand) OnLane(lane string) *FakeCommand {
	c.Lane = lane
	return c
}

func (c *FakeCommand) Delay() time.Duration { return c.DelayValue }
func (c *FakeCommand) Name() string         { return c.CommandName }
func (c *FakeCommand) Sequencer() string    { return c.Lane }

func (c *FakeCommand) Prepare() {
	c.Prepared++
	c.log("prepare")
}

func (c *FakeCommand) Complete() {
	c.Completed++
	c.log("complete")
}

func (c *FakeCommand) Execute(fastMode bool) *action.Action {
	c.Executed++
	if fastMode {
		c.log("execute-fast")
	} else {
		c.log("execute")
	}
	if c.OnExecute != nil {
		c.OnExecute(fastMode)
	}
	if c.Work <= 0 {
		c.Last = nil
		return nil
	}
	c.Last = action.MakeDelayed(c.Timers, c.Work, nil)
	return c.Last
}

func (c *FakeCommand) log(step string) {
	if c.Journal != nil {
		c.Journal.Add(step + ":" + c.CommandName)
	}
}
