package command_test

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/roach88/docrun/internal/command"
	"github.com/roach88/docrun/internal/sequencer"
	"github.com/roach88/docrun/internal/testutil"
	"github.com/roach88/docrun/internal/timer"
)

const ms = time.Millisecond

type fixture struct {
	loop    *timer.Loop
	seq     *sequencer.Sequencer
	reg     *command.Registry
	ctx     *command.Context
	journal *testutil.Journal
	events  []command.Event
	logs    *bytes.Buffer
}

// newFixture wires a loop, sequencer and registry with the builtins plus a
// "Fake" type: {type: Fake, name: n, work: ms} journals its lifecycle.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		loop:    timer.NewLoop(),
		journal: testutil.NewJournal(),
		logs:    &bytes.Buffer{},
	}
	logger := slog.New(slog.NewTextHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f.seq = sequencer.New(f.loop, "1.4", sequencer.WithLogger(logger))
	f.reg = command.NewRegistry(logger)
	command.RegisterBuiltins(f.reg)
	f.reg.Register("Fake", func(ctx *command.Context, props command.Properties, desc command.Description) (command.Command, error) {
		c := testutil.NewFakeCommand(ctx.Timers, f.journal, desc.String("name", props.Type))
		c.DelayValue = props.Delay
		c.Lane = props.Sequencer
		return c.WithWork(desc.Millis("work")), nil
	})
	f.ctx = &command.Context{
		Timers:    f.loop,
		Sequencer: f.seq,
		Inflater:  f.reg,
		Events:    command.EventSinkFunc(func(ev command.Event) { f.events = append(f.events, ev) }),
		Logger:    logger,
	}
	return f
}

func fake(name string, workMS int) command.Description {
	return command.Description{"type": "Fake", "name": name, "work": workMS}
}

func (f *fixture) props(typ string) command.Properties {
	return command.Properties{Type: typ, Scope: command.NewScope(nil)}
}
