package command_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docrun/internal/command"
)

func sequential(f *fixture, commands, catch, finally []command.Description, repeat int) *command.SequentialCommand {
	return command.NewSequentialCommand(f.ctx, f.props("Sequential"), commands, catch, finally, repeat)
}

func TestSequential_RepeatRunsAllPasses(t *testing.T) {
	f := newFixture(t)
	cmd := sequential(f, []command.Description{fake("C1", 10), fake("C2", 10)}, nil, nil, 1)

	a := f.seq.Execute(cmd, false)
	f.loop.AdvanceToEnd()

	assert.True(t, a.IsResolved())
	assert.Equal(t, []string{"execute:C1", "execute:C2", "execute:C1", "execute:C2"}, f.journal.Filter("execute"))
}

func TestSequential_TerminateInSecondPass(t *testing.T) {
	f := newFixture(t)
	cmd := sequential(f, []command.Description{fake("C1", 10), fake("C2", 10)}, nil, nil, 1)

	a := f.seq.Execute(cmd, false)
	// C1 runs 0-10, C2 10-20, second C1 starts at 20.
	f.loop.AdvanceBy(25 * ms)
	require.Equal(t, []string{"execute:C1", "execute:C2", "execute:C1"}, f.journal.Filter("execute"))

	f.seq.Reset()
	f.loop.AdvanceToEnd()

	assert.True(t, a.IsTerminated())
	assert.Equal(t, 0, f.seq.FastCount(), "empty finally clause submits nothing")
	assert.Equal(t, []string{"execute:C1", "execute:C2", "execute:C1"}, f.journal.Filter("execute"))
}

func TestSequential_FinallyRunsAfterMain(t *testing.T) {
	f := newFixture(t)
	cmd := sequential(f,
		[]command.Description{fake("main", 10)},
		[]command.Description{fake("catch", 0)},
		[]command.Description{fake("fin1", 10), fake("fin2", 0)},
		0,
	)

	a := f.seq.Execute(cmd, false)
	f.loop.AdvanceToEnd()

	assert.True(t, a.IsResolved())
	assert.Equal(t, []string{"execute:main", "execute:fin1", "execute:fin2"}, f.journal.Filter("execute"))
}

func TestSequential_TerminateRunsCatchThenFinallyInFastMode(t *testing.T) {
	f := newFixture(t)
	cmd := sequential(f,
		[]command.Description{fake("main", 100), fake("never", 0)},
		[]command.Description{fake("catch1", 0), fake("catch2", 0)},
		[]command.Description{fake("fin", 0)},
		0,
	)

	f.seq.Execute(cmd, false)
	f.loop.AdvanceBy(50 * ms)
	f.seq.Reset()

	// No loop advance: the group runs synchronously.
	assert.Equal(t, []string{
		"execute:main",
		"execute-fast:catch1",
		"execute-fast:catch2",
		"execute-fast:fin",
	}, f.journal.Filter("execute"))
}

func TestSequential_TerminateDuringFinallyRunsOnlyRemaining(t *testing.T) {
	f := newFixture(t)
	cmd := sequential(f,
		[]command.Description{fake("main", 0)},
		[]command.Description{fake("catch", 0)},
		[]command.Description{fake("fin1", 100), fake("fin2", 0), fake("fin3", 0)},
		0,
	)

	a := f.seq.Execute(cmd, false)
	f.loop.AdvanceBy(50 * ms)
	require.Equal(t, []string{"execute:main", "execute:fin1"}, f.journal.Filter("execute"))

	f.seq.Reset()

	assert.True(t, a.IsTerminated())
	assert.Equal(t, []string{
		"execute:main",
		"execute:fin1",
		"execute-fast:fin2",
		"execute-fast:fin3",
	}, f.journal.Filter("execute"))
	assert.Equal(t, []string{"complete:main", "complete:fin1", "complete:fin2", "complete:fin3"}, f.journal.Filter("complete"))
}

func TestSequential_FromDescription(t *testing.T) {
	f := newFixture(t)
	desc := command.Description{
		"type":        "Sequential",
		"repeatCount": 2,
		"commands":    map[string]any{"type": "Fake", "name": "only"},
		"finally":     []any{map[string]any{"type": "Fake", "name": "done"}},
	}

	f.seq.ExecuteCommands(f.ctx, []command.Description{desc}, nil, "", true)

	assert.Equal(t, []string{
		"execute-fast:only", "execute-fast:only", "execute-fast:only", "execute-fast:done",
	}, f.journal.Filter("execute"))
}

func TestSequential_EmptyResolves(t *testing.T) {
	f := newFixture(t)
	a := sequential(f, nil, nil, nil, 3).Execute(false)
	require.NotNil(t, a)
	assert.True(t, a.IsResolved())
}
