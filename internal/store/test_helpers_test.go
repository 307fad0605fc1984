package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scrawl/internal/engine"
	"github.com/roach88/scrawl/internal/isa"
)

// createTestStore opens a store in a temp dir with a mock clock set to a
// fixed instant.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, _ := createTestStoreWithClock(t)
	return s
}

func createTestStoreWithClock(t *testing.T) (*Store, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithClock(mock))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, mock
}

// supermajority proposes to three agents, has two approve and one reject,
// and commits under a 2/3 quorum.
func supermajority() []isa.Instruction {
	return []isa.Instruction{
		isa.MustNew(isa.OpLoad, isa.R(0), isa.Int(7)),
		isa.MustNew(isa.OpPropose, isa.Int(1), isa.R(0), isa.Agents{0, 1, 2}),
		isa.MustNew(isa.OpQuorum, isa.Int(1), isa.Float(0.66)),
		isa.MustNew(isa.OpVote, isa.Int(1), isa.Int(0), isa.VoteApprove),
		isa.MustNew(isa.OpVote, isa.Int(1), isa.Int(1), isa.VoteApprove),
		isa.MustNew(isa.OpVote, isa.Int(1), isa.Int(2), isa.VoteReject),
		isa.MustNew(isa.OpCommit, isa.Int(1), isa.R(1)),
		isa.MustNew(isa.OpYield, isa.R(1)),
		isa.MustNew(isa.OpLoad, isa.R(2), isa.Float(2.5)),
		isa.MustNew(isa.OpYield, isa.R(2)),
		isa.MustNew(isa.OpHalt),
	}
}

// execute runs prog on a fresh VM named id and captures the record.
func execute(t *testing.T, id string, prog []isa.Instruction) Record {
	t.Helper()
	vm := engine.New(engine.WithRunIDGenerator(engine.NewFixedGenerator(id)))
	res, err := vm.Execute(prog)
	rec, cerr := Capture(vm, prog, res, err)
	require.NoError(t, cerr)
	return rec
}

// faulting derives with depth 0 at instruction 1.
func faulting() []isa.Instruction {
	return []isa.Instruction{
		isa.MustNew(isa.OpLoad, isa.R(0), isa.Int(1)),
		isa.MustNew(isa.OpDerive, isa.CR(0), isa.Int(1), isa.Int(0)),
	}
}
