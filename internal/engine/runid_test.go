package engine

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scrawl/internal/isa"
)

func TestUUIDv7Generator_ValidFormat(t *testing.T) {
	id := UUIDv7Generator{}.Generate()

	assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`, id)

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestUUIDv7Generator_Concurrent(t *testing.T) {
	gen := UUIDv7Generator{}
	const goroutines = 100

	ids := make(chan string, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- gen.Generate()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		require.False(t, seen[id], "duplicate run ID generated")
		seen[id] = true
	}
	assert.Len(t, seen, goroutines)
}

func TestFixedGenerator_Sequential(t *testing.T) {
	gen := NewFixedGenerator("run-1", "run-2", "run-3")

	assert.Equal(t, "run-1", gen.Generate())
	assert.Equal(t, "run-2", gen.Generate())
	assert.Equal(t, "run-3", gen.Generate())
	assert.Panics(t, func() { gen.Generate() }, "should panic when all IDs exhausted")
}

func TestFixedGenerator_Empty(t *testing.T) {
	assert.Panics(t, func() { NewFixedGenerator().Generate() })
}

func TestExecute_UsesRunIDGenerator(t *testing.T) {
	vm := New(WithRunIDGenerator(NewFixedGenerator("run-a", "run-b")))
	prog := []isa.Instruction{isa.MustNew(isa.OpHalt)}

	r1, err := vm.Execute(prog)
	require.NoError(t, err)
	r2, err := vm.Execute(prog)
	require.NoError(t, err)

	assert.Equal(t, "run-a", r1.RunID)
	assert.Equal(t, "run-b", r2.RunID)
}

func TestFaultCarriesRunID(t *testing.T) {
	vm := New(WithRunIDGenerator(NewFixedGenerator("run-x")))
	_, err := vm.Execute([]isa.Instruction{isa.MustNew(isa.OpDerive, isa.CR(0), isa.Int(1), isa.Int(0))})

	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "run-x", re.RunID)
}
