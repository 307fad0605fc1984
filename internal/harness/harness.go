package harness

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/scrawl/internal/engine"
	"github.com/roach88/scrawl/internal/identity"
	"github.com/roach88/scrawl/internal/isa"
	"github.com/roach88/scrawl/internal/rosetta"
	"github.com/roach88/scrawl/internal/store"
	"github.com/roach88/scrawl/internal/tensor"
	"github.com/roach88/scrawl/internal/testutil"
	"github.com/roach88/scrawl/internal/trace"
)

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Compile the program (with the scenario's macros)
// 2. Seed registers from Setup
// 3. Execute and store the run
// 4. Read the trace and proposals back from the store
// 5. Check Expect and evaluate assertions
//
// The error return is for scenarios that cannot run at all; a run that
// misbehaves is a failing Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a context for the store operations.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	prog, err := compile(scenario)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	st, err := store.Open(":memory:", store.WithClock(testutil.FrozenClock()))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	vm := engine.New(
		engine.WithAgentID(scenario.Agent),
		engine.WithClock(testutil.FrozenClock()),
		engine.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(testutil.ScenarioRunID(scenario.Name))),
	)
	if err := seed(vm, scenario.Setup); err != nil {
		return nil, fmt.Errorf("scenario %s: setup: %w", scenario.Name, err)
	}

	res, runErr := vm.Execute(prog)
	rec, err := store.Capture(vm, prog, res, runErr)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	if _, err := st.WriteRun(ctx, rec); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	result := NewResult(scenario.Name)
	result.RunID = rec.Run.ID
	result.Fault = rec.Run.ErrorCode
	result.Yielded = rec.Run.Yielded
	if result.Trace, err = st.ReadTrace(ctx, rec.Run.ID, trace.Debug); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	if result.Proposals, err = st.ReadProposals(ctx, rec.Run.ID); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	checkExpect(result, scenario.Expect, rec.Run, vm)
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	slog.Debug("scenario complete",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"events", len(result.Trace),
	)
	return result, nil
}

// RunAll runs scenarios concurrently, at most workers at a time (workers
// <= 0 means GOMAXPROCS). Results keep the order of scenarios. The first
// scenario that cannot run cancels the rest.
func RunAll(ctx context.Context, scenarios []*Scenario, workers int) ([]*Result, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]*Result, len(scenarios))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, s := range scenarios {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := RunContext(ctx, s)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func compile(s *Scenario) ([]isa.Instruction, error) {
	reg := rosetta.NewRegistry()
	for _, dir := range s.Macros {
		if _, err := reg.LoadDir(dir); err != nil {
			return nil, fmt.Errorf("macros: %w", err)
		}
	}
	out, err := rosetta.Compile(s.Program, rosetta.Options{Strict: true, Registry: reg})
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	return out.Program, nil
}

func seed(vm *engine.VM, setup Setup) error {
	for _, sc := range setup.Scalars {
		reg, _ := isa.ParseReg(sc.Reg)
		v, err := toScalar(sc.Value)
		if err != nil {
			return err
		}
		if err := vm.SetReg(reg.Index, v); err != nil {
			return err
		}
	}
	for _, bs := range setup.Baselines {
		reg, _ := isa.ParseReg(bs.Reg)
		b, err := identity.Derive(bs.Seed, bs.Depth)
		if err != nil {
			return err
		}
		if bs.Tamper != nil {
			b = b.Tamper(*bs.Tamper)
		}
		if err := vm.SetBaseline(reg.Index, b); err != nil {
			return err
		}
	}
	for _, ts := range setup.Tensors {
		reg, _ := isa.ParseReg(ts.Reg)
		t, err := tensor.New(ts.Data, ts.Shape...)
		if err != nil {
			return fmt.Errorf("%s: %w", ts.Reg, err)
		}
		if err := vm.SetTReg(reg.Index, t); err != nil {
			return err
		}
	}
	return nil
}

func checkExpect(result *Result, want Expect, run store.Run, vm *engine.VM) {
	if run.ErrorCode != want.Error {
		switch {
		case want.Error == "":
			result.AddErrorf("expected success, run faulted: %s", run.ErrorMessage)
		case run.ErrorCode == "":
			result.AddErrorf("expected fault %s, run succeeded", want.Error)
		default:
			result.AddErrorf("expected fault %s, got %s", want.Error, run.ErrorMessage)
		}
	}

	if want.Halted != nil && *want.Halted != run.Halted {
		result.AddErrorf("expected halted=%t, got %t", *want.Halted, run.Halted)
	}

	if want.Yielded != nil {
		if got := formatScalars(run.Yielded); !yieldedMatch(want.Yielded, run.Yielded) {
			result.AddErrorf("expected yielded %v, got %s", want.Yielded, got)
		}
	}

	for name, v := range want.Registers {
		reg, _ := isa.ParseReg(name)
		expected, _ := toScalar(v)
		if got := vm.GetReg(reg.Index); !scalarMatches(expected, got) {
			result.AddErrorf("expected %s = %s, got %s", name, expected, got)
		}
	}

	for name, te := range want.Tensors {
		reg, _ := isa.ParseReg(name)
		got := vm.TReg(reg.Index)
		if err := tensorMatches(te, got); err != nil {
			result.AddErrorf("%s: %v", name, err)
		}
	}
}

func yieldedMatch(want []any, got []engine.Scalar) bool {
	if len(want) != len(got) {
		return false
	}
	for i, v := range want {
		s, _ := toScalar(v)
		if !scalarMatches(s, got[i]) {
			return false
		}
	}
	return true
}

func tensorMatches(want TensorExpect, got tensor.Tensor) error {
	if !slices.Equal(want.Shape, got.Shape) {
		return fmt.Errorf("expected shape %v, got %v", want.Shape, got.Shape)
	}
	if len(want.Data) != len(got.Data) {
		return fmt.Errorf("expected %d elements, got %d", len(want.Data), len(got.Data))
	}
	for i := range want.Data {
		if !scalarMatches(engine.FloatScalar(want.Data[i]), engine.FloatScalar(got.Data[i])) {
			return fmt.Errorf("element %d: expected %g, got %g", i, want.Data[i], got.Data[i])
		}
	}
	return nil
}

func formatScalars(values []engine.Scalar) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}
