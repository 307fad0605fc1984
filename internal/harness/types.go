package harness

import (
	"fmt"
	"math"

	"github.com/roach88/scrawl/internal/engine"
	"github.com/roach88/scrawl/internal/store"
	"github.com/roach88/scrawl/internal/trace"
)

// Tolerance bounds the difference between an expected and an actual float.
const Tolerance = 1e-9

// Result is the outcome of a test scenario execution.
type Result struct {
	// Scenario is the scenario name.
	Scenario string `json:"scenario"`

	// Pass indicates overall test success.
	// True if the outcome matched Expect and every assertion held.
	Pass bool `json:"pass"`

	// RunID is the stored run.
	RunID string `json:"run_id"`

	// Fault is the runtime error code, empty when the run succeeded.
	Fault string `json:"fault,omitempty"`

	// Trace is the run's trace as read back from the store.
	Trace []trace.Event `json:"trace"`

	// Proposals is the proposal table as read back from the store.
	Proposals []store.Proposal `json:"proposals"`

	// Yielded holds the yielded values; empty when the run faulted.
	Yielded []engine.Scalar `json:"-"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(scenario string) *Result {
	return &Result{
		Scenario:  scenario,
		Pass:      true,
		Trace:     []trace.Event{},
		Proposals: []store.Proposal{},
		Yielded:   []engine.Scalar{},
		Errors:    []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddErrorf formats and adds a validation error.
func (r *Result) AddErrorf(format string, args ...any) {
	r.AddError(fmt.Sprintf(format, args...))
}

// toScalar converts a YAML number into a scalar: integers stay integers.
func toScalar(v any) (engine.Scalar, error) {
	switch n := v.(type) {
	case int:
		return engine.IntScalar(int64(n)), nil
	case int64:
		return engine.IntScalar(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return engine.Scalar{}, fmt.Errorf("%d overflows int64", n)
		}
		return engine.IntScalar(int64(n)), nil
	case float64:
		return engine.FloatScalar(n), nil
	default:
		return engine.Scalar{}, fmt.Errorf("%v (%T) is not a number", v, v)
	}
}

// scalarMatches compares kind exactly and floats within Tolerance.
func scalarMatches(want, got engine.Scalar) bool {
	if want.IsFloat() != got.IsFloat() {
		return false
	}
	if !want.IsFloat() {
		return want.Int() == got.Int()
	}
	w, g := want.Float(), got.Float()
	if math.IsNaN(w) || math.IsNaN(g) {
		return math.IsNaN(w) && math.IsNaN(g)
	}
	return w == g || math.Abs(w-g) <= Tolerance
}
