package engine

import (
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/roach88/scrawl/internal/identity"
	"github.com/roach88/scrawl/internal/isa"
	"github.com/roach88/scrawl/internal/tensor"
)

// Scalar is the value of one R register: an int64 or a float64. The zero
// value is integer 0, which is what unset registers read as.
type Scalar struct {
	i       int64
	f       float64
	isFloat bool
}

// IntScalar wraps an integer.
func IntScalar(v int64) Scalar { return Scalar{i: v} }

// FloatScalar wraps a float.
func FloatScalar(v float64) Scalar { return Scalar{f: v, isFloat: true} }

// IsFloat reports whether s holds a float.
func (s Scalar) IsFloat() bool { return s.isFloat }

// Int returns the integer value, truncating a float toward zero.
func (s Scalar) Int() int64 {
	if s.isFloat {
		return int64(s.f)
	}
	return s.i
}

// Float returns the value widened to float64.
func (s Scalar) Float() float64 {
	if s.isFloat {
		return s.f
	}
	return float64(s.i)
}

// Word returns the 64-bit word a scalar contributes as a proposal payload:
// the integer itself, or the IEEE-754 bits of a float.
func (s Scalar) Word() int64 {
	if s.isFloat {
		return int64(math.Float64bits(s.f))
	}
	return s.i
}

// Equal compares kind and value. Floats compare by bits.
func (s Scalar) Equal(o Scalar) bool {
	if s.isFloat != o.isFloat {
		return false
	}
	if s.isFloat {
		return math.Float64bits(s.f) == math.Float64bits(o.f)
	}
	return s.i == o.i
}

// Value returns the scalar as int64 or float64 for canonical JSON.
func (s Scalar) Value() any {
	if s.isFloat {
		return s.f
	}
	return s.i
}

func (s Scalar) String() string {
	if s.isFloat {
		return strconv.FormatFloat(s.f, 'g', -1, 64)
	}
	return strconv.FormatInt(s.i, 10)
}

// Limits bounds the register indices each bank accepts.
type Limits struct {
	Scalar   int `yaml:"scalar"`
	Baseline int `yaml:"baseline"`
	Tensor   int `yaml:"tensor"`
}

// DefaultLimits is the modeled register range.
var DefaultLimits = Limits{Scalar: 256, Baseline: 16, Tensor: 16}

// Validate rejects non-positive bank sizes and sizes past the operand range.
func (l Limits) Validate() error {
	for _, b := range []struct {
		name string
		n    int
	}{{"scalar", l.Scalar}, {"baseline", l.Baseline}, {"tensor", l.Tensor}} {
		if b.n < 1 || b.n > math.MaxUint16+1 {
			return fmt.Errorf("%s register limit %d outside [1, %d]", b.name, b.n, math.MaxUint16+1)
		}
	}
	return nil
}

func (l Limits) of(b isa.Bank) int {
	switch b {
	case isa.BankScalar:
		return l.Scalar
	case isa.BankBaseline:
		return l.Baseline
	case isa.BankTensor:
		return l.Tensor
	}
	return 0
}

// Registers is the three-bank register file. Reads of unset registers
// return the zero value of the bank; they never fail. Baselines and tensors
// are held by value: setters and getters copy.
type Registers struct {
	limits    Limits
	scalars   map[uint16]Scalar
	baselines map[uint16]identity.Baseline
	tensors   map[uint16]tensor.Tensor
}

// NewRegisters creates an empty register file with the given limits.
func NewRegisters(limits Limits) *Registers {
	return &Registers{
		limits:    limits,
		scalars:   make(map[uint16]Scalar),
		baselines: make(map[uint16]identity.Baseline),
		tensors:   make(map[uint16]tensor.Tensor),
	}
}

// Limits returns the bank sizes.
func (r *Registers) Limits() Limits { return r.limits }

// Check returns a MALFORMED_INSTRUCTION fault when reg is outside its
// bank's range.
func (r *Registers) Check(reg isa.Reg) error {
	if int(reg.Index) >= r.limits.of(reg.Bank) {
		return NewMalformedError(-1, fmt.Sprintf("register %s outside modeled range (%d %s registers)",
			reg, r.limits.of(reg.Bank), reg.Bank))
	}
	return nil
}

// Scalar reads R[i].
func (r *Registers) Scalar(i uint16) Scalar { return r.scalars[i] }

// SetScalar writes R[i].
func (r *Registers) SetScalar(i uint16, s Scalar) error {
	if err := r.Check(isa.R(i)); err != nil {
		return err
	}
	r.scalars[i] = s
	return nil
}

// Baseline reads CR[i]. Unset registers hold the zero baseline.
func (r *Registers) Baseline(i uint16) identity.Baseline { return r.baselines[i] }

// SetBaseline writes CR[i]. Baselines are immutable, so no copy is needed.
func (r *Registers) SetBaseline(i uint16, b identity.Baseline) error {
	if err := r.Check(isa.CR(i)); err != nil {
		return err
	}
	r.baselines[i] = b
	return nil
}

// Tensor returns a copy of TR[i]. Unset registers hold the empty tensor.
func (r *Registers) Tensor(i uint16) tensor.Tensor { return r.tensors[i].Clone() }

// SetTensor stores a copy of t in TR[i]. A shape that does not cover the
// data exactly is an INVALID_PARAMETER fault and leaves TR[i] untouched; a
// nil shape stores t as a vector.
func (r *Registers) SetTensor(i uint16, t tensor.Tensor) error {
	if err := r.Check(isa.TR(i)); err != nil {
		return err
	}
	if len(t.Data) == 0 && len(t.Shape) == 0 {
		r.tensors[i] = tensor.Tensor{}
		return nil
	}
	checked, err := tensor.New(t.Data, t.Shape...)
	if err != nil {
		return NewInvalidParameterError(-1, fmt.Errorf("TR%d: %w", i, err))
	}
	r.tensors[i] = checked
	return nil
}

// ScalarIndices returns the set scalar registers in ascending order.
func (r *Registers) ScalarIndices() []uint16 { return sortedIndices(r.scalars) }

// BaselineIndices returns the set baseline registers in ascending order.
func (r *Registers) BaselineIndices() []uint16 { return sortedIndices(r.baselines) }

// TensorIndices returns the set tensor registers in ascending order.
func (r *Registers) TensorIndices() []uint16 { return sortedIndices(r.tensors) }

// Clone returns a deep copy.
func (r *Registers) Clone() *Registers {
	out := NewRegisters(r.limits)
	for i, s := range r.scalars {
		out.scalars[i] = s
	}
	for i, b := range r.baselines {
		out.baselines[i] = b
	}
	for i, t := range r.tensors {
		out.tensors[i] = t.Clone()
	}
	return out
}

// Reset clears every bank.
func (r *Registers) Reset() {
	clear(r.scalars)
	clear(r.baselines)
	clear(r.tensors)
}

func sortedIndices[V any](m map[uint16]V) []uint16 {
	out := make([]uint16, 0, len(m))
	for i := range m {
		out = append(out, i)
	}
	slices.Sort(out)
	return out
}
