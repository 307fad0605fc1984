// Package tensor holds the flat float64 tensors kept in TR registers and the
// kernels the tensor and attention opcodes run on them.
package tensor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrShape is returned when operand shapes do not fit an operation.
var ErrShape = errors.New("shape mismatch")

// Tensor is a row-major buffer with a shape. The zero value is the empty
// tensor held by unset registers.
type Tensor struct {
	Data  []float64
	Shape []int
}

// New checks that shape covers data exactly. A nil shape means a vector of
// len(data). Both slices are copied.
func New(data []float64, shape ...int) (Tensor, error) {
	if len(shape) == 0 {
		shape = []int{len(data)}
	}
	n := 1
	for _, d := range shape {
		if d < 0 {
			return Tensor{}, fmt.Errorf("%w: negative dimension in %v", ErrShape, shape)
		}
		n *= d
	}
	if n != len(data) {
		return Tensor{}, fmt.Errorf("%w: shape %v needs %d values, got %d", ErrShape, shape, n, len(data))
	}
	return Tensor{
		Data:  append([]float64(nil), data...),
		Shape: append([]int(nil), shape...),
	}, nil
}

// MustNew is like New but panics on error.
func MustNew(data []float64, shape ...int) Tensor {
	t, err := New(data, shape...)
	if err != nil {
		panic(err)
	}
	return t
}

// Zeros allocates a zero tensor.
func Zeros(shape ...int) Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return Tensor{Data: make([]float64, n), Shape: append([]int(nil), shape...)}
}

// Clone returns a deep copy.
func (t Tensor) Clone() Tensor {
	if t.Data == nil && t.Shape == nil {
		return Tensor{}
	}
	return Tensor{
		Data:  append([]float64(nil), t.Data...),
		Shape: append([]int(nil), t.Shape...),
	}
}

// Len returns the number of elements.
func (t Tensor) Len() int { return len(t.Data) }

// Rank returns the number of dimensions.
func (t Tensor) Rank() int { return len(t.Shape) }

// IsEmpty reports whether t holds no elements.
func (t Tensor) IsEmpty() bool { return len(t.Data) == 0 }

// SameShape reports whether t and o have identical shapes.
func (t Tensor) SameShape(o Tensor) bool {
	if len(t.Shape) != len(o.Shape) {
		return false
	}
	for i := range t.Shape {
		if t.Shape[i] != o.Shape[i] {
			return false
		}
	}
	return true
}

// Equal compares shape and values exactly.
func (t Tensor) Equal(o Tensor) bool {
	if !t.SameShape(o) || len(t.Data) != len(o.Data) {
		return false
	}
	for i := range t.Data {
		if t.Data[i] != o.Data[i] {
			return false
		}
	}
	return true
}

// AddInPlace adds o element-wise into t and returns t for chaining.
func (t *Tensor) AddInPlace(o Tensor) (*Tensor, error) {
	if !t.SameShape(o) {
		return t, fmt.Errorf("%w: add %v and %v", ErrShape, t.Shape, o.Shape)
	}
	for i := range t.Data {
		t.Data[i] += o.Data[i]
	}
	return t, nil
}

// ScaleInPlace multiplies every element by f and returns t for chaining.
func (t *Tensor) ScaleInPlace(f float64) *Tensor {
	for i := range t.Data {
		t.Data[i] *= f
	}
	return t
}

// Rows views t as a matrix: rank-1 tensors are a single row, rank-2 are
// themselves. Higher ranks fold leading dimensions into rows.
func (t Tensor) Rows() (rows, cols int) {
	switch len(t.Shape) {
	case 0:
		return 0, 0
	case 1:
		return 1, t.Shape[0]
	default:
		cols = t.Shape[len(t.Shape)-1]
		if cols == 0 {
			return 0, 0
		}
		return len(t.Data) / cols, cols
	}
}

func (t Tensor) String() string {
	parts := make([]string, len(t.Data))
	for i, v := range t.Data {
		parts[i] = strconv.FormatFloat(v, 'g', 6, 64)
	}
	return fmt.Sprintf("tensor%v[%s]", t.Shape, strings.Join(parts, ", "))
}
