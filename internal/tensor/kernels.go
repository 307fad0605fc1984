package tensor

import (
	"fmt"
	"math"
)

// NormMode selects the norm Normalize divides by.
type NormMode int

const (
	L1 NormMode = iota
	L2
	Max
)

func (m NormMode) String() string {
	switch m {
	case L1:
		return "l1"
	case L2:
		return "l2"
	case Max:
		return "max"
	default:
		return fmt.Sprintf("norm(%d)", int(m))
	}
}

// ComposeMode selects how Compose combines two tensors.
type ComposeMode int

const (
	Add ComposeMode = iota
	Mul
	Dot
)

func (m ComposeMode) String() string {
	switch m {
	case Add:
		return "add"
	case Mul:
		return "mul"
	case Dot:
		return "dot"
	default:
		return fmt.Sprintf("compose(%d)", int(m))
	}
}

// Normalize scales each row of t (the whole vector for rank 1) to unit norm.
// Rows whose norm is zero are left as they are.
func Normalize(t Tensor, mode NormMode) (Tensor, error) {
	out := t.Clone()
	rows, cols := out.Rows()
	for r := 0; r < rows; r++ {
		row := out.Data[r*cols : (r+1)*cols]
		var n float64
		switch mode {
		case L1:
			for _, v := range row {
				n += math.Abs(v)
			}
		case L2:
			for _, v := range row {
				n += v * v
			}
			n = math.Sqrt(n)
		case Max:
			for _, v := range row {
				n = math.Max(n, math.Abs(v))
			}
		default:
			return Tensor{}, fmt.Errorf("unknown norm mode %d", int(mode))
		}
		if n == 0 {
			continue
		}
		for i := range row {
			row[i] /= n
		}
	}
	return out, nil
}

// Compose combines a and b. Add and Mul are element-wise and need equal
// shapes. Dot is the inner product of two vectors (shape [1]) or the matrix
// product a·b when a is [m,n] and b is [n,p] or [n].
func Compose(a, b Tensor, mode ComposeMode) (Tensor, error) {
	switch mode {
	case Add, Mul:
		if !a.SameShape(b) {
			return Tensor{}, fmt.Errorf("%w: %s %v and %v", ErrShape, mode, a.Shape, b.Shape)
		}
		out := a.Clone()
		for i := range out.Data {
			if mode == Add {
				out.Data[i] += b.Data[i]
			} else {
				out.Data[i] *= b.Data[i]
			}
		}
		return out, nil
	case Dot:
		return dot(a, b)
	default:
		return Tensor{}, fmt.Errorf("unknown compose mode %d", int(mode))
	}
}

func dot(a, b Tensor) (Tensor, error) {
	switch {
	case a.Rank() == 1 && b.Rank() == 1:
		if a.Len() != b.Len() {
			return Tensor{}, fmt.Errorf("%w: dot %v and %v", ErrShape, a.Shape, b.Shape)
		}
		var s float64
		for i := range a.Data {
			s += a.Data[i] * b.Data[i]
		}
		return Tensor{Data: []float64{s}, Shape: []int{1}}, nil
	case a.Rank() == 2 && b.Rank() == 1:
		m, n := a.Shape[0], a.Shape[1]
		if b.Len() != n {
			return Tensor{}, fmt.Errorf("%w: dot %v and %v", ErrShape, a.Shape, b.Shape)
		}
		out := Zeros(m)
		for i := 0; i < m; i++ {
			for k := 0; k < n; k++ {
				out.Data[i] += a.Data[i*n+k] * b.Data[k]
			}
		}
		return out, nil
	case a.Rank() == 2 && b.Rank() == 2:
		m, n, p := a.Shape[0], a.Shape[1], b.Shape[1]
		if b.Shape[0] != n {
			return Tensor{}, fmt.Errorf("%w: dot %v and %v", ErrShape, a.Shape, b.Shape)
		}
		return matmul(a.Data, b.Data, m, n, p), nil
	default:
		return Tensor{}, fmt.Errorf("%w: dot needs rank 1 or 2, got %v and %v", ErrShape, a.Shape, b.Shape)
	}
}

func matmul(a, b []float64, m, n, p int) Tensor {
	out := Zeros(m, p)
	for i := 0; i < m; i++ {
		for k := 0; k < n; k++ {
			aik := a[i*n+k]
			for j := 0; j < p; j++ {
				out.Data[i*p+j] += aik * b[k*p+j]
			}
		}
	}
	return out
}

// Attention computes softmax(q·kᵀ / sqrt(d))·v. q is [m,d], k is [n,d] and
// v is [n,e]; vectors are treated as single rows. The result is [m,e].
func Attention(q, k, v Tensor) (Tensor, error) {
	m, d := q.Rows()
	n, dk := k.Rows()
	nv, e := v.Rows()
	if d != dk || n != nv || m == 0 || n == 0 || d == 0 {
		return Tensor{}, fmt.Errorf("%w: attention q%v k%v v%v", ErrShape, q.Shape, k.Shape, v.Shape)
	}

	scale := 1 / math.Sqrt(float64(d))
	weights := make([]float64, n)
	out := Zeros(m, e)
	for i := 0; i < m; i++ {
		qi := q.Data[i*d : (i+1)*d]
		maxScore := math.Inf(-1)
		for j := 0; j < n; j++ {
			kj := k.Data[j*d : (j+1)*d]
			var s float64
			for c := range qi {
				s += qi[c] * kj[c]
			}
			weights[j] = s * scale
			maxScore = math.Max(maxScore, weights[j])
		}
		var z float64
		for j := range weights {
			weights[j] = math.Exp(weights[j] - maxScore)
			z += weights[j]
		}
		row := out.Data[i*e : (i+1)*e]
		for j := 0; j < n; j++ {
			w := weights[j] / z
			vj := v.Data[j*e : (j+1)*e]
			for c := range row {
				row[c] += w * vj[c]
			}
		}
	}
	return out, nil
}

// SelfAttention is Attention(x, x, x).
func SelfAttention(x Tensor) (Tensor, error) {
	return Attention(x, x, x)
}
