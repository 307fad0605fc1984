package identity

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Verify checks a baseline in O(depth) additions: the root must match the
// inputs, chain[0] must be root^2 and every later element must follow from
// its predecessor by the gnomon identity.
func Verify(b Baseline) bool {
	if b.depth < 1 || b.depth > MaxDepth || len(b.chain) != b.depth {
		return false
	}
	return VerifyPrefix(b, b.depth)
}

// VerifyPrefix checks the first n elements the way Verify does. It is false
// when n exceeds the elements held.
func VerifyPrefix(b Baseline, n int) bool {
	if n < 0 || n > len(b.chain) {
		return false
	}
	v, err := NewVerifier(b.seed, b.depth)
	if err != nil || b.root != v.root {
		return false
	}
	for i := 0; i < n; i++ {
		if err := v.Extend(&b.chain[i]); err != nil {
			return false
		}
	}
	return true
}

// VerifyFull re-derives the chain from the seed and compares every element.
// It is the slow reference for Verify.
func VerifyFull(b Baseline) bool {
	if b.depth < 1 || b.depth > MaxDepth || len(b.chain) != b.depth {
		return false
	}
	want, err := Derive(b.seed, b.depth)
	if err != nil {
		return false
	}
	return want.Equal(b)
}

// Verifier checks a chain element by element as it arrives. Each Extend
// costs a constant number of 256-bit additions regardless of position.
type Verifier struct {
	seed     int64
	depth    int
	root     uint64
	verified int
	a        uint256.Int // root + verified - 1
	last     uint256.Int // chain[verified-1]
}

// NewVerifier starts an incremental check of the chain for (seed, depth).
func NewVerifier(seed int64, depth int) (*Verifier, error) {
	if depth < 1 || depth > MaxDepth {
		return nil, fmt.Errorf("%w: depth %d outside [1, %d]", ErrInvalidParameter, depth, MaxDepth)
	}
	return &Verifier{seed: seed, depth: depth, root: rootOf(seed, depth)}, nil
}

// Extend checks x as the next chain element. On failure the verifier keeps
// its state, so the caller may retry with a corrected element.
func (v *Verifier) Extend(x *uint256.Int) error {
	if v.verified >= v.depth {
		return fmt.Errorf("chain already complete at depth %d", v.depth)
	}
	if v.verified == 0 {
		a := uint256.NewInt(v.root)
		want := new(uint256.Int).Mul(a, a)
		if !want.Eq(x) {
			return fmt.Errorf("element 0: not the square of the root")
		}
		v.a.Set(a)
	} else {
		want := gnomonStep(new(uint256.Int), &v.last, &v.a)
		if !want.Eq(x) {
			return fmt.Errorf("element %d: gnomon link broken", v.verified)
		}
		v.a.AddUint64(&v.a, 1)
	}
	v.last.Set(x)
	v.verified++
	return nil
}

// Verified returns how many leading elements have been accepted.
func (v *Verifier) Verified() int { return v.verified }

// Complete reports whether the whole chain has been accepted.
func (v *Verifier) Complete() bool { return v.verified == v.depth }

// Root returns the root the verifier expects.
func (v *Verifier) Root() uint64 { return v.root }
