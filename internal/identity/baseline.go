package identity

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"github.com/roach88/scrawl/internal/isa"
)

// MaxDepth bounds chain length so a single derive cannot exhaust memory.
const MaxDepth = 1 << 16

const domainRoot = "scrawl/identity/root/v1"

// ErrInvalidParameter is returned for a depth outside [1, MaxDepth].
var ErrInvalidParameter = errors.New("invalid parameter")

// Baseline is a derived identity chain. The zero value is the empty baseline
// held by unset registers; it never verifies.
type Baseline struct {
	seed  int64
	depth int
	root  uint64
	chain []uint256.Int
}

// Derive computes the baseline for (seed, depth).
func Derive(seed int64, depth int) (Baseline, error) {
	if depth < 1 || depth > MaxDepth {
		return Baseline{}, fmt.Errorf("%w: depth %d outside [1, %d]", ErrInvalidParameter, depth, MaxDepth)
	}
	root := rootOf(seed, depth)
	chain := make([]uint256.Int, depth)
	a := uint256.NewInt(root)
	chain[0].Mul(a, a)
	for i := 1; i < depth; i++ {
		gnomonStep(&chain[i], &chain[i-1], a)
		a.AddUint64(a, 1)
	}
	return Baseline{seed: seed, depth: depth, root: root, chain: chain}, nil
}

// MustDerive is like Derive but panics on error.
// Use only in tests or with constant inputs.
func MustDerive(seed int64, depth int) Baseline {
	b, err := Derive(seed, depth)
	if err != nil {
		panic(err)
	}
	return b
}

// Assemble builds a baseline from a chain obtained elsewhere, such as a peer
// or a store. Nothing is checked; pass the result to Verify.
func Assemble(seed int64, depth int, chain []uint256.Int) Baseline {
	out := make([]uint256.Int, len(chain))
	copy(out, chain)
	return Baseline{seed: seed, depth: depth, root: rootOf(seed, depth), chain: out}
}

// Tamper returns a copy of b with chain[i] incremented by one. It exists for
// exercising verification failures and panics when i is out of range.
func (b Baseline) Tamper(i int) Baseline {
	c := b
	c.chain = b.Chain()
	c.chain[i].AddUint64(&c.chain[i], 1)
	return c
}

// rootOf hashes seed and depth and keeps the low 63 bits of the first word.
func rootOf(seed int64, depth int) uint64 {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(seed))
	binary.BigEndian.PutUint64(buf[8:], uint64(depth))
	sum := isa.HashWithDomain(domainRoot, buf[:])
	return binary.BigEndian.Uint64(sum[:8]) &^ (1 << 63)
}

func (b Baseline) Seed() int64  { return b.seed }
func (b Baseline) Depth() int   { return b.depth }
func (b Baseline) Root() uint64 { return b.root }

// IsZero reports whether b is the empty baseline.
func (b Baseline) IsZero() bool { return b.depth == 0 && len(b.chain) == 0 }

// Len returns the number of chain elements actually held.
func (b Baseline) Len() int { return len(b.chain) }

// At returns a copy of chain[i]. It panics when i is out of range.
func (b Baseline) At(i int) *uint256.Int {
	v := b.chain[i]
	return &v
}

// Chain returns a copy of the chain.
func (b Baseline) Chain() []uint256.Int {
	out := make([]uint256.Int, len(b.chain))
	copy(out, b.chain)
	return out
}

// Head returns up to n leading chain elements in decimal.
func (b Baseline) Head(n int) []string {
	if n > len(b.chain) {
		n = len(b.chain)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = b.chain[i].ToBig().String()
	}
	return out
}

func (b Baseline) String() string {
	if b.IsZero() {
		return "baseline(empty)"
	}
	head := b.Head(3)
	if b.Len() > 3 {
		head = append(head, "...")
	}
	return fmt.Sprintf("baseline(seed=%#x, depth=%d, chain=[%s])", b.seed, b.depth, strings.Join(head, ", "))
}

// Equal reports whether two baselines hold the same inputs and chain.
func (b Baseline) Equal(other Baseline) bool {
	if b.seed != other.seed || b.depth != other.depth || b.root != other.root || len(b.chain) != len(other.chain) {
		return false
	}
	for i := range b.chain {
		if !b.chain[i].Eq(&other.chain[i]) {
			return false
		}
	}
	return true
}
