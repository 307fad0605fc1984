package identity

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// corrupt returns a copy of b with chain[i] incremented.
func corrupt(b Baseline, i int) Baseline {
	return b.Tamper(i)
}

func TestVerifyHeartbeatBaseline(t *testing.T) {
	b := MustDerive(0xCAFE, 16)
	assert.True(t, Verify(b))
	assert.True(t, VerifyFull(b))

	for i := 0; i < b.Len(); i++ {
		assert.False(t, Verify(corrupt(b, i)), "corrupted chain[%d]", i)
	}
}

func TestVerifyRejectsTruncatedChain(t *testing.T) {
	b := MustDerive(3, 8)
	short := b
	short.chain = b.Chain()[:7]
	assert.False(t, Verify(short))
	assert.False(t, VerifyFull(short))
}

func TestVerifyRejectsWrongSeed(t *testing.T) {
	b := MustDerive(3, 8)
	forged := b
	forged.seed = 4
	assert.False(t, Verify(forged))
	assert.False(t, VerifyFull(forged))
}

// fullPrefix is the O(depth) reference for a prefix: re-derive and compare
// the first n elements.
func fullPrefix(b Baseline, n int) bool {
	want, err := Derive(b.seed, b.depth)
	if err != nil || n > b.Len() {
		return false
	}
	for i := 0; i < n; i++ {
		if !want.chain[i].Eq(&b.chain[i]) {
			return false
		}
	}
	return true
}

func TestIncrementalAgreesWithFullOnEveryPrefix(t *testing.T) {
	for _, seed := range []int64{0, 0xCAFE, -99} {
		b := MustDerive(seed, 12)
		candidates := []Baseline{b}
		for i := 0; i < b.Len(); i++ {
			candidates = append(candidates, corrupt(b, i))
		}

		for ci, c := range candidates {
			for n := 0; n <= c.Len(); n++ {
				assert.Equal(t, fullPrefix(c, n), VerifyPrefix(c, n),
					"seed=%d candidate=%d prefix=%d", seed, ci, n)
			}
			assert.Equal(t, VerifyFull(c), Verify(c), "seed=%d candidate=%d", seed, ci)
		}
	}
}

func TestVerifierExtend(t *testing.T) {
	b := MustDerive(0xBEEF, 5)
	v, err := NewVerifier(0xBEEF, 5)
	require.NoError(t, err)
	assert.Equal(t, b.Root(), v.Root())

	for i := 0; i < 5; i++ {
		require.NoError(t, v.Extend(b.At(i)))
		assert.Equal(t, i+1, v.Verified())
	}
	assert.True(t, v.Complete())
	assert.Error(t, v.Extend(uint256.NewInt(0)), "extending a complete chain")
}

func TestVerifierKeepsStateOnFailure(t *testing.T) {
	b := MustDerive(0xBEEF, 5)
	v, err := NewVerifier(0xBEEF, 5)
	require.NoError(t, err)

	require.NoError(t, v.Extend(b.At(0)))
	require.NoError(t, v.Extend(b.At(1)))

	bad := b.At(2)
	bad.AddUint64(bad, 2)
	err = v.Extend(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "element 2")
	assert.Equal(t, 2, v.Verified())

	require.NoError(t, v.Extend(b.At(2)), "retry with the right element")
	assert.Equal(t, 3, v.Verified())
}

func TestVerifierRejectsWrongFirstElement(t *testing.T) {
	v, err := NewVerifier(1, 3)
	require.NoError(t, err)
	err = v.Extend(uint256.NewInt(4))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "element 0")
}

func TestNewVerifierRejectsBadDepth(t *testing.T) {
	_, err := NewVerifier(1, 0)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}
