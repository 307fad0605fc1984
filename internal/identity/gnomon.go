package identity

import "github.com/holiman/uint256"

// gnomonStep sets z = prev + a + (a+1), the square following prev = a^2.
func gnomonStep(z, prev, a *uint256.Int) *uint256.Int {
	z.Add(prev, a)
	z.Add(z, a)
	return z.AddUint64(z, 1)
}

// Gnomon returns (a+1)^2 given a^2 and a, using only additions.
func Gnomon(aSquared, a *uint256.Int) *uint256.Int {
	return gnomonStep(new(uint256.Int), aSquared, a)
}

// AlgebraicCheck reports whether b = a+1 and a + a^2 + b = b^2 hold for the
// given values. aSq and bSq are not recomputed, so this checks a claimed
// pair of squares against each other.
func AlgebraicCheck(a, aSq, b, bSq *uint256.Int) bool {
	next := new(uint256.Int).AddUint64(a, 1)
	if !next.Eq(b) {
		return false
	}
	lhs := new(uint256.Int).Add(a, aSq)
	lhs.Add(lhs, b)
	return lhs.Eq(bSq)
}
