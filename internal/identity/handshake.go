package identity

import (
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"
)

const domainSharedKey = "scrawl/identity/shared/v1"

// SharedKeySize is the length of keys returned by DeriveSharedKey.
const SharedKeySize = 32

// Initiate derives the initiator's baseline and the fingerprint it sends.
func Initiate(seed int64, depth int) (Baseline, Fingerprint, error) {
	b, err := Derive(seed, depth)
	if err != nil {
		return Baseline{}, Fingerprint{}, fmt.Errorf("initiate: %w", err)
	}
	return b, b.Fingerprint(), nil
}

// Respond derives the responder's baseline from the same inputs and compares
// its fingerprint with the initiator's. A mismatch is reported as false, not
// as an error.
func Respond(seed int64, depth int, theirs Fingerprint) (Baseline, bool, error) {
	b, err := Derive(seed, depth)
	if err != nil {
		return Baseline{}, false, fmt.Errorf("respond: %w", err)
	}
	ours := b.Fingerprint()
	return b, subtle.ConstantTimeCompare(ours[:], theirs[:]) == 1, nil
}

// DeriveSharedKey expands the baseline fingerprint into a pair key with
// HKDF-SHA3-256. The agent pair is ordered before use, so both sides get the
// same key whichever of them calls.
func DeriveSharedKey(b Baseline, agentA, agentB int64) []byte {
	lo, hi := agentA, agentB
	if lo > hi {
		lo, hi = hi, lo
	}
	var info [16]byte
	binary.BigEndian.PutUint64(info[:8], uint64(lo))
	binary.BigEndian.PutUint64(info[8:], uint64(hi))

	fp := b.Fingerprint()
	r := hkdf.New(sha3.New256, fp[:], []byte(domainSharedKey), info[:])
	key := make([]byte, SharedKeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		// HKDF only fails past 255 blocks of output.
		panic(err)
	}
	return key
}
