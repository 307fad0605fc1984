package identity

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

const domainFingerprint = "scrawl/identity/fingerprint/v1"

// FingerprintSize is the length of a fingerprint in bytes.
const FingerprintSize = sha256.Size

// Fingerprint is a fixed-length digest of a baseline.
type Fingerprint [FingerprintSize]byte

// Fingerprint digests seed, depth and the chain in order. Reordering or
// changing any element changes the result.
func (b Baseline) Fingerprint() Fingerprint {
	h := sha256.New()
	h.Write([]byte(domainFingerprint))
	h.Write([]byte{0x00})

	var hdr [16]byte
	binary.BigEndian.PutUint64(hdr[:8], uint64(b.seed))
	binary.BigEndian.PutUint64(hdr[8:], uint64(b.depth))
	h.Write(hdr[:])

	for i := range b.chain {
		word := b.chain[i].Bytes32()
		h.Write(word[:])
	}

	var fp Fingerprint
	copy(fp[:], h.Sum(nil))
	return fp
}

// Word returns the first 8 bytes as a big-endian int64. This is what fits in
// a scalar register.
func (f Fingerprint) Word() int64 {
	return int64(binary.BigEndian.Uint64(f[:8]))
}

// Tag returns the first 4 bytes, used to label delta frames.
func (f Fingerprint) Tag() [4]byte {
	var t [4]byte
	copy(t[:], f[:4])
	return t
}

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// ParseFingerprint decodes a hex fingerprint.
func ParseFingerprint(s string) (Fingerprint, error) {
	var fp Fingerprint
	raw, err := hex.DecodeString(s)
	if err != nil {
		return fp, err
	}
	if len(raw) != FingerprintSize {
		return fp, hex.ErrLength
	}
	copy(fp[:], raw)
	return fp, nil
}
