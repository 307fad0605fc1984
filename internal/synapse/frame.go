// Package synapse is the binary wire format for instruction sequences.
//
// A frame is a fixed 24-byte header followed by the payload:
//
//	offset size field
//	0      4    magic "SYNP"
//	4      1    version (1)
//	5      1    flags (FlagCompressed = snappy payload)
//	6      2    reserved, zero
//	8      4    instruction count, big-endian
//	12     4    payload length as stored, big-endian
//	16     8    xxhash64 of the stored payload, big-endian
//
// The payload is the instructions back to back. Each is a big-endian uint16
// opcode, a uvarint operand count and the operands, each a kind byte then:
//
//	int     8 bytes, two's complement big-endian
//	float   8 bytes, IEEE-754 bits big-endian
//	bytes   uvarint length, raw bytes
//	agents  uvarint count, 8 bytes per agent
//	reg     bank byte, uvarint index
//
// Decode(Encode(p)) is structurally equal to p for every p.
package synapse

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Version is the only frame version this package writes and reads.
const Version uint8 = 1

// HeaderSize is the fixed header length.
const HeaderSize = 24

// Magic opens every frame.
var Magic = [4]byte{'S', 'Y', 'N', 'P'}

// Flags is the frame flag byte.
type Flags uint8

const (
	// FlagCompressed marks a snappy-compressed payload.
	FlagCompressed Flags = 1 << 0

	knownFlags = FlagCompressed
)

var (
	// ErrBadMagic is returned when a frame does not start with Magic.
	ErrBadMagic = errors.New("synapse: bad magic")

	// ErrVersion is returned for an unsupported frame version or flag.
	ErrVersion = errors.New("synapse: unsupported version")

	// ErrChecksum is returned when the payload hash does not match.
	ErrChecksum = errors.New("synapse: checksum mismatch")

	// ErrTruncated is returned when a frame ends early.
	ErrTruncated = errors.New("synapse: truncated frame")

	// ErrCorrupt is returned for a payload that does not decode.
	ErrCorrupt = errors.New("synapse: corrupt payload")
)

// Metadata is the decoded frame header.
type Metadata struct {
	Version    uint8
	Flags      Flags
	Count      int    // instructions in the frame
	PayloadLen int    // payload bytes as stored
	Checksum   uint64 // xxhash64 of the stored payload
}

// Compressed reports whether the payload is snappy-compressed.
func (m Metadata) Compressed() bool { return m.Flags&FlagCompressed != 0 }

func (m Metadata) String() string {
	return fmt.Sprintf("synapse v%d: %d instructions, %d payload bytes, compressed=%t, xxh64=%016x",
		m.Version, m.Count, m.PayloadLen, m.Compressed(), m.Checksum)
}

func putHeader(buf []byte, m Metadata) {
	copy(buf[0:4], Magic[:])
	buf[4] = m.Version
	buf[5] = byte(m.Flags)
	buf[6], buf[7] = 0, 0
	binary.BigEndian.PutUint32(buf[8:12], uint32(m.Count))
	binary.BigEndian.PutUint32(buf[12:16], uint32(m.PayloadLen))
	binary.BigEndian.PutUint64(buf[16:24], m.Checksum)
}

// Peek reads and checks the header of frame without decoding the payload.
func Peek(frame []byte) (Metadata, error) {
	if len(frame) < HeaderSize {
		return Metadata{}, fmt.Errorf("%w: %d bytes, header needs %d", ErrTruncated, len(frame), HeaderSize)
	}
	if [4]byte(frame[0:4]) != Magic {
		return Metadata{}, fmt.Errorf("%w: %q", ErrBadMagic, frame[0:4])
	}
	m := Metadata{
		Version:    frame[4],
		Flags:      Flags(frame[5]),
		Count:      int(binary.BigEndian.Uint32(frame[8:12])),
		PayloadLen: int(binary.BigEndian.Uint32(frame[12:16])),
		Checksum:   binary.BigEndian.Uint64(frame[16:24]),
	}
	if m.Version != Version {
		return m, fmt.Errorf("%w: %d", ErrVersion, m.Version)
	}
	if m.Flags&^knownFlags != 0 {
		return m, fmt.Errorf("%w: unknown flags %#02x", ErrVersion, uint8(m.Flags))
	}
	if frame[6] != 0 || frame[7] != 0 {
		return m, fmt.Errorf("%w: reserved bytes set", ErrCorrupt)
	}
	switch n := len(frame) - HeaderSize; {
	case n < m.PayloadLen:
		return m, fmt.Errorf("%w: header says %d payload bytes, frame has %d", ErrTruncated, m.PayloadLen, n)
	case n > m.PayloadLen:
		return m, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, n-m.PayloadLen)
	}
	return m, nil
}
