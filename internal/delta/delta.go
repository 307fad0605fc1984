// Package delta compresses a stream of state snapshots against the previous
// snapshot, bound to a shared identity baseline.
//
// Two agents that completed a handshake hold equal baselines. Each builds a
// Compressor from its baseline; frames one produces, the other decompresses.
// Both sides evolve the same reference state, so after the first full frame
// only the XOR difference to the previous state travels, brotli-compressed.
//
// Frame layout:
//
//	[kind:1][tag:4][uvarint payload length][payload]
//
// tag is the first four bytes of the baseline fingerprint; a frame made
// under a different baseline is rejected with ErrBaselineMismatch.
package delta

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/andybalholm/brotli"
	"github.com/multiformats/go-varint"

	"github.com/roach88/scrawl/internal/identity"
)

// Kind is the frame type byte.
type Kind byte

const (
	KindFull  Kind = 0x01 // payload is brotli(state)
	KindDelta Kind = 0x02 // payload is brotli(prev XOR state), prev zero-padded
	KindSame  Kind = 0x03 // state equals the previous one, no payload
)

func (k Kind) String() string {
	switch k {
	case KindFull:
		return "full"
	case KindDelta:
		return "delta"
	case KindSame:
		return "same"
	default:
		return fmt.Sprintf("kind(%#02x)", byte(k))
	}
}

// MaxState bounds a decompressed snapshot.
const MaxState = 16 << 20

var (
	// ErrBaselineMismatch is returned for a frame tagged with another
	// baseline's fingerprint.
	ErrBaselineMismatch = errors.New("delta: baseline mismatch")

	// ErrCorrupt is returned for a frame that does not decode.
	ErrCorrupt = errors.New("delta: corrupt frame")

	// ErrNoReference is returned for a delta or same frame that arrives
	// before any full frame.
	ErrNoReference = errors.New("delta: no reference state")
)

// Stats counts what a Compressor has produced.
type Stats struct {
	Frames     int
	RawBytes   int // snapshot bytes passed to Compress
	FrameBytes int // frame bytes returned
	Full       int
	Delta      int
	Same       int
}

// Saved is the fraction of raw bytes the frames did not need.
func (s Stats) Saved() float64 {
	if s.RawBytes == 0 {
		return 0
	}
	return 1 - float64(s.FrameBytes)/float64(s.RawBytes)
}

// Compressor holds one side's reference state. It is not safe for
// concurrent use; give each direction of a link its own Compressor.
type Compressor struct {
	tag     [4]byte
	quality int
	prev    []byte
	stats   Stats
}

// Option configures a Compressor.
type Option func(*Compressor)

// WithQuality sets the brotli quality, 0 (fastest) to 11 (smallest).
func WithQuality(q int) Option {
	return func(c *Compressor) {
		c.quality = min(max(q, brotli.BestSpeed), brotli.BestCompression)
	}
}

// NewCompressor binds a compressor to baseline b.
func NewCompressor(b identity.Baseline, opts ...Option) *Compressor {
	c := &Compressor{
		tag:     b.Fingerprint().Tag(),
		quality: brotli.BestCompression,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tag returns the baseline tag stamped on every frame.
func (c *Compressor) Tag() [4]byte { return c.tag }

// Stats returns the counters so far.
func (c *Compressor) Stats() Stats { return c.stats }

// Reset forgets the reference state; the next frame will be full.
func (c *Compressor) Reset() { c.prev = nil }

// Compress encodes state and makes it the new reference. The first frame is
// full; later frames are deltas, or full when that is smaller.
func (c *Compressor) Compress(state []byte) ([]byte, error) {
	if len(state) > MaxState {
		return nil, fmt.Errorf("delta: state of %d bytes exceeds %d", len(state), MaxState)
	}

	var frame []byte
	switch {
	case c.prev != nil && bytes.Equal(c.prev, state):
		frame = c.frame(KindSame, nil)
	case c.prev == nil:
		body, err := c.squeeze(state)
		if err != nil {
			return nil, err
		}
		frame = c.frame(KindFull, body)
	default:
		full, err := c.squeeze(state)
		if err != nil {
			return nil, err
		}
		diff, err := c.squeeze(xor(c.prev, state))
		if err != nil {
			return nil, err
		}
		if len(diff) < len(full) {
			frame = c.frame(KindDelta, diff)
		} else {
			frame = c.frame(KindFull, full)
		}
	}

	c.prev = bytes.Clone(state)
	if c.prev == nil {
		c.prev = []byte{}
	}
	c.count(Kind(frame[0]), len(state), len(frame))
	return frame, nil
}

// Decompress decodes a frame and makes the result the new reference. On
// error the reference state is unchanged.
func (c *Compressor) Decompress(frame []byte) ([]byte, error) {
	kind, payload, err := c.parse(frame)
	if err != nil {
		return nil, err
	}

	var state []byte
	switch kind {
	case KindFull:
		if state, err = expand(payload); err != nil {
			return nil, err
		}
	case KindDelta:
		if c.prev == nil {
			return nil, ErrNoReference
		}
		diff, err := expand(payload)
		if err != nil {
			return nil, err
		}
		state = xor(c.prev, diff)
	case KindSame:
		if c.prev == nil {
			return nil, ErrNoReference
		}
		if len(payload) != 0 {
			return nil, fmt.Errorf("%w: same frame carries %d payload bytes", ErrCorrupt, len(payload))
		}
		state = bytes.Clone(c.prev)
	}

	c.prev = bytes.Clone(state)
	if c.prev == nil {
		c.prev = []byte{}
	}
	return state, nil
}

func (c *Compressor) frame(k Kind, payload []byte) []byte {
	n := varint.ToUvarint(uint64(len(payload)))
	out := make([]byte, 0, 1+len(c.tag)+len(n)+len(payload))
	out = append(out, byte(k))
	out = append(out, c.tag[:]...)
	out = append(out, n...)
	return append(out, payload...)
}

func (c *Compressor) parse(frame []byte) (Kind, []byte, error) {
	if len(frame) < 1+len(c.tag)+1 {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrCorrupt, len(frame))
	}
	kind := Kind(frame[0])
	if kind != KindFull && kind != KindDelta && kind != KindSame {
		return 0, nil, fmt.Errorf("%w: unknown kind %s", ErrCorrupt, kind)
	}
	if [4]byte(frame[1:5]) != c.tag {
		return 0, nil, fmt.Errorf("%w: frame tag %x, ours %x", ErrBaselineMismatch, frame[1:5], c.tag)
	}
	n, used, err := varint.FromUvarint(frame[5:])
	if err != nil {
		return 0, nil, fmt.Errorf("%w: length: %v", ErrCorrupt, err)
	}
	payload := frame[5+used:]
	if uint64(len(payload)) != n {
		return 0, nil, fmt.Errorf("%w: header says %d payload bytes, frame has %d", ErrCorrupt, n, len(payload))
	}
	return kind, payload, nil
}

func (c *Compressor) squeeze(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, c.quality)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("delta: compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("delta: compress: %w", err)
	}
	return buf.Bytes(), nil
}

func expand(payload []byte) ([]byte, error) {
	r := io.LimitReader(brotli.NewReader(bytes.NewReader(payload)), MaxState+1)
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(out) > MaxState {
		return nil, fmt.Errorf("%w: state exceeds %d bytes", ErrCorrupt, MaxState)
	}
	return out, nil
}

// xor returns ref XOR data over len(data) bytes, ref zero-padded or
// truncated to fit.
func xor(ref, data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	for i := 0; i < len(out) && i < len(ref); i++ {
		out[i] ^= ref[i]
	}
	return out
}

func (c *Compressor) count(k Kind, raw, framed int) {
	c.stats.Frames++
	c.stats.RawBytes += raw
	c.stats.FrameBytes += framed
	switch k {
	case KindFull:
		c.stats.Full++
	case KindDelta:
		c.stats.Delta++
	case KindSame:
		c.stats.Same++
	}
	slog.Debug("delta frame",
		"kind", k.String(),
		"raw_bytes", raw,
		"frame_bytes", framed,
	)
}
