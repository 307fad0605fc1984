package synapse

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/golang/snappy"
	"github.com/multiformats/go-varint"

	"github.com/roach88/scrawl/internal/isa"
)

// MaxPayload bounds the decoded payload of one frame.
const MaxPayload = 64 << 20

// Options configures Encode.
type Options struct {
	// Compress stores the payload snappy-compressed.
	Compress bool
}

// Encode writes prog as one frame.
func Encode(prog []isa.Instruction, opts Options) ([]byte, error) {
	if uint64(len(prog)) > math.MaxUint32 {
		return nil, fmt.Errorf("synapse: %d instructions do not fit a frame", len(prog))
	}
	var payload []byte
	for i, in := range prog {
		var err error
		payload, err = appendInstruction(payload, in)
		if err != nil {
			return nil, fmt.Errorf("synapse: instruction %d: %w", i, err)
		}
	}
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("synapse: payload of %d bytes exceeds %d", len(payload), MaxPayload)
	}

	m := Metadata{Version: Version, Count: len(prog)}
	if opts.Compress {
		payload = snappy.Encode(nil, payload)
		m.Flags |= FlagCompressed
	}
	m.PayloadLen = len(payload)
	m.Checksum = xxhash.Sum64(payload)

	frame := make([]byte, HeaderSize, HeaderSize+len(payload))
	putHeader(frame, m)
	return append(frame, payload...), nil
}

// Decode reads one frame. Opcodes must be known; operand shapes are not
// checked here, so a frame carrying a malformed instruction decodes and
// then faults when executed.
func Decode(frame []byte) ([]isa.Instruction, Metadata, error) {
	m, err := Peek(frame)
	if err != nil {
		return nil, m, err
	}
	payload := frame[HeaderSize:]
	if sum := xxhash.Sum64(payload); sum != m.Checksum {
		return nil, m, fmt.Errorf("%w: header %016x, payload %016x", ErrChecksum, m.Checksum, sum)
	}
	if m.Compressed() {
		n, err := snappy.DecodedLen(payload)
		if err != nil {
			return nil, m, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if n > MaxPayload {
			return nil, m, fmt.Errorf("%w: decoded payload of %d bytes exceeds %d", ErrCorrupt, n, MaxPayload)
		}
		payload, err = snappy.Decode(nil, payload)
		if err != nil {
			return nil, m, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}

	r := &reader{buf: payload}
	prog := make([]isa.Instruction, 0, min(m.Count, len(payload)/2))
	for i := 0; i < m.Count; i++ {
		in, err := r.instruction()
		if err != nil {
			return nil, m, fmt.Errorf("instruction %d at byte %d: %w", i, r.off, err)
		}
		prog = append(prog, in)
	}
	if r.off != len(r.buf) {
		return nil, m, fmt.Errorf("%w: %d bytes after %d instructions", ErrCorrupt, len(r.buf)-r.off, m.Count)
	}
	return prog, m, nil
}

func appendInstruction(buf []byte, in isa.Instruction) ([]byte, error) {
	buf = binary.BigEndian.AppendUint16(buf, uint16(in.Opcode()))
	ops := in.Operands()
	buf = appendUvarint(buf, uint64(len(ops)))
	for j, op := range ops {
		if op == nil {
			return nil, fmt.Errorf("operand %d is nil", j)
		}
		buf = append(buf, byte(op.Kind()))
		switch v := op.(type) {
		case isa.Int:
			buf = binary.BigEndian.AppendUint64(buf, uint64(v))
		case isa.Float:
			buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(float64(v)))
		case isa.Bytes:
			buf = appendUvarint(buf, uint64(len(v)))
			buf = append(buf, v...)
		case isa.Agents:
			buf = appendUvarint(buf, uint64(len(v)))
			for _, a := range v {
				buf = binary.BigEndian.AppendUint64(buf, uint64(a))
			}
		case isa.Reg:
			buf = append(buf, byte(v.Bank))
			buf = appendUvarint(buf, uint64(v.Index))
		default:
			return nil, fmt.Errorf("operand %d has unknown type %T", j, op)
		}
	}
	return buf, nil
}

func appendUvarint(buf []byte, x uint64) []byte {
	return append(buf, varint.ToUvarint(x)...)
}

// reader walks a payload. Every method fails with ErrTruncated or
// ErrCorrupt rather than reading past the end.
type reader struct {
	buf []byte
	off int
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || len(r.buf)-r.off < n {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, n, len(r.buf)-r.off)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) readByte() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) readUint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *reader) uvarint() (uint64, error) {
	x, n, err := varint.FromUvarint(r.buf[r.off:])
	if err != nil {
		return 0, fmt.Errorf("%w: varint: %v", ErrCorrupt, err)
	}
	r.off += n
	return x, nil
}

// length reads a uvarint count and checks that at least count*unit bytes
// remain, so a corrupt count cannot force a huge allocation.
func (r *reader) length(unit int) (int, error) {
	n, err := r.uvarint()
	if err != nil {
		return 0, err
	}
	if n > uint64(len(r.buf)-r.off)/uint64(unit) {
		return 0, fmt.Errorf("%w: length %d overruns payload", ErrTruncated, n)
	}
	return int(n), nil
}

func (r *reader) instruction() (isa.Instruction, error) {
	b, err := r.take(2)
	if err != nil {
		return isa.Instruction{}, err
	}
	op := isa.Opcode(binary.BigEndian.Uint16(b))
	if _, ok := isa.Lookup(op); !ok {
		return isa.Instruction{}, fmt.Errorf("%w: unknown opcode %s", ErrCorrupt, op)
	}
	n, err := r.length(2)
	if err != nil {
		return isa.Instruction{}, err
	}
	operands := make([]isa.Operand, n)
	for j := range operands {
		if operands[j], err = r.operand(); err != nil {
			return isa.Instruction{}, fmt.Errorf("%s operand %d: %w", op, j, err)
		}
	}
	return isa.Unchecked(op, operands...), nil
}

func (r *reader) operand() (isa.Operand, error) {
	kind, err := r.readByte()
	if err != nil {
		return nil, err
	}
	switch isa.Kind(kind) {
	case isa.KindInt:
		v, err := r.readUint64()
		return isa.Int(int64(v)), err
	case isa.KindFloat:
		v, err := r.readUint64()
		return isa.Float(math.Float64frombits(v)), err
	case isa.KindBytes:
		n, err := r.length(1)
		if err != nil {
			return nil, err
		}
		b, err := r.take(n)
		if err != nil {
			return nil, err
		}
		return isa.Bytes(append([]byte(nil), b...)), nil
	case isa.KindAgents:
		n, err := r.length(8)
		if err != nil {
			return nil, err
		}
		agents := make(isa.Agents, n)
		for i := range agents {
			v, err := r.readUint64()
			if err != nil {
				return nil, err
			}
			agents[i] = isa.AgentID(int64(v))
		}
		return agents, nil
	case isa.KindReg:
		bank, err := r.readByte()
		if err != nil {
			return nil, err
		}
		if b := isa.Bank(bank); b != isa.BankScalar && b != isa.BankBaseline && b != isa.BankTensor {
			return nil, fmt.Errorf("%w: unknown register bank %d", ErrCorrupt, bank)
		}
		idx, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		if idx > math.MaxUint16 {
			return nil, fmt.Errorf("%w: register index %d", ErrCorrupt, idx)
		}
		return isa.Reg{Bank: isa.Bank(bank), Index: uint16(idx)}, nil
	default:
		return nil, fmt.Errorf("%w: unknown operand kind %d", ErrCorrupt, kind)
	}
}
