// Package isa defines the SCRAWL instruction set: opcodes, the sealed operand
// union, immutable instructions and their canonical JSON form.
//
// This package contains type definitions and shape validation only. All other
// internal packages import isa; isa imports nothing internal, which keeps the
// instruction representation the foundational layer with no cycles.
//
// Key design constraints:
//   - Instructions are immutable once constructed (unexported fields)
//   - Operand shapes are validated at construction against the opcode table
//   - Register operands carry their bank (R, CR, TR) so shape checks are total
//   - Canonical JSON (RFC 8785 ordering, NFC strings) is the only encoding used
//     for content hashes
package isa
