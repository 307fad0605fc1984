// Package rosetta compiles SCRAWL pseudocode into instructions and renders
// instructions back into pseudocode.
//
// A program is one statement per line. Blank lines and text after '#' are
// ignored. A statement calls an operation by its pseudocode name, optionally
// assigning the result to a register:
//
//	CR0 = identity.derive(seed=0xCAFE, depth=16)
//	R1 = identity.verify(CR0)
//	consensus.propose(id=1, payload=R2, agents=[0, 1])
//	consensus.vote(id=1, agent=0, vote=approve)
//	TR3 = attention.route(TR0, TR1, TR2)
//	yield(R1)
//	halt
//
// Execution-domain operations may drop the "exec." prefix. Arguments are
// positional, by slot name, or a mix; positional arguments fill the slots
// left after the assignment target in table order. Values are integers
// (decimal, 0x, 0b), floats, enum names, register names, agent lists,
// quoted strings and x"hex" byte strings.
//
// Macros expand a call into several instructions. Every Registry starts with
// the builtin fused_attention; more come from Go (Registry.Register) or from
// CUE files (LoadMacros).
//
// Decompile(Compile(src)) is not src, but Compile(Decompile(p)) is p.
package rosetta
