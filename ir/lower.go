// Package ir implements the Lowerer (primitive opcodes -> fused IR with
// precomputed jump distances) and the IR interpreter, IrInterp.
package ir

import (
	"errors"

	"github.com/xyproto/bfjit/bf"
)

// VerboseMode gates per-step instruction tracing to stderr in Interp.Step.
var VerboseMode bool

// Op tags the shape of an IR instruction (spec's Data Model table).
type Op int

const (
	PtrAdd Op = iota
	CellAdd
	Out
	In
	JmpFwdIfZero
	JmpBackIfNonZero
)

func (o Op) String() string {
	switch o {
	case PtrAdd:
		return "PtrAdd"
	case CellAdd:
		return "CellAdd"
	case Out:
		return "Out"
	case In:
		return "In"
	case JmpFwdIfZero:
		return "JmpFwdIfZero"
	case JmpBackIfNonZero:
		return "JmpBackIfNonZero"
	default:
		return "?"
	}
}

// Instr is one IR instruction. N is the signed delta for PtrAdd/CellAdd, or
// the (always positive) jump distance for the two jump variants.
type Instr struct {
	Op Op
	N  int32
}

// ErrUnbalancedBrackets is returned by Lower for any of: a stray ']', a
// stray unmatched '[', or leftover open brackets at end of program.
var ErrUnbalancedBrackets = errors.New("ir: unbalanced brackets")

// Lower runs the two-pass build described in the spec: pass 1 fuses runs of
// +/- and runs of >/< into single signed-delta instructions and emits
// placeholder jumps for [ and ]; pass 2 walks the fused sequence with a
// bracket stack, rewriting each matched [/] pair to carry their mutual
// distance.
func Lower(program []bf.Op) ([]Instr, error) {
	instrs := fuse(program)

	stack := make([]int, 0, 32)
	for idx := range instrs {
		switch instrs[idx].Op {
		case JmpFwdIfZero:
			stack = append(stack, idx)
		case JmpBackIfNonZero:
			if len(stack) == 0 {
				return nil, ErrUnbalancedBrackets
			}
			target := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			distance := int32(idx - target)
			instrs[target].N = distance
			instrs[idx].N = distance
		}
	}
	if len(stack) != 0 {
		return nil, ErrUnbalancedBrackets
	}

	return instrs, nil
}

// fuse is pass 1: combine adjacent increments, pass jumps through as
// zero-distance placeholders.
func fuse(program []bf.Op) []Instr {
	instrs := make([]Instr, 0, len(program))

	i := 0
	for i < len(program) {
		switch program[i] {
		case bf.OpIncByte, bf.OpDecByte:
			var sum int32
			for i < len(program) && (program[i] == bf.OpIncByte || program[i] == bf.OpDecByte) {
				if program[i] == bf.OpIncByte {
					sum++
				} else {
					sum--
				}
				i++
			}
			instrs = append(instrs, Instr{Op: CellAdd, N: sum})

		case bf.OpIncPtr, bf.OpDecPtr:
			var sum int32
			for i < len(program) && (program[i] == bf.OpIncPtr || program[i] == bf.OpDecPtr) {
				if program[i] == bf.OpIncPtr {
					sum++
				} else {
					sum--
				}
				i++
			}
			instrs = append(instrs, Instr{Op: PtrAdd, N: sum})

		case bf.OpOutput:
			instrs = append(instrs, Instr{Op: Out})
			i++

		case bf.OpInput:
			instrs = append(instrs, Instr{Op: In})
			i++

		case bf.OpJumpIfZero:
			instrs = append(instrs, Instr{Op: JmpFwdIfZero})
			i++

		case bf.OpJumpIfNonZero:
			instrs = append(instrs, Instr{Op: JmpBackIfNonZero})
			i++
		}
	}

	return instrs
}
