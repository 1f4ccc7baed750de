// Package jit compiles fused IR into a native x86_64 (System V ABI) function
// and runs it against an executable memory buffer, per spec.md section 4.4.
package jit

import (
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"unsafe"

	"github.com/xyproto/bfjit/internal/tape"
	"github.com/xyproto/bfjit/ir"
)

// ErrDisplacementOverflow is returned when a bracket pair's resolved jump
// distance does not fit a signed 32-bit rel32 displacement. With tape.Size
// capping the interpreters and compiled bodies growing only with program
// length, this is effectively unreachable for real programs, but the patch
// pass checks it rather than silently truncating.
var ErrDisplacementOverflow = errors.New("jit: jump displacement does not fit in rel32")

var (
	// ErrFailedToWrite and ErrFailedToRead wrap a trampoline's recorded I/O
	// failure once Program.Run observes it after the native call returns.
	ErrFailedToWrite = errors.New("jit: failed to write byte to output")
	ErrFailedToRead  = errors.New("jit: failed to read byte from input")
)

// BoundsError is re-exported for parity with bf and ir, though the JIT body
// itself never emits a bounds check (see DESIGN.md): a compiled program
// that walks rdi outside the tape simply corrupts adjacent memory or faults,
// it does not panic with this type. It is kept here so callers that switch
// on error kinds across all three tiers have one name to match against.
type BoundsError = tape.BoundsError

type jumpPatch struct {
	asmOffset int
	targetIdx int
}

// Compile lowers program into native code. pages <= 0 selects DefaultPages.
func Compile(program []ir.Instr, pages int) (*Program, error) {
	if pages <= 0 {
		pages = DefaultPages
	}

	locked, err := NewBuffer(pages)
	if err != nil {
		return nil, err
	}
	wbuf, err := locked.Writable()
	if err != nil {
		return nil, err
	}

	e := NewEmitter(wbuf.Bytes())

	if err := emitPrologue(e); err != nil {
		return nil, err
	}

	instrStart := make([]int, len(program)+1)
	var patches []jumpPatch

	for idx, instr := range program {
		instrStart[idx] = e.Index()

		switch instr.Op {
		case ir.PtrAdd:
			if err := emitDelta(e, Rdi, instr.N, false); err != nil {
				return nil, err
			}
		case ir.CellAdd:
			if err := emitDelta(e, Rdi, instr.N, true); err != nil {
				return nil, err
			}
		case ir.Out:
			if err := emitOut(e); err != nil {
				return nil, err
			}
		case ir.In:
			if err := emitIn(e); err != nil {
				return nil, err
			}
		case ir.JmpFwdIfZero:
			if err := e.CmpMemImm8(Rdi, 0); err != nil {
				return nil, err
			}
			jumpOffset := e.Index()
			if err := e.Je(0); err != nil {
				return nil, err
			}
			patches = append(patches, jumpPatch{jumpOffset, idx + int(instr.N)})
		case ir.JmpBackIfNonZero:
			if err := e.CmpMemImm8(Rdi, 0); err != nil {
				return nil, err
			}
			jumpOffset := e.Index()
			if err := e.Jne(0); err != nil {
				return nil, err
			}
			patches = append(patches, jumpPatch{jumpOffset, idx - int(instr.N)})
		}
	}
	instrStart[len(program)] = e.Index()

	if err := emitEpilogue(e); err != nil {
		return nil, err
	}

	for _, p := range patches {
		target := instrStart[p.targetIdx]
		rel := int64(target) - int64(p.asmOffset+6)
		if rel > math.MaxInt32 || rel < math.MinInt32 {
			return nil, ErrDisplacementOverflow
		}
		b := rel32LE(int32(rel))
		copy(wbuf.Bytes()[p.asmOffset+2:p.asmOffset+6], b[:])
	}

	exec, err := wbuf.IntoExecutable()
	if err != nil {
		return nil, err
	}

	return &Program{buf: exec}, nil
}

// emitPrologue saves the four callee-saved registers the body borrows to
// hold the trampoline call targets, then loads those targets from the
// entry function's argument registers (rsi, rdx, rcx, r8). rdi is left
// untouched: it arrives as the tape base pointer and doubles as the live
// data pointer for the rest of the body, per spec.md section 4.4.
func emitPrologue(e *Emitter) error {
	for _, reg := range [...]Register{Rbp, R12, R13, R14} {
		if err := e.PushReg(reg); err != nil {
			return err
		}
	}
	moves := [...][2]Register{{Rbp, Rsi}, {R12, Rdx}, {R13, Rcx}, {R14, R8}}
	for _, m := range moves {
		if err := e.MovRegReg(m[0], m[1]); err != nil {
			return err
		}
	}
	return nil
}

// emitEpilogue zeroes eax (the declared `-> i32` return value, spec.md
// section 4.4), restores the borrowed registers in reverse push order, and
// returns to the Go caller.
func emitEpilogue(e *Emitter) error {
	if err := e.XorRegReg(Rax, Rax); err != nil {
		return err
	}
	for _, reg := range [...]Register{R14, R13, R12, Rbp} {
		if err := e.PopReg(reg); err != nil {
			return err
		}
	}
	return e.Ret()
}

// emitDelta emits enough imm8 add/sub instructions to apply n, splitting
// runs that fuse exceeded one byte's signed range (|n| > 127) into several.
// mem selects the byte-at-[reg] form (CellAdd) over the register form
// (PtrAdd).
func emitDelta(e *Emitter, reg Register, n int32, mem bool) error {
	for n != 0 {
		chunk := n
		if chunk > 127 {
			chunk = 127
		} else if chunk < -127 {
			chunk = -127
		}
		n -= chunk

		var err error
		switch {
		case mem && chunk >= 0:
			err = e.AddMemImm8(reg, int8(chunk))
		case mem && chunk < 0:
			err = e.SubMemImm8(reg, int8(-chunk))
		case !mem && chunk >= 0:
			err = e.AddRegImm8(reg, int8(chunk))
		default:
			err = e.SubRegImm8(reg, int8(-chunk))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// emitOut emits the '.' trampoline call: `mov rsi, r12 ; push rdi ; call
// rbp ; pop rdi`. rsi carries out_wrapper, rdi carries the live cell
// pointer (&tape[p]) into the trampoline; the push/pop around the call
// preserves rdi regardless of what the trampoline does to it.
func emitOut(e *Emitter) error {
	for _, step := range []func() error{
		func() error { return e.MovRegReg(Rsi, R12) },
		func() error { return e.PushReg(Rdi) },
		func() error { return e.CallReg(Rbp) },
		func() error { return e.PopReg(Rdi) },
	} {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// emitIn mirrors emitOut for ',' using the r13/r14 pair.
func emitIn(e *Emitter) error {
	for _, step := range []func() error{
		func() error { return e.MovRegReg(Rsi, R14) },
		func() error { return e.PushReg(Rdi) },
		func() error { return e.CallReg(R13) },
		func() error { return e.PopReg(Rdi) },
	} {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// Program is a compiled, executable Brainfuck program backed by an
// executable (PROT_READ|PROT_EXEC) native code buffer. Each Run allocates a fresh tape and calls into the
// buffer once.
type Program struct {
	buf *ExecutableBuffer
}

// callEntry is implemented in entry_amd64.s. Go has no supported way to
// call a raw code address as if it were a func value - a func value is a
// pointer to a struct whose first word is the entry PC, not the PC itself,
// and even a correctly-built one would still dispatch through Go's
// ABIInternal register convention rather than System V. callEntry is the
// hand-written bridge instead: a small ABI0 stub that receives codeAddr and
// the five System-V argument words as ordinary Go arguments, loads them
// into rdi/rsi/rdx/rcx/r8, and calls through a register - the same
// direction-reversed shape as outTrampolineEntry/inTrampolineEntry, which
// bridge a System-V caller into a Go callee. This is the role
// original_source/src/jit/mod.rs's transmute plays to turn a raw buffer
// into a callable fn pointer; Go has no transmute, so the bridge is a real
// assembly entry point instead of an unsafe cast over func-value internals.
func callEntry(codeAddr, tapeBase, outTrampoline, outWrapper, inTrampoline, inWrapper uintptr) int32

// Run executes the compiled program against a fresh 30000-cell tape,
// reading ',' input from r and writing '.' output to w. I/O failures
// surface only after the native call returns, wrapped in ErrFailedToWrite
// or ErrFailedToRead - see OutWrapper/InWrapper.
func (p *Program) Run(r io.Reader, w io.Writer) error {
	var cells [tape.Size]byte
	tapeBase := uintptr(unsafe.Pointer(&cells[0]))

	outWrapper := newOutWrapper(w)
	inWrapper := newInWrapper(r)

	outEntry := reflect.ValueOf(outTrampolineEntry).Pointer()
	inEntry := reflect.ValueOf(inTrampolineEntry).Pointer()

	callEntry(p.buf.Addr(), tapeBase,
		outEntry, uintptr(unsafe.Pointer(outWrapper)),
		inEntry, uintptr(unsafe.Pointer(inWrapper)))

	if outWrapper.Err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToWrite, outWrapper.Err)
	}
	if inWrapper.Err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToRead, inWrapper.Err)
	}
	return nil
}

// Release frees the program's native code pages. The Program must not be
// run again afterward.
func (p *Program) Release() error {
	return p.buf.Release()
}
