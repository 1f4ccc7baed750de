package bf

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/xyproto/bfjit/internal/tape"
)

// Errors raised by Interp. ErrNoMatchingJump is this tier's form of
// UnbalancedBrackets, and it is a runtime symptom
// (the bracket scan walked off either end of the program) rather than the
// static check the Lowerer performs up front - BfInterp never precomputes
// jump distances, so a malformed program only fails once it actually hits
// the bad bracket at runtime.
var (
	ErrNoMatchingJump = errors.New("bf: no matching jump")
	ErrFailedToWrite  = errors.New("bf: failed to write byte to output")
	ErrFailedToRead   = errors.New("bf: failed to read byte from input")
)

// BoundsError is re-exported so callers can errors.As against the panic
// value without importing internal/tape directly.
type BoundsError = tape.BoundsError

// Interp is the direct (unoptimized) Brainfuck interpreter: it walks the
// primitive opcode stream one instruction at a time and, on every bracket,
// scans linearly for the matching partner. Grounded on
// original_source/src/brainfuck.rs's Vm::step.
type Interp struct {
	program []Op
	pc      int
	tape    tape.Tape
}

// NewInterp builds an interpreter over a parsed program, PC and tape zeroed.
func NewInterp(program []Op) *Interp {
	return &Interp{program: program}
}

// Step executes a single instruction. Returns nil at end of program without
// advancing further; Run stops once pc reaches len(program).
func (vm *Interp) Step(r io.Reader, w io.Writer) error {
	if vm.pc >= len(vm.program) {
		return nil
	}
	instr := vm.program[vm.pc]

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "pc=%d op=%s ptr=%d\n", vm.pc, instr, vm.tape.Ptr())
	}

	switch instr {
	case OpIncPtr:
		vm.tape.Move(1)
		vm.pc++
	case OpDecPtr:
		vm.tape.Move(-1)
		vm.pc++
	case OpIncByte:
		vm.tape.Add(1)
		vm.pc++
	case OpDecByte:
		vm.tape.Add(-1)
		vm.pc++
	case OpOutput:
		if _, err := w.Write([]byte{vm.tape.Current()}); err != nil {
			return fmt.Errorf("%w: %v", ErrFailedToWrite, err)
		}
		vm.pc++
	case OpInput:
		b, err := readOneByte(r)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrFailedToRead, err)
		}
		vm.tape.SetCurrent(b)
		vm.pc++
	case OpJumpIfZero:
		if vm.tape.Current() == 0 {
			jump, err := vm.scanForward()
			if err != nil {
				return err
			}
			vm.pc = jump
		} else {
			vm.pc++
		}
	case OpJumpIfNonZero:
		if vm.tape.Current() != 0 {
			jump, err := vm.scanBackward()
			if err != nil {
				return err
			}
			vm.pc = jump
		} else {
			vm.pc++
		}
	}

	return nil
}

// scanForward finds the matching ']' for the '[' at the current pc, scanning
// forward and tracking nesting depth. This is the "quite a dumb way to do
// this" scan from the original Rust Vm::step, kept intentionally linear:
// BfInterp's whole purpose is to be the unoptimized baseline.
func (vm *Interp) scanForward() (int, error) {
	opened := 1
	jump := vm.pc
	for {
		jump++
		if jump >= len(vm.program) {
			return 0, ErrNoMatchingJump
		}
		switch vm.program[jump] {
		case OpJumpIfZero:
			opened++
		case OpJumpIfNonZero:
			opened--
		}
		if opened == 0 {
			return jump, nil
		}
	}
}

func (vm *Interp) scanBackward() (int, error) {
	closed := 1
	jump := vm.pc
	for {
		jump--
		if jump < 0 {
			return 0, ErrNoMatchingJump
		}
		switch vm.program[jump] {
		case OpJumpIfZero:
			closed--
		case OpJumpIfNonZero:
			closed++
		}
		if closed == 0 {
			return jump, nil
		}
	}
}

// Run drives the interpreter to completion (pc reaches len(program)).
func (vm *Interp) Run(r io.Reader, w io.Writer) error {
	for vm.pc < len(vm.program) {
		if err := vm.Step(r, w); err != nil {
			return err
		}
	}
	return nil
}

// readOneByte reads exactly one byte, writing 0 on EOF rather than leaving
// the destination untouched - resolves the ambiguity in the original's
// sliced read (cells[p..1], which misbehaves for p != 0).
func readOneByte(r io.Reader) (byte, error) {
	var buf [1]byte
	n, err := r.Read(buf[:])
	if err != nil && err != io.EOF {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return buf[0], nil
}
