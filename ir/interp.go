package ir

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/xyproto/bfjit/internal/tape"
)

var (
	ErrFailedToWrite = errors.New("ir: failed to write byte to output")
	ErrFailedToRead  = errors.New("ir: failed to read byte from input")
)

// BoundsError is re-exported for callers that want to inspect the panic
// value raised on an out-of-range data pointer.
type BoundsError = tape.BoundsError

// Interp drives the fused IR: no runtime bracket scanning, jumps use the
// distances Lower precomputed.
type Interp struct {
	program []Instr
	pc      int
	tape    tape.Tape
}

// NewInterp builds an IR interpreter, PC and tape zeroed.
func NewInterp(program []Instr) *Interp {
	return &Interp{program: program}
}

// Step dispatches on the instruction at pc per the spec's step semantics.
func (vm *Interp) Step(r io.Reader, w io.Writer) error {
	instr := vm.program[vm.pc]

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "pc=%d op=%s n=%d ptr=%d\n", vm.pc, instr.Op, instr.N, vm.tape.Ptr())
	}

	switch instr.Op {
	case PtrAdd:
		vm.tape.Move(int(instr.N))
		vm.pc++
	case CellAdd:
		vm.tape.Add(int(instr.N))
		vm.pc++
	case Out:
		if _, err := w.Write([]byte{vm.tape.Current()}); err != nil {
			return fmt.Errorf("%w: %v", ErrFailedToWrite, err)
		}
		vm.pc++
	case In:
		var buf [1]byte
		n, err := r.Read(buf[:])
		if err != nil && err != io.EOF {
			return fmt.Errorf("%w: %v", ErrFailedToRead, err)
		}
		if n == 0 {
			buf[0] = 0
		}
		vm.tape.SetCurrent(buf[0])
		vm.pc++
	case JmpFwdIfZero:
		if vm.tape.Current() == 0 {
			vm.pc += int(instr.N)
		} else {
			vm.pc++
		}
	case JmpBackIfNonZero:
		if vm.tape.Current() != 0 {
			vm.pc -= int(instr.N)
		} else {
			vm.pc++
		}
	}

	return nil
}

// Run drives the interpreter until pc reaches the end of the program.
func (vm *Interp) Run(r io.Reader, w io.Writer) error {
	for vm.pc < len(vm.program) {
		if err := vm.Step(r, w); err != nil {
			return err
		}
	}
	return nil
}
