package ir

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xyproto/bfjit/bf"
)

func lowerOrFail(t *testing.T, src string) []Instr {
	t.Helper()
	ops, err := bf.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("bf.Parse: %v", err)
	}
	instrs, err := Lower(ops)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	return instrs
}

// TestInterpMatchesBfInterp runs the same programs through both tiers and
// requires identical output, establishing the cross-tier equivalence the
// fusion pass must preserve.
func TestInterpMatchesBfInterp(t *testing.T) {
	programs := []string{
		"++++++++[>++++[>++>+++>+++>+<<<<-]>+>+>->>+[<]<-]>>.>---.+++++++..+++.>>.<-.<.+++.------.--------.>>+.>++.",
		",[.,]",
		strings.Repeat("+", 300) + ".",
		"+[>+<-]>.",
	}

	for _, src := range programs {
		ops, err := bf.Parse(strings.NewReader(src))
		if err != nil {
			t.Fatalf("bf.Parse: %v", err)
		}

		var bfOut bytes.Buffer
		bfVM := bf.NewInterp(ops)
		if err := bfVM.Run(strings.NewReader("abc"), &bfOut); err != nil {
			t.Fatalf("bf.Interp.Run: %v", err)
		}

		instrs, err := Lower(ops)
		if err != nil {
			t.Fatalf("Lower: %v", err)
		}
		var irOut bytes.Buffer
		irVM := NewInterp(instrs)
		if err := irVM.Run(strings.NewReader("abc"), &irOut); err != nil {
			t.Fatalf("ir.Interp.Run: %v", err)
		}

		if bfOut.String() != irOut.String() {
			t.Errorf("program %q: BfInterp=%q IrInterp=%q", src, bfOut.String(), irOut.String())
		}
	}
}

// TestInterpZeroLengthLoopBody exercises "[]" on a zero cell: the forward
// jump skips the empty body, so the program must terminate rather than hang.
func TestInterpZeroLengthLoopBody(t *testing.T) {
	instrs := lowerOrFail(t, "[]")
	vm := NewInterp(instrs)
	if err := vm.Run(strings.NewReader(""), &bytes.Buffer{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

// TestInterpPointerOutOfBoundsPanics checks the IR tier panics the same way
// BfInterp does on an out-of-range data pointer.
func TestInterpPointerOutOfBoundsPanics(t *testing.T) {
	instrs := lowerOrFail(t, "<")

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected a panic")
		}
		if _, ok := r.(*BoundsError); !ok {
			t.Errorf("got panic value %#v, want *BoundsError", r)
		}
	}()

	vm := NewInterp(instrs)
	_ = vm.Run(strings.NewReader(""), &bytes.Buffer{})
}
