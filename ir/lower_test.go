package ir

import (
	"strings"
	"testing"

	"github.com/xyproto/bfjit/bf"
)

func parseOrFail(t *testing.T, src string) []bf.Op {
	t.Helper()
	ops, err := bf.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("bf.Parse: %v", err)
	}
	return ops
}

// TestLowerFusesRuns checks that adjacent +/- and adjacent >/< collapse
// into single signed-delta instructions.
func TestLowerFusesRuns(t *testing.T) {
	instrs, err := Lower(parseOrFail(t, "+++--->><"))
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}

	want := []Instr{
		{Op: CellAdd, N: 0}, // +++--- sums to 0
		{Op: PtrAdd, N: 1},  // >><  sums to +1
	}
	if len(instrs) != len(want) {
		t.Fatalf("got %d instrs, want %d: %+v", len(instrs), len(want), instrs)
	}
	for i := range want {
		if instrs[i] != want[i] {
			t.Errorf("instr %d: got %+v, want %+v", i, instrs[i], want[i])
		}
	}
}

// TestLowerResolvesNestedBrackets checks that both halves of a nested
// bracket pair end up carrying the same, correct distance.
func TestLowerResolvesNestedBrackets(t *testing.T) {
	instrs, err := Lower(parseOrFail(t, "+[-[-]]"))
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}

	var opens, closes []int
	for i, instr := range instrs {
		switch instr.Op {
		case JmpFwdIfZero:
			opens = append(opens, i)
		case JmpBackIfNonZero:
			closes = append(closes, i)
		}
	}
	if len(opens) != 2 || len(closes) != 2 {
		t.Fatalf("expected 2 bracket pairs, got opens=%v closes=%v", opens, closes)
	}

	// outer pair: opens[0] .. closes[1], inner pair: opens[1] .. closes[0]
	outerOpen, outerClose := opens[0], closes[1]
	innerOpen, innerClose := opens[1], closes[0]

	if instrs[outerOpen].N != int32(outerClose-outerOpen) {
		t.Errorf("outer open N = %d, want %d", instrs[outerOpen].N, outerClose-outerOpen)
	}
	if instrs[outerClose].N != int32(outerClose-outerOpen) {
		t.Errorf("outer close N = %d, want %d", instrs[outerClose].N, outerClose-outerOpen)
	}
	if instrs[innerOpen].N != int32(innerClose-innerOpen) {
		t.Errorf("inner open N = %d, want %d", instrs[innerOpen].N, innerClose-innerOpen)
	}
	if instrs[innerClose].N != int32(innerClose-innerOpen) {
		t.Errorf("inner close N = %d, want %d", instrs[innerClose].N, innerClose-innerOpen)
	}
}

// TestLowerUnbalancedCases covers a stray ']', a stray '[', and a nested
// imbalance, all of which must report ErrUnbalancedBrackets.
func TestLowerUnbalancedCases(t *testing.T) {
	cases := []string{"]", "[", "[[]", "[]]"}
	for _, src := range cases {
		if _, err := Lower(parseOrFail(t, src)); err == nil {
			t.Errorf("Lower(%q): expected ErrUnbalancedBrackets, got nil", src)
		}
	}
}
