// Package tape implements the 30000-cell working memory shared by the
// primitive and IR interpreters (spec's Data Model, tape and cell).
package tape

import "fmt"

// Size is the fixed tape length. Brainfuck programs addressing outside
// [0, Size) trigger a BoundsError.
const Size = 30000

// BoundsError is the panic-class PointerOutOfBounds error: a program moved
// the data pointer outside [0, Size).
type BoundsError struct {
	Attempted int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("data pointer out of bounds: %d", e.Attempted)
}

// Tape is 30000 unsigned bytes plus the data pointer into them. Cell
// arithmetic wraps modulo 256; pointer motion outside [0, Size) panics with
// *BoundsError rather than returning an error, matching the panic-class
// PointerOutOfBounds behavior required of both interpreters.
type Tape struct {
	cells [Size]byte
	p     int
}

// Ptr returns the current data pointer.
func (t *Tape) Ptr() int {
	return t.p
}

// Move advances the data pointer by delta, panicking with *BoundsError if
// the result leaves [0, Size).
func (t *Tape) Move(delta int) {
	next := t.p + delta
	if next < 0 || next >= Size {
		panic(&BoundsError{Attempted: next})
	}
	t.p = next
}

// Add wraps delta into the current cell modulo 256.
func (t *Tape) Add(delta int) {
	t.cells[t.p] = byte(int32(t.cells[t.p]) + int32(delta))
}

// Current returns the byte under the data pointer.
func (t *Tape) Current() byte {
	return t.cells[t.p]
}

// SetCurrent overwrites the byte under the data pointer.
func (t *Tape) SetCurrent(b byte) {
	t.cells[t.p] = b
}
