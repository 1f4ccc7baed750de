package jit

import (
	"bytes"
	"testing"
)

// TestEmitterEncodings checks each encoder against its expected byte
// sequence, spelled out the way the spec's instruction table defines them.
func TestEmitterEncodings(t *testing.T) {
	tests := []struct {
		name string
		emit func(e *Emitter) error
		want []byte
	}{
		{"AddRegImm8 rdi", func(e *Emitter) error { return e.AddRegImm8(Rdi, 5) },
			[]byte{0x48, 0x83, 0xC7, 0x05}},
		{"SubRegImm8 rdi", func(e *Emitter) error { return e.SubRegImm8(Rdi, 5) },
			[]byte{0x48, 0x83, 0xEF, 0x05}},
		{"AddRegImm8 r12 (extended)", func(e *Emitter) error { return e.AddRegImm8(R12, 1) },
			[]byte{0x49, 0x83, 0xC4, 0x01}},
		{"AddMemImm8 rdi", func(e *Emitter) error { return e.AddMemImm8(Rdi, 3) },
			[]byte{0x80, 0x07, 0x03}},
		{"SubMemImm8 rdi", func(e *Emitter) error { return e.SubMemImm8(Rdi, 3) },
			[]byte{0x80, 0x2F, 0x03}},
		{"CmpMemImm8 rdi", func(e *Emitter) error { return e.CmpMemImm8(Rdi, 0) },
			[]byte{0x80, 0x3F, 0x00}},
		{"PushReg rbp", func(e *Emitter) error { return e.PushReg(Rbp) },
			[]byte{0xFF, 0xF5}},
		{"PushReg r12 (extended)", func(e *Emitter) error { return e.PushReg(R12) },
			[]byte{0x41, 0xFF, 0xF4}},
		{"PopReg rbp", func(e *Emitter) error { return e.PopReg(Rbp) },
			[]byte{0x8F, 0xC5}},
		{"CallReg rbp", func(e *Emitter) error { return e.CallReg(Rbp) },
			[]byte{0xFF, 0xD5}},
		{"MovRegReg rdi,rsi", func(e *Emitter) error { return e.MovRegReg(Rdi, Rsi) },
			[]byte{0x48, 0x89, 0xF7}},
		{"Ret", func(e *Emitter) error { return e.Ret() },
			[]byte{0xC3}},
		{"Je placeholder", func(e *Emitter) error { return e.Je(0) },
			[]byte{0x0F, 0x84, 0x00, 0x00, 0x00, 0x00}},
		{"Jne placeholder", func(e *Emitter) error { return e.Jne(0) },
			[]byte{0x0F, 0x85, 0x00, 0x00, 0x00, 0x00}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf := make([]byte, 16)
			e := NewEmitter(buf)
			if err := tc.emit(e); err != nil {
				t.Fatalf("emit: %v", err)
			}
			got := buf[:e.Index()]
			if !bytes.Equal(got, tc.want) {
				t.Errorf("got % X, want % X", got, tc.want)
			}
		})
	}
}

// TestEmitterOverflow checks that emission into an undersized buffer fails
// cleanly with ErrEmitterOverflow instead of writing out of bounds.
func TestEmitterOverflow(t *testing.T) {
	buf := make([]byte, 2)
	e := NewEmitter(buf)
	if err := e.AddRegImm8(Rdi, 1); err != ErrEmitterOverflow {
		t.Errorf("got %v, want ErrEmitterOverflow", err)
	}
}

// TestJumpNegativeDisplacement checks that a backward jump's rel32 encodes
// as a negative little-endian value.
func TestJumpNegativeDisplacement(t *testing.T) {
	buf := make([]byte, 16)
	e := NewEmitter(buf)
	if err := e.Jne(-10); err != nil {
		t.Fatalf("emit: %v", err)
	}
	want := []byte{0x0F, 0x85, 0xF6, 0xFF, 0xFF, 0xFF}
	if !bytes.Equal(buf[:6], want) {
		t.Errorf("got % X, want % X", buf[:6], want)
	}
}
