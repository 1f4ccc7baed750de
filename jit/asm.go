package jit

import (
	"errors"
	"fmt"
	"os"
)

// VerboseMode gates instruction-trace output to stderr as each encoder runs,
// the same switch the teacher's own encoders (mov.go, push.go, jmp.go) use
// to print a disassembly-like trail while debugging generated code.
var VerboseMode bool

// Register is one of the 16 x86_64 general-purpose registers, encoded 0..15
// (Rax=0 .. R15=15) per spec.md section 4.3.
type Register uint8

const (
	Rax Register = iota
	Rcx
	Rdx
	Rbx
	Rsp
	Rbp
	Rsi
	Rdi
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

func (r Register) String() string {
	names := [...]string{"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
		"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15"}
	if int(r) < len(names) {
		return names[r]
	}
	return "?"
}

// extended reports whether r needs a REX.B/REX.R bit to select (R8..R15).
func (r Register) extended() bool {
	return r >= R8
}

// ErrEmitterOverflow is returned when an encoder would write past the end
// of the caller-supplied buffer.
var ErrEmitterOverflow = errors.New("jit: emitter buffer overflow")

// Emitter is a cursor over a caller-owned byte buffer. Each encoder method
// appends the exact bytes of one instruction and advances Index; there is
// no branching or patching here; jump displacements are filled in later by
// the JIT lowerer's patch pass.
type Emitter struct {
	buf   []byte
	index int
}

// NewEmitter wraps buf for sequential instruction emission starting at 0.
func NewEmitter(buf []byte) *Emitter {
	return &Emitter{buf: buf}
}

// Index returns the next write position (also "current instruction offset").
func (e *Emitter) Index() int {
	return e.index
}

func (e *Emitter) emit(bytes ...byte) error {
	if e.index+len(bytes) > len(e.buf) {
		return ErrEmitterOverflow
	}
	copy(e.buf[e.index:], bytes)
	e.index += len(bytes)
	return nil
}

func modrm(mod, reg, rm uint8) byte {
	return (mod&3)<<6 | (reg&7)<<3 | (rm & 7)
}

// rexW builds the REX.W prefix for a 64-bit op whose sole register operand
// occupies the ModRM reg field.
func rexW(reg Register) byte {
	b := byte(0x48)
	if reg.extended() {
		b |= 0x04
	}
	return b
}

// rexWRM builds REX.W for an instruction with both a reg and an rm operand.
func rexWRM(reg, rm Register) byte {
	b := rexW(reg)
	if rm.extended() {
		b |= 0x01
	}
	return b
}

// rexBIfExtended returns the single-operand REX.B prefix byte (0x41) and
// true if rm needs it (R8..R15), else ok is false and no prefix is written.
func rexBIfExtended(rm Register) (b byte, ok bool) {
	if rm.extended() {
		return 0x41, true
	}
	return 0, false
}

func trace(format string, args ...any) {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// AddRegImm8 emits `add r64, imm8` (REX.W, 0x83 /0).
func (e *Emitter) AddRegImm8(reg Register, imm int8) error {
	trace("add %s, %d\n", reg, imm)
	return e.emit(rexWRM(Rax, reg), 0x83, modrm(0b11, 0, uint8(reg)), byte(imm))
}

// SubRegImm8 emits `sub r64, imm8` (REX.W, 0x83 /5).
func (e *Emitter) SubRegImm8(reg Register, imm int8) error {
	trace("sub %s, %d\n", reg, imm)
	return e.emit(rexWRM(Rax, reg), 0x83, modrm(0b11, 5, uint8(reg)), byte(imm))
}

// AddMemImm8 emits `add byte [reg], imm8` (0x80 /0).
func (e *Emitter) AddMemImm8(reg Register, imm int8) error {
	trace("add byte [%s], %d\n", reg, imm)
	return e.emit(0x80, modrm(0b00, 0, uint8(reg)), byte(imm))
}

// SubMemImm8 emits `sub byte [reg], imm8` (0x80 /5).
func (e *Emitter) SubMemImm8(reg Register, imm int8) error {
	trace("sub byte [%s], %d\n", reg, imm)
	return e.emit(0x80, modrm(0b00, 5, uint8(reg)), byte(imm))
}

// AddMemDispImm8 emits `add byte [reg+disp8], imm8` (0x80 /0, mod=01).
func (e *Emitter) AddMemDispImm8(reg Register, disp int8, imm int8) error {
	trace("add byte [%s+%d], %d\n", reg, disp, imm)
	return e.emit(0x80, modrm(0b01, 0, uint8(reg)), byte(disp), byte(imm))
}

// SubMemDispImm8 emits `sub byte [reg+disp8], imm8` (0x80 /5, mod=01).
func (e *Emitter) SubMemDispImm8(reg Register, disp int8, imm int8) error {
	trace("sub byte [%s+%d], %d\n", reg, disp, imm)
	return e.emit(0x80, modrm(0b01, 5, uint8(reg)), byte(disp), byte(imm))
}

// CmpMemImm8 emits `cmp byte [reg], imm8` (0x80 /7).
func (e *Emitter) CmpMemImm8(reg Register, imm int8) error {
	trace("cmp byte [%s], %d\n", reg, imm)
	return e.emit(0x80, modrm(0b00, 7, uint8(reg)), byte(imm))
}

// rel32LE splits a signed 32-bit displacement into its four little-endian
// bytes, used as a zero placeholder here and overwritten by the JIT
// lowerer's patch pass.
func rel32LE(rel int32) [4]byte {
	u := uint32(rel)
	return [4]byte{byte(u), byte(u >> 8), byte(u >> 16), byte(u >> 24)}
}

// Jne emits `jne rel32` (0x0F 0x85, 6 bytes total).
func (e *Emitter) Jne(rel int32) error {
	trace("jne %d\n", rel)
	b := rel32LE(rel)
	return e.emit(0x0F, 0x85, b[0], b[1], b[2], b[3])
}

// Je emits `je rel32` (0x0F 0x84, 6 bytes total).
func (e *Emitter) Je(rel int32) error {
	trace("je %d\n", rel)
	b := rel32LE(rel)
	return e.emit(0x0F, 0x84, b[0], b[1], b[2], b[3])
}

// CallReg emits `call r64` (indirect call through a register).
func (e *Emitter) CallReg(reg Register) error {
	trace("call %s\n", reg)
	if rexb, ok := rexBIfExtended(reg); ok {
		return e.emit(rexb, 0xFF, modrm(0b11, 2, uint8(reg)))
	}
	return e.emit(0xFF, modrm(0b11, 2, uint8(reg)))
}

// PushReg emits `push r64`.
func (e *Emitter) PushReg(reg Register) error {
	trace("push %s\n", reg)
	if rexb, ok := rexBIfExtended(reg); ok {
		return e.emit(rexb, 0xFF, modrm(0b11, 6, uint8(reg)))
	}
	return e.emit(0xFF, modrm(0b11, 6, uint8(reg)))
}

// PopReg emits `pop r64`.
func (e *Emitter) PopReg(reg Register) error {
	trace("pop %s\n", reg)
	if rexb, ok := rexBIfExtended(reg); ok {
		return e.emit(rexb, 0x8F, modrm(0b11, 0, uint8(reg)))
	}
	return e.emit(0x8F, modrm(0b11, 0, uint8(reg)))
}

// MovRegReg emits `mov dst, src` in Intel operand order (REX.W+B, 0x89).
func (e *Emitter) MovRegReg(dst, src Register) error {
	trace("mov %s, %s\n", dst, src)
	return e.emit(rexWRM(src, dst), 0x89, modrm(0b11, uint8(src), uint8(dst)))
}

// XorRegReg emits `xor dst, src` in Intel operand order (REX.W+B, 0x31).
// The epilogue uses the dst==src==Rax form as the standard zeroing idiom,
// so the compiled function's declared `-> i32` return value in eax is
// always a defined 0 rather than whatever garbage the body left behind.
func (e *Emitter) XorRegReg(dst, src Register) error {
	trace("xor %s, %s\n", dst, src)
	return e.emit(rexWRM(src, dst), 0x31, modrm(0b11, uint8(src), uint8(dst)))
}

// Ret emits a bare `ret` (0xC3) - the same byte the native buffer is
// prefilled with, so a fall-through past the last emitted instruction is
// always a safe return.
func (e *Emitter) Ret() error {
	trace("ret\n")
	return e.emit(0xC3)
}
