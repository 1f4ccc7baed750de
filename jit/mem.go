package jit

import "errors"

// PageSize is the native page granularity mmap allocates in.
const PageSize = 4096

// DefaultPages is how many pages Compile reserves when the caller does not
// override it (spec's default JIT buffer size).
const DefaultPages = 8

// fillByte is written across a freshly mapped buffer before any code is
// emitted into it. 0xC3 is `ret`, so any region the emitter never reaches -
// trailing pages, or a fallthrough past the last real instruction - behaves
// as an immediate, harmless return instead of executing garbage.
const fillByte = 0xC3

// ErrBufferTooSmall is returned when pages <= 0.
var ErrBufferTooSmall = errors.New("jit: buffer must have at least one page")

// Buffer is freshly allocated memory in the Locked (PROT_NONE) state: it
// exists but is neither readable, writable, nor executable. This is the
// entry point of the tri-state lifecycle described in spec.md section 9
// (Locked -> Writable -> {Locked, Executable}).
type Buffer struct {
	mem []byte
}

// WritableBuffer is memory in the Writable (PROT_READ|PROT_WRITE) state:
// the emitter writes code into it here. It cannot be executed in this
// state - W^X is enforced by construction, not convention.
type WritableBuffer struct {
	mem []byte
}

// ExecutableBuffer is memory in the Executable (PROT_READ|PROT_EXEC) state:
// code can be called into it, but it can no longer be written.
type ExecutableBuffer struct {
	mem []byte
}

// NewBuffer reserves pages*PageSize bytes of Locked memory.
func NewBuffer(pages int) (*Buffer, error) {
	if pages <= 0 {
		return nil, ErrBufferTooSmall
	}
	mem, err := mmapLocked(pages * PageSize)
	if err != nil {
		return nil, err
	}
	return &Buffer{mem: mem}, nil
}

// Writable transitions Locked -> Writable, fills the buffer with the
// fillByte sentinel, and consumes b.
func (b *Buffer) Writable() (*WritableBuffer, error) {
	if err := mprotectWritable(b.mem); err != nil {
		return nil, err
	}
	for i := range b.mem {
		b.mem[i] = fillByte
	}
	return &WritableBuffer{mem: b.mem}, nil
}

// Release unconditionally unmaps b's pages.
func (b *Buffer) Release() error {
	return munmap(b.mem)
}

// Bytes exposes the writable region for the emitter to write into.
func (w *WritableBuffer) Bytes() []byte {
	return w.mem
}

// Release unconditionally unmaps w's pages.
func (w *WritableBuffer) Release() error {
	return munmap(w.mem)
}

// Lock transitions Writable -> Locked, consuming w.
func (w *WritableBuffer) Lock() (*Buffer, error) {
	if err := mprotectLocked(w.mem); err != nil {
		return nil, err
	}
	return &Buffer{mem: w.mem}, nil
}

// IntoExecutable transitions Writable -> Executable, consuming w. This is
// the only path onto the executable side of the state machine: code must
// pass through Writable first, and can never return to Writable without
// going back through Locked.
func (w *WritableBuffer) IntoExecutable() (*ExecutableBuffer, error) {
	if err := mprotectExecutable(w.mem); err != nil {
		return nil, err
	}
	return &ExecutableBuffer{mem: w.mem}, nil
}

// Lock transitions Executable -> Locked, consuming e. A caller wanting to
// patch jump displacements after emission must come through here then back
// through Writable - there is no Executable -> Writable shortcut.
func (e *ExecutableBuffer) Lock() (*Buffer, error) {
	if err := mprotectLocked(e.mem); err != nil {
		return nil, err
	}
	return &Buffer{mem: e.mem}, nil
}

// Addr returns the base address of the executable region as a uintptr, for
// constructing the callable entry point.
func (e *ExecutableBuffer) Addr() uintptr {
	return addrOf(e.mem)
}

// Release unconditionally unmaps e's pages.
func (e *ExecutableBuffer) Release() error {
	return munmap(e.mem)
}
