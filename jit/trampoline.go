package jit

import (
	"io"
	"unsafe"
)

// OutWrapper carries the io.Writer a running Program writes '.' bytes to,
// plus the first failure seen. The JIT body cannot unwind a Go error, so
// Program.Run inspects Err after the native call returns (spec's section 9
// "Trampoline contract": I/O failure during JIT execution is reported once
// execution returns, not mid-flight).
type OutWrapper struct {
	w   io.Writer
	Err error
}

// InWrapper is OutWrapper's mirror for ',' reads.
type InWrapper struct {
	r   io.Reader
	Err error
}

func newOutWrapper(w io.Writer) *OutWrapper { return &OutWrapper{w: w} }
func newInWrapper(r io.Reader) *InWrapper   { return &InWrapper{r: r} }

// outTrampolineGo is the fixed-signature Go function outTrampolineEntry (the
// hand-written amd64 stub in trampoline_amd64.s) calls into, matching the
// spec's System V call shape `out_trampoline(cell_ptr, wrapper)`: cellAddr
// arrives first (from rdi), wrapper second (from rsi). cellAddr points into
// Program.Run's tape array but reaches this function as a raw register value
// from native code, so it is carried as a uintptr and deref'd through
// unsafe.Pointer rather than typed as *byte, the same way cgo treats
// addresses crossing into/out of foreign code.
func outTrampolineGo(cellAddr uintptr, wrapper *OutWrapper) {
	if wrapper.Err != nil {
		return
	}
	b := *(*byte)(unsafe.Pointer(cellAddr))
	if _, err := wrapper.w.Write([]byte{b}); err != nil {
		wrapper.Err = err
	}
}

// inTrampolineGo mirrors outTrampolineGo: it reads one byte and writes it
// directly into the tape cell at cellAddr, resolving the same EOF-as-zero
// ambiguity bf.Interp and ir.Interp resolve for their own input step.
func inTrampolineGo(cellAddr uintptr, wrapper *InWrapper) {
	if wrapper.Err != nil {
		return
	}
	var buf [1]byte
	n, err := wrapper.r.Read(buf[:])
	if err != nil && err != io.EOF {
		wrapper.Err = err
		return
	}
	if n == 0 {
		buf[0] = 0
	}
	*(*byte)(unsafe.Pointer(cellAddr)) = buf[0]
}

// outTrampolineEntry and inTrampolineEntry are implemented in
// trampoline_amd64.s. They are the raw System-V entry points the JIT's CALL
// instructions target directly (their addresses are what the prologue parks
// in rbp/r13, spec's Trampoline contract): on entry rdi holds the current
// cell pointer and rsi holds the wrapper pointer, exactly as emitOut/emitIn
// leave them per spec.md section 4.4's body encoding.
func outTrampolineEntry()
func inTrampolineEntry()
