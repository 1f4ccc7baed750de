//go:build linux || darwin || freebsd

package jit

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// mmapLocked reserves size bytes, PROT_NONE, anonymous and private - the
// same flag combination as the teacher's hotreload_unix.go, but routed
// through golang.org/x/sys/unix instead of a raw syscall.Syscall6 so the
// protection and mapping flags are named constants rather than magic
// numbers.
func mmapLocked(size int) ([]byte, error) {
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, err
	}
	return mem, nil
}

func mprotectWritable(mem []byte) error {
	return unix.Mprotect(mem, unix.PROT_READ|unix.PROT_WRITE)
}

func mprotectExecutable(mem []byte) error {
	return unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC)
}

func mprotectLocked(mem []byte) error {
	return unix.Mprotect(mem, unix.PROT_NONE)
}

func munmap(mem []byte) error {
	return unix.Munmap(mem)
}

func addrOf(mem []byte) uintptr {
	return uintptr(unsafe.Pointer(&mem[0]))
}
