//go:build linux || darwin || freebsd

package jit

import "testing"

// TestBufferLifecycle walks Locked -> Writable -> Executable -> Locked,
// checks the fill byte in the Writable stage, and releases the relocked
// buffer at the end.
func TestBufferLifecycle(t *testing.T) {
	locked, err := NewBuffer(1)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}

	writable, err := locked.Writable()
	if err != nil {
		t.Fatalf("Writable: %v", err)
	}
	for i, b := range writable.Bytes() {
		if b != fillByte {
			t.Fatalf("byte %d = %#x, want fill byte %#x", i, b, fillByte)
			break
		}
	}
	writable.Bytes()[0] = 0xC3 // a trivial ret, valid to execute

	exec, err := writable.IntoExecutable()
	if err != nil {
		t.Fatalf("IntoExecutable: %v", err)
	}
	if exec.Addr() == 0 {
		t.Fatal("Addr() returned 0")
	}

	relocked, err := exec.Lock()
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if err := relocked.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

// TestNewBufferRejectsNonPositivePages checks the page-count guard.
func TestNewBufferRejectsNonPositivePages(t *testing.T) {
	if _, err := NewBuffer(0); err != ErrBufferTooSmall {
		t.Errorf("got %v, want ErrBufferTooSmall", err)
	}
	if _, err := NewBuffer(-1); err != ErrBufferTooSmall {
		t.Errorf("got %v, want ErrBufferTooSmall", err)
	}
}
