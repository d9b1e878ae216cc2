package cachekey

import (
	"testing"
	"time"
)

// fakeHasher is the simplest possible Hasher: it accumulates every byte
// it is fed and "finishes" by XOR-folding those bytes into 32 slots,
// which is enough to detect whether two inputs produced distinguishable
// byte streams without depending on any real hash algorithm.
type fakeHasher struct {
	buf []byte
}

func (h *fakeHasher) Write(p []byte) (int, error) {
	h.buf = append(h.buf, p...)
	return len(p), nil
}

func (h *fakeHasher) Sum32() [32]byte {
	var out [32]byte
	for i, b := range h.buf {
		out[i%32] ^= b
	}
	return out
}

func TestRunActionInputDeterministic(t *testing.T) {
	h1 := &fakeHasher{}
	d1 := RunActionInput(h1, "/bin/sh", []string{"sh", "-c", "true"}, []string{"PATH=/bin"}, time.Second)

	h2 := &fakeHasher{}
	d2 := RunActionInput(h2, "/bin/sh", []string{"sh", "-c", "true"}, []string{"PATH=/bin"}, time.Second)

	if d1 != d2 {
		t.Fatal("RunActionInput is not deterministic for identical inputs")
	}
}

func TestRunActionInputDistinguishesArgvSplits(t *testing.T) {
	// ["ab", "c"] must not collide with ["a", "bc"]: this is exactly what
	// length-prefixing each string is for.
	h1 := &fakeHasher{}
	d1 := RunActionInput(h1, "/bin/sh", []string{"ab", "c"}, nil, 0)

	h2 := &fakeHasher{}
	d2 := RunActionInput(h2, "/bin/sh", []string{"a", "bc"}, nil, 0)

	if d1 == d2 {
		t.Fatal("RunActionInput collided on two different argv splits")
	}
}

func TestRunActionInputDistinguishesTimeout(t *testing.T) {
	h1 := &fakeHasher{}
	d1 := RunActionInput(h1, "/bin/sh", []string{"sh"}, nil, time.Second)

	h2 := &fakeHasher{}
	d2 := RunActionInput(h2, "/bin/sh", []string{"sh"}, nil, 2*time.Second)

	if d1 == d2 {
		t.Fatal("RunActionInput ignored the timeout")
	}
}
