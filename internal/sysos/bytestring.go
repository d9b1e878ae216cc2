// Package sysos wraps the Linux system calls needed to build a container
// around a clone3(2) boundary.
//
// The wrappers keep the names and behavior of the underlying system calls so
// that their exact semantics can be looked up in the man pages. They differ
// from a literal syscall binding in a few ways, for ease and safety of use:
//
//   - Failures are reported as a plain error (a syscall.Errno) instead of
//     a raw -1 return.
//   - Descriptor-creating wrappers force O_CLOEXEC/the _CLOEXEC flag variant,
//     since setting it in a second call races concurrent forks elsewhere in
//     the process.
//   - Path and argument-vector arguments are pre-converted to null-terminated
//     byte buffers (ByteString, ByteStringArray) by the caller; the syscall
//     wrappers themselves do not allocate.
//
// The syscall wrappers, other than Poll, may be called from the narrow
// window between clone3(2) and execve(2) in a child process, where the Go
// runtime's usual guarantees (garbage collection, goroutine scheduling,
// blocking-safe locks) do not hold. Callers in that window must have
// already called runtime.LockOSThread and must not allocate, panic, or take
// a lock. The ByteString and ByteStringArray builders allocate, and so does
// the first call to ByteStringArray.Pointers.
package sysos

import "errors"

// ErrInteriorNUL is returned by NewByteString when the input contains a NUL
// byte before its end.
var ErrInteriorNUL = errors.New("sysos: string contains an interior NUL byte")

// ByteString is a null-terminated byte string, suitable for passing to a raw
// system call via a pointer to its first byte. It is built once, in a
// context where allocation is allowed, and is immutable afterward.
type ByteString []byte

// NewByteString copies s into a freshly allocated, NUL-terminated
// ByteString. It fails if s contains an interior NUL byte.
func NewByteString(s string) (ByteString, error) {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return nil, ErrInteriorNUL
		}
	}
	b := make(ByteString, len(s)+1)
	copy(b, s)
	return b, nil
}

// MustByteString is like NewByteString but panics on error. It exists for
// constructing fixed, known-good strings such as "." or "/proc/self/fd".
func MustByteString(s string) ByteString {
	b, err := NewByteString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// Ptr returns a pointer to the first byte of the string, or nil if the
// string is empty (the zero value, used for unused Mount fields).
func (b ByteString) Ptr() *byte {
	if len(b) == 0 {
		return nil
	}
	return &b[0]
}

// String returns the string with its trailing NUL stripped.
func (b ByteString) String() string {
	if len(b) == 0 {
		return ""
	}
	return string(b[:len(b)-1])
}

// ByteStringArray is a sequence of ByteStrings terminated, for the purpose
// of Pointers, by a null pointer sentinel — the layout execve(2) and its
// argv/envp arguments require.
type ByteStringArray struct {
	elements []ByteString
	// ptrs is rebuilt by Pointers and cached; it aliases elements, so it
	// must be invalidated (set to nil) whenever elements changes.
	ptrs []*byte
}

// NewByteStringArray builds a ByteStringArray from plain strings, in order.
func NewByteStringArray(strs ...string) (ByteStringArray, error) {
	var a ByteStringArray
	for _, s := range strs {
		if err := a.Append(s); err != nil {
			return ByteStringArray{}, err
		}
	}
	return a, nil
}

// Append adds one more string to the end of the array.
func (a *ByteStringArray) Append(s string) error {
	b, err := NewByteString(s)
	if err != nil {
		return err
	}
	a.elements = append(a.elements, b)
	a.ptrs = nil
	return nil
}

// Len reports the number of strings in the array (excluding the sentinel).
func (a *ByteStringArray) Len() int {
	return len(a.elements)
}

// Pointers returns a null-terminated slice of pointers to each element's
// first byte, suitable for passing to execve(2). The returned slice is
// cached and aliases the array's backing storage: it is only valid while
// the ByteStringArray itself is alive, and must not be mutated.
func (a *ByteStringArray) Pointers() []*byte {
	if a.ptrs == nil {
		a.ptrs = make([]*byte, len(a.elements)+1)
		for i := range a.elements {
			a.ptrs[i] = a.elements[i].Ptr()
		}
		// a.ptrs[len(a.elements)] is left nil: the sentinel.
	}
	return a.ptrs
}
